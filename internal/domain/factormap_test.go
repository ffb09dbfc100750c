package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactorMap_UnmarshalShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    FactorMap
	}{
		{
			name:    "canonical_object",
			payload: `{"momentum": 0.8, "value": -0.2}`,
			want:    FactorMap{"momentum": 0.8, "value": -0.2},
		},
		{
			name:    "legacy_entry_array",
			payload: `[{"name": "momentum", "value": 0.8}, {"name": "value", "value": -0.2}]`,
			want:    FactorMap{"momentum": 0.8, "value": -0.2},
		},
		{
			name:    "empty_object",
			payload: `{}`,
			want:    FactorMap{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m FactorMap
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &m))
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestFactorMap_UnmarshalRejectsGarbage(t *testing.T) {
	var m FactorMap
	assert.Error(t, json.Unmarshal([]byte(`"not a map"`), &m))
}

func TestFactorMap_SortedKeys(t *testing.T) {
	m := FactorMap{"value": 1, "momentum": 2, "quality": 3}
	assert.Equal(t, []string{"momentum", "quality", "value"}, m.SortedKeys())
}

func TestFactorMap_CloneIsIndependent(t *testing.T) {
	orig := FactorMap{"momentum": 0.5}
	cp := orig.Clone()
	cp["momentum"] = 2.0
	assert.Equal(t, 0.5, orig["momentum"])
}

func TestEpisode_CloneIsDeep(t *testing.T) {
	ep := &Episode{
		ID:     "ep-1",
		UserID: "u1",
		Status: EpisodeActive,
		Decisions: []Decision{
			{Symbol: "AAPL", Action: ActionBuy, Factors: FactorMap{"momentum": 0.8}},
		},
	}

	cp := ep.Clone()
	cp.Decisions[0].Factors["momentum"] = -5
	cp.Decisions = append(cp.Decisions, Decision{Symbol: "TSLA", Action: ActionSell})

	assert.Equal(t, 0.8, ep.Decisions[0].Factors["momentum"])
	assert.Len(t, ep.Decisions, 1)
}
