package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FactorMap is an ordered-key container for factor name -> scalar. Iteration
// for any emitted output goes through SortedKeys so results are reproducible
// regardless of map iteration order.
type FactorMap map[string]float64

// legacyEntry is the persisted array-of-entries shape some stored states
// still carry. It is normalized into the canonical map form at the
// persistence boundary; nothing past that boundary sees it.
type legacyEntry struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// UnmarshalJSON accepts both the canonical object shape and the legacy
// entry-array shape.
func (m *FactorMap) UnmarshalJSON(data []byte) error {
	var obj map[string]float64
	if err := json.Unmarshal(data, &obj); err == nil {
		*m = obj
		return nil
	}

	var entries []legacyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("factor map is neither object nor entry array: %w", err)
	}

	out := make(FactorMap, len(entries))
	for _, e := range entries {
		out[e.Name] = e.Value
	}
	*m = out
	return nil
}

// MarshalJSON always emits the canonical object shape with sorted keys.
func (m FactorMap) MarshalJSON() ([]byte, error) {
	ordered := make(map[string]float64, len(m))
	for k, v := range m {
		ordered[k] = v
	}
	return json.Marshal(ordered)
}

// SortedKeys returns factor names in alphabetical order.
func (m FactorMap) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy.
func (m FactorMap) Clone() FactorMap {
	if m == nil {
		return nil
	}
	cp := make(FactorMap, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
