package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frontieralpha/frontier/internal/domain"
)

type cycleRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func (r *cycleRepo) List(ctx context.Context, userID string, limit, offset int) ([]domain.CycleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT payload
		FROM cvrf_cycles
		WHERE user_id = $1
		ORDER BY ts ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryxContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var results []domain.CycleResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan cycle payload: %w", err)
		}
		var result domain.CycleResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("unmarshal cycle payload: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return results, nil
}
