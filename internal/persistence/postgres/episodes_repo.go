package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frontieralpha/frontier/internal/domain"
)

const episodeColumns = `id, user_id, episode_number, start_date, end_date, decisions,
	portfolio_return, sharpe_ratio, max_drawdown, status`

type episodeRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func (r *episodeRepo) Save(ctx context.Context, ep *domain.Episode) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	decisionsJSON, err := json.Marshal(ep.Decisions)
	if err != nil {
		return fmt.Errorf("marshal decisions: %w", err)
	}

	query := `
		INSERT INTO episodes
		(id, user_id, episode_number, start_date, end_date, decisions,
		 portfolio_return, sharpe_ratio, max_drawdown, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			end_date = EXCLUDED.end_date,
			decisions = EXCLUDED.decisions,
			portfolio_return = EXCLUDED.portfolio_return,
			sharpe_ratio = EXCLUDED.sharpe_ratio,
			max_drawdown = EXCLUDED.max_drawdown,
			status = EXCLUDED.status`

	if _, err := r.db.ExecContext(ctx, query,
		ep.ID, ep.UserID, ep.EpisodeNumber, ep.StartDate, ep.EndDate,
		decisionsJSON, ep.PortfolioReturn, ep.SharpeRatio, ep.MaxDrawdown, ep.Status); err != nil {
		return fmt.Errorf("save episode: %w", err)
	}
	return nil
}

func (r *episodeRepo) GetActive(ctx context.Context, userID string) (*domain.Episode, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + episodeColumns + `
		FROM episodes
		WHERE user_id = $1 AND status = 'active'
		ORDER BY episode_number DESC
		LIMIT 1`

	ep, err := scanEpisode(r.db.QueryRowxContext(ctx, query, userID))
	if err != nil {
		if nilIfNoRows(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get active episode: %w", err)
	}
	return ep, nil
}

func (r *episodeRepo) GetLastCompleted(ctx context.Context, userID string) (*domain.Episode, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + episodeColumns + `
		FROM episodes
		WHERE user_id = $1 AND status = 'completed'
		ORDER BY episode_number DESC
		LIMIT 1`

	ep, err := scanEpisode(r.db.QueryRowxContext(ctx, query, userID))
	if err != nil {
		if nilIfNoRows(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get last completed episode: %w", err)
	}
	return ep, nil
}

func (r *episodeRepo) GetByNumber(ctx context.Context, userID string, number int) (*domain.Episode, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + episodeColumns + `
		FROM episodes
		WHERE user_id = $1 AND episode_number = $2`

	ep, err := scanEpisode(r.db.QueryRowxContext(ctx, query, userID, number))
	if err != nil {
		if nilIfNoRows(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get episode by number: %w", err)
	}
	return ep, nil
}

func (r *episodeRepo) List(ctx context.Context, userID string, limit, offset int) ([]domain.Episode, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + episodeColumns + `
		FROM episodes
		WHERE user_id = $1
		ORDER BY episode_number ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryxContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []domain.Episode
	for rows.Next() {
		ep, err := scanEpisodeRows(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, *ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return episodes, nil
}

func (r *episodeRepo) MaxNumber(ctx context.Context, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var max int
	query := `SELECT COALESCE(MAX(episode_number), 0) FROM episodes WHERE user_id = $1`
	if err := r.db.QueryRowxContext(ctx, query, userID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max episode number: %w", err)
	}
	return max, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEpisode(row rowScanner) (*domain.Episode, error) {
	var ep domain.Episode
	var decisionsJSON []byte
	var endDate sql.NullTime

	err := row.Scan(
		&ep.ID, &ep.UserID, &ep.EpisodeNumber, &ep.StartDate, &endDate,
		&decisionsJSON, &ep.PortfolioReturn, &ep.SharpeRatio, &ep.MaxDrawdown, &ep.Status)
	if err != nil {
		return nil, err
	}

	if endDate.Valid {
		ep.EndDate = &endDate.Time
	}
	if len(decisionsJSON) > 0 {
		if err := json.Unmarshal(decisionsJSON, &ep.Decisions); err != nil {
			return nil, fmt.Errorf("unmarshal decisions: %w", err)
		}
	}
	return &ep, nil
}

func scanEpisodeRows(rows *sqlx.Rows) (*domain.Episode, error) {
	ep, err := scanEpisode(rows)
	if err != nil {
		return nil, fmt.Errorf("scan episode: %w", err)
	}
	return ep, nil
}
