package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TickRepo produces the per-game tick counter. The upsert is the single
// serialization point for tick ordering: concurrent callers are ordered by
// the row lock and always observe distinct, strictly increasing numbers.
type TickRepo struct {
	db *sql.DB
}

// NewTickRepo creates a TickRepo.
func NewTickRepo(db *sql.DB) *TickRepo {
	return &TickRepo{db: db}
}

// Increment returns the next tick number for a game. The first call for a
// game initializes the row and returns 1.
func (r *TickRepo) Increment(ctx context.Context, gameID string, at time.Time) (int, error) {
	var tick int
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO game_ticks (game_id, tick_number, last_tick_at)
		 VALUES ($1, 1, $2)
		 ON CONFLICT (game_id)
		 DO UPDATE SET tick_number = game_ticks.tick_number + 1, last_tick_at = $2
		 RETURNING tick_number`,
		gameID, at,
	).Scan(&tick)
	if err != nil {
		return 0, fmt.Errorf("increment tick: %w", err)
	}
	return tick, nil
}

// Current returns the latest tick number without incrementing, or 0 when the
// counter has not been initialized yet.
func (r *TickRepo) Current(ctx context.Context, gameID string) (int, error) {
	var tick int
	err := r.db.QueryRowContext(ctx,
		`SELECT tick_number FROM game_ticks WHERE game_id = $1`, gameID,
	).Scan(&tick)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current tick: %w", err)
	}
	return tick, nil
}
