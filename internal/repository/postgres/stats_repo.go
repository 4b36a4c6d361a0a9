package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

// StatsRepo writes final game statistics.
type StatsRepo struct {
	db *sql.DB
}

// NewStatsRepo creates a StatsRepo.
func NewStatsRepo(db *sql.DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// Upsert inserts stats rows, ignoring (game_id, player_id) duplicates so a
// re-entered finalization path writes nothing new.
func (r *StatsRepo) Upsert(ctx context.Context, stats []model.GameStats) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO game_stats (game_id, player_id, planets_controlled, territory_percentage,
		   troops_sent, planets_captured, combats_won, combats_lost, structures_built,
		   peak_territory_percentage, final_placement)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (game_id, player_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare stats insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range stats {
		if _, err := stmt.ExecContext(ctx, s.GameID, s.PlayerID, s.PlanetsControlled, s.TerritoryPct,
			s.TroopsSent, s.PlanetsCaptured, s.CombatsWon, s.CombatsLost, s.StructuresBuilt,
			s.PeakTerritoryPct, s.FinalPlacement); err != nil {
			return fmt.Errorf("insert stats: %w", err)
		}
	}
	return tx.Commit()
}

// CountForGame returns the number of stats rows written for a game.
func (r *StatsRepo) CountForGame(ctx context.Context, gameID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM game_stats WHERE game_id = $1`, gameID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count stats: %w", err)
	}
	return n, nil
}
