package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

// TerritoryRepo handles territory sector database operations.
type TerritoryRepo struct {
	db *sql.DB
}

// NewTerritoryRepo creates a TerritoryRepo.
func NewTerritoryRepo(db *sql.DB) *TerritoryRepo {
	return &TerritoryRepo{db: db}
}

// ListByGame returns all sectors in a game.
func (r *TerritoryRepo) ListByGame(ctx context.Context, gameID string) ([]model.TerritorySector, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, x, y, z, owner_id, controlled_by_planet_id, captured_at,
		        expansion_tier, expansion_wave, distance_from_planet
		 FROM territory_sectors WHERE game_id = $1 ORDER BY id`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sectors: %w", err)
	}
	defer rows.Close()

	var sectors []model.TerritorySector
	for rows.Next() {
		var s model.TerritorySector
		var owner sql.NullString
		if err := rows.Scan(&s.ID, &s.GameID, &s.X, &s.Y, &s.Z, &owner, &s.ControlledByID,
			&s.CapturedAt, &s.ExpansionTier, &s.ExpansionWave, &s.DistanceFromPlanet); err != nil {
			return nil, fmt.Errorf("scan sector: %w", err)
		}
		s.OwnerID = owner.String
		sectors = append(sectors, s)
	}
	return sectors, rows.Err()
}

// InsertBatch inserts a wave of new sectors in one transaction.
func (r *TerritoryRepo) InsertBatch(ctx context.Context, sectors []model.TerritorySector) error {
	if len(sectors) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO territory_sectors (id, game_id, x, y, z, owner_id, controlled_by_planet_id,
		   captured_at, expansion_tier, expansion_wave, distance_from_planet)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return fmt.Errorf("prepare sector insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range sectors {
		if _, err := stmt.ExecContext(ctx, s.ID, s.GameID, s.X, s.Y, s.Z, s.OwnerID,
			s.ControlledByID, s.CapturedAt, s.ExpansionTier, s.ExpansionWave, s.DistanceFromPlanet); err != nil {
			return fmt.Errorf("insert sector: %w", err)
		}
	}
	return tx.Commit()
}

// ReassignPlanetSectors flips every sector painted by a captured planet to
// the new owner and refreshes the capture time.
func (r *TerritoryRepo) ReassignPlanetSectors(ctx context.Context, planetID, newOwnerID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE territory_sectors SET owner_id = $2, captured_at = $3 WHERE controlled_by_planet_id = $1`,
		planetID, newOwnerID, at,
	)
	if err != nil {
		return fmt.Errorf("reassign sectors: %w", err)
	}
	return nil
}
