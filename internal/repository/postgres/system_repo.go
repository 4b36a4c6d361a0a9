package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

// SystemRepo handles planet and structure database operations.
type SystemRepo struct {
	db *sql.DB
}

// NewSystemRepo creates a SystemRepo.
func NewSystemRepo(db *sql.DB) *SystemRepo {
	return &SystemRepo{db: db}
}

// InsertBatch inserts generated systems in one transaction.
func (r *SystemRepo) InsertBatch(ctx context.Context, systems []model.System) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO systems (id, game_id, name, x, y, z, owner_id, troop_count, energy_generation, has_minerals, in_nebula)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return fmt.Errorf("prepare system insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range systems {
		var owner any
		if s.OwnerID != "" {
			owner = s.OwnerID
		}
		if _, err := stmt.ExecContext(ctx, s.ID, s.GameID, s.Name, s.X, s.Y, s.Z, owner,
			s.TroopCount, s.EnergyGeneration, s.HasMinerals, s.InNebula); err != nil {
			return fmt.Errorf("insert system: %w", err)
		}
	}
	return tx.Commit()
}

// ListByGame returns all systems in a game.
func (r *SystemRepo) ListByGame(ctx context.Context, gameID string) ([]model.System, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, name, x, y, z, owner_id, troop_count, energy_generation, has_minerals, in_nebula
		 FROM systems WHERE game_id = $1 ORDER BY id`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list systems: %w", err)
	}
	defer rows.Close()

	var systems []model.System
	for rows.Next() {
		var s model.System
		var owner sql.NullString
		if err := rows.Scan(&s.ID, &s.GameID, &s.Name, &s.X, &s.Y, &s.Z, &owner,
			&s.TroopCount, &s.EnergyGeneration, &s.HasMinerals, &s.InNebula); err != nil {
			return nil, fmt.Errorf("scan system: %w", err)
		}
		s.OwnerID = owner.String
		systems = append(systems, s)
	}
	return systems, rows.Err()
}

// FindByID returns a system by ID, or nil if not found.
func (r *SystemRepo) FindByID(ctx context.Context, id string) (*model.System, error) {
	var s model.System
	var owner sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, game_id, name, x, y, z, owner_id, troop_count, energy_generation, has_minerals, in_nebula
		 FROM systems WHERE id = $1`, id,
	).Scan(&s.ID, &s.GameID, &s.Name, &s.X, &s.Y, &s.Z, &owner,
		&s.TroopCount, &s.EnergyGeneration, &s.HasMinerals, &s.InNebula)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find system: %w", err)
	}
	s.OwnerID = owner.String
	return &s, nil
}

// SetTroops writes a planet's garrison count.
func (r *SystemRepo) SetTroops(ctx context.Context, id string, troops int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE systems SET troop_count = $2 WHERE id = $1`, id, troops)
	if err != nil {
		return fmt.Errorf("set troops: %w", err)
	}
	return nil
}

// SetOwner transfers a planet with its new garrison. An empty owner makes
// the planet neutral.
func (r *SystemRepo) SetOwner(ctx context.Context, id, ownerID string, troops int) error {
	var owner any
	if ownerID != "" {
		owner = ownerID
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE systems SET owner_id = $2, troop_count = $3 WHERE id = $1`, id, owner, troops)
	if err != nil {
		return fmt.Errorf("set owner: %w", err)
	}
	return nil
}

// ListStructures returns all structures in a game.
func (r *SystemRepo) ListStructures(ctx context.Context, gameID string) ([]model.SystemStructure, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, system_id, owner_id, structure_type, level, health, is_active
		 FROM structures WHERE game_id = $1 ORDER BY id`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list structures: %w", err)
	}
	defer rows.Close()

	var structures []model.SystemStructure
	for rows.Next() {
		var s model.SystemStructure
		if err := rows.Scan(&s.ID, &s.GameID, &s.SystemID, &s.OwnerID, &s.StructureType,
			&s.Level, &s.Health, &s.IsActive); err != nil {
			return nil, fmt.Errorf("scan structure: %w", err)
		}
		structures = append(structures, s)
	}
	return structures, rows.Err()
}

// CreateStructure inserts a structure row.
func (r *SystemRepo) CreateStructure(ctx context.Context, s *model.SystemStructure) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO structures (id, game_id, system_id, owner_id, structure_type, level, health, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.GameID, s.SystemID, s.OwnerID, s.StructureType, s.Level, s.Health, s.IsActive,
	)
	if err != nil {
		return fmt.Errorf("create structure: %w", err)
	}
	return nil
}

// CountStructuresBuilt returns how many structures a player built in a game.
func (r *SystemRepo) CountStructuresBuilt(ctx context.Context, gameID, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM structures WHERE game_id = $1 AND owner_id = $2`,
		gameID, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count structures: %w", err)
	}
	return count, nil
}
