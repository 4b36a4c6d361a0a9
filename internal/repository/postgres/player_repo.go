package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

// Resource caps enforced on every mutation.
const (
	maxCredits  = 1_000_000
	maxEnergy   = 100_000
	maxMinerals = 100_000
	maxResearch = 1_000
)

// PlayerRepo handles player database operations.
type PlayerRepo struct {
	db *sql.DB
}

// NewPlayerRepo creates a PlayerRepo.
func NewPlayerRepo(db *sql.DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// Create inserts a player.
func (r *PlayerRepo) Create(ctx context.Context, username string, isBot bool, botDifficulty string) (*model.Player, error) {
	if botDifficulty == "" {
		botDifficulty = "normal"
	}
	var p model.Player
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO players (username, is_bot, bot_difficulty) VALUES ($1, $2, $3)
		 RETURNING id, username, credits, energy, minerals, research_points, is_bot, bot_difficulty`,
		username, isBot, botDifficulty,
	).Scan(&p.ID, &p.Username, &p.Credits, &p.Energy, &p.Minerals, &p.ResearchPoints, &p.IsBot, &p.BotDifficulty)
	if err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	return &p, nil
}

// FindByID returns a player by ID, or nil if not found.
func (r *PlayerRepo) FindByID(ctx context.Context, id string) (*model.Player, error) {
	var p model.Player
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, credits, energy, minerals, research_points, is_bot, bot_difficulty
		 FROM players WHERE id = $1`, id,
	).Scan(&p.ID, &p.Username, &p.Credits, &p.Energy, &p.Minerals, &p.ResearchPoints, &p.IsBot, &p.BotDifficulty)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find player: %w", err)
	}
	return &p, nil
}

// AddResources applies deltas with the caps enforced in the statement, so
// concurrent ticks can never push a balance outside [0, cap].
func (r *PlayerRepo) AddResources(ctx context.Context, id string, credits, energy, minerals, research int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE players SET
		   credits         = LEAST($2, GREATEST(0, credits + $3)),
		   energy          = LEAST($4, GREATEST(0, energy + $5)),
		   minerals        = LEAST($6, GREATEST(0, minerals + $7)),
		   research_points = LEAST($8, GREATEST(0, research_points + $9))
		 WHERE id = $1`,
		id, int64(maxCredits), credits, int64(maxEnergy), energy, int64(maxMinerals), minerals, int64(maxResearch), research,
	)
	if err != nil {
		return fmt.Errorf("add resources: %w", err)
	}
	return nil
}
