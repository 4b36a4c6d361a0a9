package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

// AttackRepo handles attack and combat log database operations.
type AttackRepo struct {
	db *sql.DB
}

// NewAttackRepo creates an AttackRepo.
func NewAttackRepo(db *sql.DB) *AttackRepo {
	return &AttackRepo{db: db}
}

// Create inserts an in-transit attack.
func (r *AttackRepo) Create(ctx context.Context, a *model.Attack) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO planet_attacks (id, game_id, attacker_id, source_planet_id, target_planet_id, troops, arrival_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 'in_transit')`,
		a.ID, a.GameID, a.AttackerID, a.SourceSystemID, a.TargetSystemID, a.Troops, a.ArrivalAt,
	)
	if err != nil {
		return fmt.Errorf("create attack: %w", err)
	}
	return nil
}

// ListArrivable returns in_transit attacks past their arrival time. The
// (arrival_at, id) ordering makes same-tick resolution deterministic.
func (r *AttackRepo) ListArrivable(ctx context.Context, gameID string, now time.Time) ([]model.Attack, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, attacker_id, source_planet_id, target_planet_id, troops, arrival_at, status, created_at
		 FROM planet_attacks
		 WHERE game_id = $1 AND status = 'in_transit' AND arrival_at <= $2
		 ORDER BY arrival_at ASC, id ASC`,
		gameID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list arrivable attacks: %w", err)
	}
	defer rows.Close()

	var attacks []model.Attack
	for rows.Next() {
		var a model.Attack
		if err := rows.Scan(&a.ID, &a.GameID, &a.AttackerID, &a.SourceSystemID, &a.TargetSystemID,
			&a.Troops, &a.ArrivalAt, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attack: %w", err)
		}
		attacks = append(attacks, a)
	}
	return attacks, rows.Err()
}

// ClaimTransition atomically transitions an attack out of in_transit. A
// concurrent tick that raced on the same attack gets zero rows and skips it.
func (r *AttackRepo) ClaimTransition(ctx context.Context, id, toStatus string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE planet_attacks SET status = $2 WHERE id = $1 AND status = 'in_transit'`,
		id, toStatus,
	)
	if err != nil {
		return false, fmt.Errorf("claim attack: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim attack rows: %w", err)
	}
	return n > 0, nil
}

// AppendCombatLog inserts one combat log row.
func (r *AttackRepo) AppendCombatLog(ctx context.Context, l *model.CombatLog) error {
	var defender any
	if l.DefenderID != "" {
		defender = l.DefenderID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO combat_logs (id, game_id, attacker_id, defender_id, system_id,
		   attacker_troops, defender_troops, attacker_losses, defender_losses, survivors,
		   terrain_type, had_flanking, had_elevation, was_encircled, had_defense_station,
		   combat_result, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		l.ID, l.GameID, l.AttackerID, defender, l.SystemID,
		l.AttackerTroops, l.DefenderTroops, l.AttackerLosses, l.DefenderLosses, l.Survivors,
		l.TerrainType, l.HadFlanking, l.HadElevation, l.WasEncircled, l.HadDefenseStation,
		l.CombatResult, l.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append combat log: %w", err)
	}
	return nil
}

// SumTroopsSent totals troops launched by a player across all attacks.
func (r *AttackRepo) SumTroopsSent(ctx context.Context, gameID, attackerID string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(troops), 0) FROM planet_attacks WHERE game_id = $1 AND attacker_id = $2`,
		gameID, attackerID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum troops sent: %w", err)
	}
	return total, nil
}

// CombatRecord derives wins, losses, and planets captured from the log.
func (r *AttackRepo) CombatRecord(ctx context.Context, gameID, playerID string) (int, int, int, error) {
	var won, lost, captured int
	err := r.db.QueryRowContext(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE attacker_id = $2 AND combat_result = 'attacker_victory')
		     + COUNT(*) FILTER (WHERE defender_id = $2 AND combat_result = 'defender_victory'),
		   COUNT(*) FILTER (WHERE attacker_id = $2 AND combat_result IN ('defender_victory', 'retreat'))
		     + COUNT(*) FILTER (WHERE defender_id = $2 AND combat_result = 'attacker_victory'),
		   COUNT(*) FILTER (WHERE attacker_id = $2 AND combat_result = 'attacker_victory')
		 FROM combat_logs WHERE game_id = $1`,
		gameID, playerID,
	).Scan(&won, &lost, &captured)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("combat record: %w", err)
	}
	return won, lost, captured, nil
}
