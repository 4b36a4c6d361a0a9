package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

// GameRepo handles game and game_player database operations.
type GameRepo struct {
	db *sql.DB
}

// NewGameRepo creates a GameRepo.
func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{db: db}
}

// Create inserts a new game in waiting status.
func (r *GameRepo) Create(ctx context.Context, victoryCondition float64, tickRateMs, maxPlayers int) (*model.Game, error) {
	var g model.Game
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO games (victory_condition, tick_rate_ms, max_players)
		 VALUES ($1, $2, $3)
		 RETURNING id, status, victory_condition, tick_rate_ms, max_players, created_at`,
		victoryCondition, tickRateMs, maxPlayers,
	).Scan(&g.ID, &g.Status, &g.VictoryCondition, &g.TickRateMs, &g.MaxPlayers, &g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return &g, nil
}

// FindByID returns a game by ID with its players, or nil if not found.
func (r *GameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	var g model.Game
	var winner, victoryType sql.NullString
	var duration sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, victory_condition, tick_rate_ms, max_players, winner_id,
		        victory_type, created_at, started_at, ended_at, game_duration_seconds
		 FROM games WHERE id = $1`, id,
	).Scan(&g.ID, &g.Status, &g.VictoryCondition, &g.TickRateMs, &g.MaxPlayers, &winner,
		&victoryType, &g.CreatedAt, &g.StartedAt, &g.EndedAt, &duration)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	g.WinnerID = winner.String
	g.VictoryType = victoryType.String
	if duration.Valid {
		d := int(duration.Int64)
		g.GameDurationSeconds = &d
	}

	players, err := r.ListPlayers(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Players = players
	return &g, nil
}

// ListActive returns all games with status 'active', without players.
func (r *GameRepo) ListActive(ctx context.Context) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, victory_condition, tick_rate_ms, max_players, created_at, started_at
		 FROM games WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		var g model.Game
		if err := rows.Scan(&g.ID, &g.Status, &g.VictoryCondition, &g.TickRateMs, &g.MaxPlayers, &g.CreatedAt, &g.StartedAt); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// Start transitions a waiting game to active.
func (r *GameRepo) Start(ctx context.Context, gameID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE games SET status = 'active', started_at = $2 WHERE id = $1 AND status = 'waiting'`,
		gameID, at,
	)
	if err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("start game: game %s not in waiting status", gameID)
	}
	return nil
}

// AddPlayer inserts a participant row.
func (r *GameRepo) AddPlayer(ctx context.Context, gameID, playerID, empireColor string, placementOrder int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_players (game_id, player_id, empire_color, placement_order, last_seen)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (game_id, player_id) DO NOTHING`,
		gameID, playerID, empireColor, placementOrder,
	)
	if err != nil {
		return fmt.Errorf("add player: %w", err)
	}
	return nil
}

// ListPlayers returns all participants ordered by placement.
func (r *GameRepo) ListPlayers(ctx context.Context, gameID string) ([]model.GamePlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT game_id, player_id, empire_color, placement_order, is_ready, is_alive,
		        is_eliminated, eliminated_at, is_active, last_seen, peak_territory_pct,
		        final_placement, final_territory_percentage
		 FROM game_players WHERE game_id = $1 ORDER BY placement_order`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []model.GamePlayer
	for rows.Next() {
		var p model.GamePlayer
		var placement sql.NullInt64
		var territory sql.NullFloat64
		if err := rows.Scan(&p.GameID, &p.PlayerID, &p.EmpireColor, &p.PlacementOrder, &p.IsReady,
			&p.IsAlive, &p.IsEliminated, &p.EliminatedAt, &p.IsActive, &p.LastSeen,
			&p.PeakTerritoryPct, &placement, &territory); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		if placement.Valid {
			v := int(placement.Int64)
			p.FinalPlacement = &v
		}
		if territory.Valid {
			v := territory.Float64
			p.FinalTerritoryPct = &v
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// CompleteIfOngoing performs the guarded transition to completed. The guard
// admits both active games (victory) and waiting lobbies (abandonment), and
// is one of the two serialization points: only a single tick can win the
// update, so stats are finalized exactly once.
func (r *GameRepo) CompleteIfOngoing(ctx context.Context, gameID, winnerID, victoryType string, endedAt time.Time, durationSeconds int) (bool, error) {
	var winner any
	if winnerID != "" {
		winner = winnerID
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE games
		 SET status = 'completed', winner_id = $2, victory_type = $3, ended_at = $4, game_duration_seconds = $5
		 WHERE id = $1 AND status <> 'completed'`,
		gameID, winner, victoryType, endedAt, durationSeconds,
	)
	if err != nil {
		return false, fmt.Errorf("complete game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete game rows: %w", err)
	}
	return n > 0, nil
}

// Heartbeat refreshes a participant's presence.
func (r *GameRepo) Heartbeat(ctx context.Context, gameID, playerID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE game_players SET is_active = true, last_seen = $3 WHERE game_id = $1 AND player_id = $2`,
		gameID, playerID, at,
	)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// MarkInactive clears the presence flag, typically from an unload beacon.
func (r *GameRepo) MarkInactive(ctx context.Context, gameID, playerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE game_players SET is_active = false WHERE game_id = $1 AND player_id = $2`,
		gameID, playerID,
	)
	if err != nil {
		return fmt.Errorf("mark inactive: %w", err)
	}
	return nil
}

// EliminatePlayer flips an alive participant to eliminated. The guard keeps
// eliminated_at stable when two ticks race on the same player.
func (r *GameRepo) EliminatePlayer(ctx context.Context, gameID, playerID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE game_players
		 SET is_eliminated = true, is_alive = false, eliminated_at = $3
		 WHERE game_id = $1 AND player_id = $2 AND is_alive = true AND is_eliminated = false`,
		gameID, playerID, at,
	)
	if err != nil {
		return false, fmt.Errorf("eliminate player: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("eliminate player rows: %w", err)
	}
	return n > 0, nil
}

// UpdatePlacementOrders rewrites placement orders after host promotion.
func (r *GameRepo) UpdatePlacementOrders(ctx context.Context, gameID string, orders map[string]int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for playerID, order := range orders {
		if _, err := tx.ExecContext(ctx,
			`UPDATE game_players SET placement_order = $3 WHERE game_id = $1 AND player_id = $2`,
			gameID, playerID, order,
		); err != nil {
			return fmt.Errorf("update placement order: %w", err)
		}
	}
	return tx.Commit()
}

// RaisePeakTerritory records the running maximum territory share.
func (r *GameRepo) RaisePeakTerritory(ctx context.Context, gameID, playerID string, pct float64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE game_players SET peak_territory_pct = GREATEST(peak_territory_pct, $3)
		 WHERE game_id = $1 AND player_id = $2`,
		gameID, playerID, pct,
	)
	if err != nil {
		return fmt.Errorf("raise peak territory: %w", err)
	}
	return nil
}

// SetFinalResult writes final placement and territory share at completion.
func (r *GameRepo) SetFinalResult(ctx context.Context, gameID, playerID string, placement int, territoryPct float64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE game_players SET final_placement = $3, final_territory_percentage = $4
		 WHERE game_id = $1 AND player_id = $2`,
		gameID, playerID, placement, territoryPct,
	)
	if err != nil {
		return fmt.Errorf("set final result: %w", err)
	}
	return nil
}
