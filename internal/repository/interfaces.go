package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

// GameRepository defines game and game_player data operations.
type GameRepository interface {
	Create(ctx context.Context, victoryCondition float64, tickRateMs, maxPlayers int) (*model.Game, error)
	FindByID(ctx context.Context, id string) (*model.Game, error)
	ListActive(ctx context.Context) ([]model.Game, error)
	Start(ctx context.Context, gameID string, at time.Time) error
	AddPlayer(ctx context.Context, gameID, playerID, empireColor string, placementOrder int) error
	ListPlayers(ctx context.Context, gameID string) ([]model.GamePlayer, error)

	// CompleteIfOngoing performs the guarded transition to completed from any
	// not-yet-completed status. Victory reaches it only for active games;
	// abandonment may also close a waiting lobby. Returns false when the
	// guard matched zero rows (another tick won).
	CompleteIfOngoing(ctx context.Context, gameID, winnerID, victoryType string, endedAt time.Time, durationSeconds int) (bool, error)

	Heartbeat(ctx context.Context, gameID, playerID string, at time.Time) error
	MarkInactive(ctx context.Context, gameID, playerID string) error

	// EliminatePlayer flips an alive participant to eliminated; returns false
	// if the player was already eliminated or dead.
	EliminatePlayer(ctx context.Context, gameID, playerID string, at time.Time) (bool, error)

	UpdatePlacementOrders(ctx context.Context, gameID string, orders map[string]int) error

	// RaisePeakTerritory updates peak_territory_pct only when pct exceeds the
	// stored value.
	RaisePeakTerritory(ctx context.Context, gameID, playerID string, pct float64) error
	SetFinalResult(ctx context.Context, gameID, playerID string, placement int, territoryPct float64) error
}

// PlayerRepository defines player data operations. Resource mutations are
// clamped server-side to the documented caps.
type PlayerRepository interface {
	Create(ctx context.Context, username string, isBot bool, botDifficulty string) (*model.Player, error)
	FindByID(ctx context.Context, id string) (*model.Player, error)
	AddResources(ctx context.Context, id string, credits, energy, minerals, research int64) error
}

// SystemRepository defines planet and structure data operations.
type SystemRepository interface {
	InsertBatch(ctx context.Context, systems []model.System) error
	ListByGame(ctx context.Context, gameID string) ([]model.System, error)
	FindByID(ctx context.Context, id string) (*model.System, error)
	SetTroops(ctx context.Context, id string, troops int) error
	SetOwner(ctx context.Context, id, ownerID string, troops int) error

	ListStructures(ctx context.Context, gameID string) ([]model.SystemStructure, error)
	CreateStructure(ctx context.Context, s *model.SystemStructure) error
	CountStructuresBuilt(ctx context.Context, gameID, ownerID string) (int, error)
}

// AttackRepository defines attack and combat log data operations.
type AttackRepository interface {
	Create(ctx context.Context, a *model.Attack) error

	// ListArrivable returns in_transit attacks whose arrival time has passed,
	// in stable (arrival_at asc, id asc) order.
	ListArrivable(ctx context.Context, gameID string, now time.Time) ([]model.Attack, error)

	// ClaimTransition atomically moves an attack from in_transit to the given
	// status. Returns false when another tick already claimed it.
	ClaimTransition(ctx context.Context, id, toStatus string) (bool, error)

	AppendCombatLog(ctx context.Context, l *model.CombatLog) error
	SumTroopsSent(ctx context.Context, gameID, attackerID string) (int, error)

	// CombatRecord returns wins, losses, and planets captured for a player
	// from the combat log.
	CombatRecord(ctx context.Context, gameID, playerID string) (won, lost, captured int, err error)
}

// TerritoryRepository defines territory sector data operations. Sector rows
// are append-only; ownership flips on planet capture.
type TerritoryRepository interface {
	ListByGame(ctx context.Context, gameID string) ([]model.TerritorySector, error)
	InsertBatch(ctx context.Context, sectors []model.TerritorySector) error
	ReassignPlanetSectors(ctx context.Context, planetID, newOwnerID string, at time.Time) error
}

// TickRepository produces monotonically increasing tick numbers per game.
type TickRepository interface {
	Increment(ctx context.Context, gameID string, at time.Time) (int, error)
	Current(ctx context.Context, gameID string) (int, error)
}

// StatsRepository writes final game statistics. Upsert ignores duplicate
// (game_id, player_id) rows so finalization is idempotent.
type StatsRepository interface {
	Upsert(ctx context.Context, stats []model.GameStats) error

	// CountForGame reports how many stats rows exist for a game. Zero on a
	// completed game means a finalization write was lost.
	CountForGame(ctx context.Context, gameID string) (int, error)
}

// LiveCache defines transient shared state (Redis): last tick results,
// driver tick locks, and presence heartbeats. Correctness never depends on
// it; every value can be lost and rebuilt from Postgres.
type LiveCache interface {
	SetTickResult(ctx context.Context, gameID string, result json.RawMessage) error
	GetTickResult(ctx context.Context, gameID string) (json.RawMessage, error)
	TryTickLock(ctx context.Context, gameID string, ttl time.Duration) (bool, error)
	ReleaseTickLock(ctx context.Context, gameID string) error
	Heartbeat(ctx context.Context, gameID, playerID string, ttl time.Duration) error
	DeleteGameData(ctx context.Context, gameID string) error
}
