package model

import "time"

// Game statuses.
const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Victory types recorded on completed games.
const (
	VictoryPlanetControl    = "planet_control"
	VictoryTerritoryControl = "territory_control"
	VictoryAbandoned        = "abandoned"
)

// Attack statuses.
const (
	AttackInTransit  = "in_transit"
	AttackRetreating = "retreating"
	AttackArrived    = "arrived"
)

// Structure types.
const (
	StructureTradeStation    = "trade_station"
	StructureMiningStation   = "mining_station"
	StructureColonyStation   = "colony_station"
	StructureDefensePlatform = "defense_platform"
	StructureMissileBattery  = "missile_battery"
	StructurePointDefense    = "point_defense"
)

// Combat results recorded in combat logs.
const (
	ResultAttackerVictory = "attacker_victory"
	ResultDefenderVictory = "defender_victory"
	ResultRetreat         = "retreat"
)

// Game represents one match and its lifecycle state.
type Game struct {
	ID                  string       `json:"id"`
	Status              string       `json:"status"` // waiting, active, completed
	VictoryCondition    float64      `json:"victory_condition"`
	TickRateMs          int          `json:"tick_rate_ms"`
	MaxPlayers          int          `json:"max_players"`
	WinnerID            string       `json:"winner_id,omitempty"`
	VictoryType         string       `json:"victory_type,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	StartedAt           *time.Time   `json:"started_at,omitempty"`
	EndedAt             *time.Time   `json:"ended_at,omitempty"`
	GameDurationSeconds *int         `json:"game_duration_seconds,omitempty"`
	Players             []GamePlayer `json:"players,omitempty"`
}

// GamePlayer represents a player's membership in a game. The host is the
// participant with the lowest placement order.
type GamePlayer struct {
	GameID            string     `json:"game_id"`
	PlayerID          string     `json:"player_id"`
	EmpireColor       string     `json:"empire_color"`
	PlacementOrder    int        `json:"placement_order"`
	IsReady           bool       `json:"is_ready"`
	IsAlive           bool       `json:"is_alive"`
	IsEliminated      bool       `json:"is_eliminated"`
	EliminatedAt      *time.Time `json:"eliminated_at,omitempty"`
	IsActive          bool       `json:"is_active"`
	LastSeen          time.Time  `json:"last_seen"`
	PeakTerritoryPct  float64    `json:"peak_territory_pct"`
	FinalPlacement    *int       `json:"final_placement,omitempty"`
	FinalTerritoryPct *float64   `json:"final_territory_percentage,omitempty"`
}

// Player is shared across games; per-game state lives on GamePlayer.
type Player struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Credits        int64  `json:"credits"`
	Energy         int64  `json:"energy"`
	Minerals       int64  `json:"minerals"`
	ResearchPoints int64  `json:"research_points"`
	IsBot          bool   `json:"is_bot"`
	BotDifficulty  string `json:"bot_difficulty"` // easy, normal, hard
}

// System is a planet: a positioned garrison-producing node and the unit of
// ownership. An empty OwnerID means neutral.
type System struct {
	ID               string  `json:"id"`
	GameID           string  `json:"game_id"`
	Name             string  `json:"name"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Z                float64 `json:"z"`
	OwnerID          string  `json:"owner_id,omitempty"`
	TroopCount       int     `json:"troop_count"`
	EnergyGeneration int     `json:"energy_generation"`
	HasMinerals      bool    `json:"has_minerals"`
	InNebula         bool    `json:"in_nebula"`
}

// Attack is an in-flight troop movement. The tick processor resolves it once
// ArrivalAt has passed while the status is still in_transit.
type Attack struct {
	ID             string    `json:"id"`
	GameID         string    `json:"game_id"`
	AttackerID     string    `json:"attacker_id"`
	SourceSystemID string    `json:"source_planet_id"`
	TargetSystemID string    `json:"target_planet_id"`
	Troops         int       `json:"troops"`
	ArrivalAt      time.Time `json:"arrival_at"`
	Status         string    `json:"status"` // in_transit, retreating, arrived
	CreatedAt      time.Time `json:"created_at"`
}

// SystemStructure is a station built on a planet. Inactive structures are
// ignored by the tick processor.
type SystemStructure struct {
	ID            string `json:"id"`
	GameID        string `json:"game_id"`
	SystemID      string `json:"system_id"`
	OwnerID       string `json:"owner_id"`
	StructureType string `json:"structure_type"`
	Level         int    `json:"level"`
	Health        int    `json:"health"`
	IsActive      bool   `json:"is_active"`
}

// TerritorySector is a 10-unit cubelet of painted territory owned by the
// planet that expanded into it. Sectors are never deleted during a game;
// capture flips the owner.
type TerritorySector struct {
	ID                 string    `json:"id"`
	GameID             string    `json:"game_id"`
	X                  float64   `json:"x"`
	Y                  float64   `json:"y"`
	Z                  float64   `json:"z"`
	OwnerID            string    `json:"owner_id,omitempty"`
	ControlledByID     string    `json:"controlled_by_planet_id"`
	CapturedAt         time.Time `json:"captured_at"`
	ExpansionTier      int       `json:"expansion_tier"` // 1..3
	ExpansionWave      int       `json:"expansion_wave"`
	DistanceFromPlanet float64   `json:"distance_from_planet"`
}

// CombatLog is an append-only record of one resolved attack.
type CombatLog struct {
	ID                string    `json:"id"`
	GameID            string    `json:"game_id"`
	AttackerID        string    `json:"attacker_id"`
	DefenderID        string    `json:"defender_id,omitempty"`
	SystemID          string    `json:"system_id"`
	AttackerTroops    int       `json:"attacker_troops"`
	DefenderTroops    int       `json:"defender_troops"`
	AttackerLosses    int       `json:"attacker_losses"`
	DefenderLosses    int       `json:"defender_losses"`
	Survivors         int       `json:"survivors"`
	TerrainType       string    `json:"terrain_type"` // space, nebula, asteroid
	HadFlanking       bool      `json:"had_flanking"`
	HadElevation      bool      `json:"had_elevation"`
	WasEncircled      bool      `json:"was_encircled"`
	HadDefenseStation bool      `json:"had_defense_station"`
	CombatResult      string    `json:"combat_result"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// GameTick holds the per-game serialized tick counter.
type GameTick struct {
	GameID     string    `json:"game_id"`
	TickNumber int       `json:"tick_number"`
	LastTickAt time.Time `json:"last_tick_at"`
}

// GameStats is the final per-player summary, written once at completion.
type GameStats struct {
	GameID            string  `json:"game_id"`
	PlayerID          string  `json:"player_id"`
	PlanetsControlled int     `json:"planets_controlled"`
	TerritoryPct      float64 `json:"territory_percentage"`
	TroopsSent        int     `json:"troops_sent"`
	PlanetsCaptured   int     `json:"planets_captured"`
	CombatsWon        int     `json:"combats_won"`
	CombatsLost       int     `json:"combats_lost"`
	StructuresBuilt   int     `json:"structures_built"`
	PeakTerritoryPct  float64 `json:"peak_territory_percentage"`
	FinalPlacement    int     `json:"final_placement"`
}

// TickResult summarizes one tick invocation for the endpoint response.
type TickResult struct {
	Tick             int     `json:"tick"`
	PlanetsProcessed int     `json:"planetsProcessed"`
	AttacksProcessed int     `json:"attacksProcessed"`
	SectorsCreated   int     `json:"sectorsCreated"`
	GameComplete     bool    `json:"gameComplete,omitempty"`
	WinnerID         string  `json:"winner,omitempty"`
	WinningPct       float64 `json:"winningPercentage,omitempty"`
	SkipReason       string  `json:"-"`
}
