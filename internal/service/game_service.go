package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Dorschm/stellar-sub001/internal/bot"
	"github.com/Dorschm/stellar-sub001/internal/galaxy"
	"github.com/Dorschm/stellar-sub001/internal/model"
	"github.com/Dorschm/stellar-sub001/internal/repository"
)

// Lifecycle and command errors mapped to 4xx responses by handlers.
var (
	ErrGameNotFound        = errors.New("game not found")
	ErrGameNotJoinable     = errors.New("game is not accepting players")
	ErrGameFull            = errors.New("game is full")
	ErrGameNotStartable    = errors.New("game cannot be started")
	ErrNotEnoughPlayers    = errors.New("not enough players to start")
	ErrNotPlanetOwner      = errors.New("planet is not owned by player")
	ErrInsufficientTroops  = errors.New("not enough troops")
	ErrInsufficientCredits = errors.New("not enough credits")
	ErrUnknownStructure    = errors.New("unknown structure type")
)

var empireColors = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c",
}

// GameService handles the game lifecycle around the tick loop: creation,
// joining, starting with galaxy seeding, presence, and player commands.
type GameService struct {
	games     repository.GameRepository
	players   repository.PlayerRepository
	systems   repository.SystemRepository
	attacks   repository.AttackRepository
	territory repository.TerritoryRepository
	ticks     repository.TickRepository
	cache     repository.LiveCache
	bc        Broadcaster
	log       zerolog.Logger
	rng       *rand.Rand
}

// NewGameService wires a game lifecycle service. cache may be nil; bc
// defaults to a no-op; rng defaults to time-seeded.
func NewGameService(
	games repository.GameRepository,
	players repository.PlayerRepository,
	systems repository.SystemRepository,
	attacks repository.AttackRepository,
	territory repository.TerritoryRepository,
	ticks repository.TickRepository,
	cache repository.LiveCache,
	bc Broadcaster,
	log zerolog.Logger,
	rng *rand.Rand,
) *GameService {
	if bc == nil {
		bc = NoopBroadcaster{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &GameService{
		games:     games,
		players:   players,
		systems:   systems,
		attacks:   attacks,
		territory: territory,
		ticks:     ticks,
		cache:     cache,
		bc:        bc,
		log:       log,
		rng:       rng,
	}
}

// CreateGame creates a waiting lobby. Zero values fall back to the defaults
// enforced by the store's check constraints.
func (s *GameService) CreateGame(ctx context.Context, victoryCondition float64, tickRateMs, maxPlayers int) (*model.Game, error) {
	if victoryCondition == 0 {
		victoryCondition = 80
	}
	if tickRateMs == 0 {
		tickRateMs = 100
	}
	if maxPlayers == 0 {
		maxPlayers = 8
	}
	game, err := s.games.Create(ctx, victoryCondition, tickRateMs, maxPlayers)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	s.log.Info().Str("game_id", game.ID).Msg("game created")
	return game, nil
}

// Get returns a game with its participants.
func (s *GameService) Get(ctx context.Context, gameID string) (*model.Game, error) {
	game, err := s.games.FindByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	players, err := s.games.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	game.Players = players
	return game, nil
}

// ListActive returns games currently in progress.
func (s *GameService) ListActive(ctx context.Context) ([]model.Game, error) {
	return s.games.ListActive(ctx)
}

// Join adds a player to a waiting lobby. The first join becomes the host.
func (s *GameService) Join(ctx context.Context, gameID, playerID string) error {
	game, players, err := s.lobby(ctx, gameID)
	if err != nil {
		return err
	}
	if game.Status != model.StatusWaiting {
		return ErrGameNotJoinable
	}
	if len(players) >= game.MaxPlayers {
		return ErrGameFull
	}
	order := len(players) + 1
	color := empireColors[(order-1)%len(empireColors)]
	if err := s.games.AddPlayer(ctx, gameID, playerID, color, order); err != nil {
		return fmt.Errorf("join game: %w", err)
	}
	s.bc.BroadcastToGame(gameID, "player_joined", map[string]any{"playerId": playerID})
	return nil
}

// AddBot creates a bot player and seats it in the lobby.
func (s *GameService) AddBot(ctx context.Context, gameID, difficulty string) (*model.Player, error) {
	game, players, err := s.lobby(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status != model.StatusWaiting {
		return nil, ErrGameNotJoinable
	}
	if len(players) >= game.MaxPlayers {
		return nil, ErrGameFull
	}
	name := fmt.Sprintf("Bot %d", len(players)+1)
	p, err := s.players.Create(ctx, name, true, difficulty)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	order := len(players) + 1
	color := empireColors[(order-1)%len(empireColors)]
	if err := s.games.AddPlayer(ctx, gameID, p.ID, color, order); err != nil {
		return nil, fmt.Errorf("seat bot: %w", err)
	}
	return p, nil
}

// Start seeds the galaxy, assigns homeworlds, and flips the game active.
func (s *GameService) Start(ctx context.Context, gameID string) error {
	game, players, err := s.lobby(ctx, gameID)
	if err != nil {
		return err
	}
	if game.Status != model.StatusWaiting {
		return ErrGameNotStartable
	}
	if len(players) < 2 {
		return ErrNotEnoughPlayers
	}

	systems := galaxy.Generate(gameID, len(players), s.rng)
	ids := make([]string, len(players))
	for i, gp := range players {
		ids[i] = gp.PlayerID
	}
	galaxy.AssignHomeworlds(systems, ids, s.rng)

	if err := s.systems.InsertBatch(ctx, systems); err != nil {
		return fmt.Errorf("seed galaxy: %w", err)
	}
	if err := s.games.Start(ctx, gameID, time.Now().UTC()); err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	s.log.Info().Str("game_id", gameID).Int("players", len(players)).Int("systems", len(systems)).Msg("game started")
	s.bc.BroadcastToGame(gameID, "game_started", map[string]any{"systems": len(systems)})
	return nil
}

// Heartbeat refreshes a player's presence in both the store and the cache.
func (s *GameService) Heartbeat(ctx context.Context, gameID, playerID string) error {
	if err := s.games.Heartbeat(ctx, gameID, playerID, time.Now().UTC()); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Heartbeat(ctx, gameID, playerID, activeWindow); err != nil {
			s.log.Warn().Err(err).Str("player_id", playerID).Msg("cache heartbeat failed")
		}
	}
	return nil
}

// MarkInactive flags a player as away, typically from a browser unload
// beacon.
func (s *GameService) MarkInactive(ctx context.Context, gameID, playerID string) error {
	if err := s.games.MarkInactive(ctx, gameID, playerID); err != nil {
		return fmt.Errorf("mark inactive: %w", err)
	}
	return nil
}

// LatestTick returns the cached result of the most recent tick, falling back
// to the persisted counter when the cache is cold.
func (s *GameService) LatestTick(ctx context.Context, gameID string) (json.RawMessage, error) {
	if s.cache != nil {
		data, err := s.cache.GetTickResult(ctx, gameID)
		if err != nil {
			s.log.Warn().Err(err).Str("game_id", gameID).Msg("tick cache read failed")
		}
		if data != nil {
			return data, nil
		}
	}
	tick, err := s.ticks.Current(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("current tick: %w", err)
	}
	return json.Marshal(model.TickResult{Tick: tick})
}

// LaunchAttack sends troops from an owned planet. Arrival scales with
// distance; the tick processor resolves the landing.
func (s *GameService) LaunchAttack(ctx context.Context, gameID, playerID, sourceID, targetID string, troops int) (*model.Attack, error) {
	source, err := s.systems.FindByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	target, err := s.systems.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	if source == nil || target == nil {
		return nil, ErrGameNotFound
	}
	if source.OwnerID != playerID {
		return nil, ErrNotPlanetOwner
	}
	if troops <= 0 || troops > source.TroopCount {
		return nil, ErrInsufficientTroops
	}

	now := time.Now().UTC()
	attack := &model.Attack{
		ID:             uuid.NewString(),
		GameID:         gameID,
		AttackerID:     playerID,
		SourceSystemID: sourceID,
		TargetSystemID: targetID,
		Troops:         troops,
		ArrivalAt:      now.Add(travelDuration(systemDistance(source, target))),
		Status:         model.AttackInTransit,
		CreatedAt:      now,
	}
	if err := s.attacks.Create(ctx, attack); err != nil {
		return nil, fmt.Errorf("create attack: %w", err)
	}
	if err := s.systems.SetTroops(ctx, sourceID, source.TroopCount-troops); err != nil {
		return nil, fmt.Errorf("debit source: %w", err)
	}
	s.bc.BroadcastToGame(gameID, "attack_launched", attack)
	return attack, nil
}

// BuildStructure erects a station on an owned planet, charging the player's
// credits.
func (s *GameService) BuildStructure(ctx context.Context, gameID, playerID, systemID, structureType string) (*model.SystemStructure, error) {
	cost, ok := bot.StructureCost[structureType]
	if !ok {
		switch structureType {
		case model.StructureTradeStation, model.StructureDefensePlatform,
			model.StructureMissileBattery, model.StructurePointDefense:
			cost = 50000
		default:
			return nil, ErrUnknownStructure
		}
	}

	sys, err := s.systems.FindByID(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("load system: %w", err)
	}
	if sys == nil {
		return nil, ErrGameNotFound
	}
	if sys.OwnerID != playerID {
		return nil, ErrNotPlanetOwner
	}
	p, err := s.players.FindByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("load player: %w", err)
	}
	if p == nil || p.Credits < cost {
		return nil, ErrInsufficientCredits
	}

	st := &model.SystemStructure{
		ID:            uuid.NewString(),
		GameID:        gameID,
		SystemID:      systemID,
		OwnerID:       playerID,
		StructureType: structureType,
		Level:         1,
		Health:        100,
		IsActive:      true,
	}
	if err := s.systems.CreateStructure(ctx, st); err != nil {
		return nil, fmt.Errorf("create structure: %w", err)
	}
	if err := s.players.AddResources(ctx, playerID, -cost, 0, 0, 0); err != nil {
		return nil, fmt.Errorf("charge credits: %w", err)
	}
	s.bc.BroadcastToGame(gameID, "structure_built", st)
	return st, nil
}

func (s *GameService) lobby(ctx context.Context, gameID string) (*model.Game, []model.GamePlayer, error) {
	game, err := s.games.FindByID(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("load game: %w", err)
	}
	if game == nil {
		return nil, nil, ErrGameNotFound
	}
	players, err := s.games.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("load players: %w", err)
	}
	return game, players, nil
}
