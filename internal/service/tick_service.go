package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/Dorschm/stellar-sub001/internal/model"
	"github.com/Dorschm/stellar-sub001/internal/repository"
)

// Skip reasons surfaced to the tick endpoint when no processing happens.
const (
	SkipCompleted = "Game already completed"
	SkipNotActive = "Game not active"
	SkipAbandoned = "Game abandoned due to inactivity"
)

// TickService advances a game by one tick. It is logically single-threaded
// per invocation but safe to run concurrently with another invocation for
// the same game: the tick counter and the completion update are the only
// serialization points, everything else is last-writer-wins under clamps.
type TickService struct {
	games     repository.GameRepository
	players   repository.PlayerRepository
	systems   repository.SystemRepository
	attacks   repository.AttackRepository
	territory repository.TerritoryRepository
	ticks     repository.TickRepository
	stats     repository.StatsRepository
	cache     repository.LiveCache
	bc        Broadcaster
	log       zerolog.Logger

	// BotRand pins bot decisions in tests; nil means time-seeded.
	BotRand *rand.Rand
}

// NewTickService wires a tick processor. cache may be nil; bc may be nil and
// defaults to a no-op.
func NewTickService(
	games repository.GameRepository,
	players repository.PlayerRepository,
	systems repository.SystemRepository,
	attacks repository.AttackRepository,
	territory repository.TerritoryRepository,
	ticks repository.TickRepository,
	stats repository.StatsRepository,
	cache repository.LiveCache,
	bc Broadcaster,
	log zerolog.Logger,
) *TickService {
	if bc == nil {
		bc = NoopBroadcaster{}
	}
	return &TickService{
		games:     games,
		players:   players,
		systems:   systems,
		attacks:   attacks,
		territory: territory,
		ticks:     ticks,
		stats:     stats,
		cache:     cache,
		bc:        bc,
		log:       log,
	}
}

// tickWorld is the per-invocation snapshot. Attack resolution mutates it so
// later same-tick attacks see earlier captures.
type tickWorld struct {
	game       *model.Game
	players    []model.GamePlayer
	systems    []model.System
	sysByID    map[string]*model.System
	structures []model.SystemStructure
	sectors    []model.TerritorySector
	playerRows map[string]*model.Player
	now        time.Time
	tick       int
}

func (w *tickWorld) system(id string) *model.System {
	return w.sysByID[id]
}

func (w *tickWorld) planetCount(playerID string) int {
	n := 0
	for i := range w.systems {
		if w.systems[i].OwnerID == playerID {
			n++
		}
	}
	return n
}

func (w *tickWorld) sectorCount(playerID string) int {
	n := 0
	for i := range w.sectors {
		if w.sectors[i].OwnerID == playerID {
			n++
		}
	}
	return n
}

// ProcessTick runs one full tick for the game. Phase failures are logged and
// the remaining phases continue; the next tick re-reads and retries. Wall
// clock is sampled once per invocation.
func (s *TickService) ProcessTick(ctx context.Context, gameID string) (*model.TickResult, error) {
	now := time.Now().UTC()

	game, err := s.games.FindByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	if game == nil {
		return nil, fmt.Errorf("game %s not found", gameID)
	}
	if game.Status == model.StatusCompleted {
		if err := s.ensureFinalStats(ctx, game, now); err != nil {
			s.log.Error().Err(err).Str("game_id", gameID).Msg("final stats backfill failed")
		}
		return &model.TickResult{SkipReason: SkipCompleted}, nil
	}

	gamePlayers, err := s.games.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}

	w := &tickWorld{game: game, players: gamePlayers, now: now}

	// Presence runs for waiting lobbies too: a lobby everyone walked away
	// from is abandoned the same way an active game is.
	abandoned, err := s.updatePresence(ctx, w)
	if err != nil {
		s.log.Error().Err(err).Str("game_id", gameID).Msg("presence update failed")
	}
	if abandoned {
		return &model.TickResult{SkipReason: SkipAbandoned}, nil
	}

	if game.Status != model.StatusActive {
		return &model.TickResult{SkipReason: SkipNotActive}, nil
	}

	tick, err := s.ticks.Increment(ctx, gameID, now)
	if err != nil {
		return nil, fmt.Errorf("increment tick: %w", err)
	}
	w.tick = tick

	if err := s.loadWorld(ctx, w); err != nil {
		return nil, err
	}

	result := &model.TickResult{Tick: tick}

	result.PlanetsProcessed = s.applyGrowth(ctx, w)
	result.AttacksProcessed = s.resolveAttacks(ctx, w)
	result.SectorsCreated = s.expandTerritory(ctx, w)

	if err := s.eliminateDefeated(ctx, w); err != nil {
		s.log.Error().Err(err).Str("game_id", gameID).Msg("elimination failed")
	}

	winnerID, victoryType, winningPct := s.checkVictory(ctx, w)
	if winnerID != "" {
		won, err := s.finalizeGame(ctx, w, winnerID, victoryType)
		if err != nil {
			// The guarded update may already have flipped the game; a lost
			// stats write is repaired by ensureFinalStats next tick.
			s.log.Error().Err(err).Str("game_id", gameID).Msg("finalization failed")
		}
		if won {
			result.GameComplete = true
			result.WinnerID = winnerID
			result.WinningPct = winningPct
		}
	}

	if !result.GameComplete {
		if err := s.generateResources(ctx, w); err != nil {
			s.log.Error().Err(err).Str("game_id", gameID).Msg("resource generation failed")
		}
		s.runBots(ctx, w)
	}

	s.publishResult(ctx, gameID, result)

	s.log.Debug().
		Str("game_id", gameID).
		Int("tick", tick).
		Int("planets", result.PlanetsProcessed).
		Int("attacks", result.AttacksProcessed).
		Int("sectors", result.SectorsCreated).
		Msg("tick processed")

	return result, nil
}

func (s *TickService) loadWorld(ctx context.Context, w *tickWorld) error {
	systems, err := s.systems.ListByGame(ctx, w.game.ID)
	if err != nil {
		return fmt.Errorf("load systems: %w", err)
	}
	structures, err := s.systems.ListStructures(ctx, w.game.ID)
	if err != nil {
		return fmt.Errorf("load structures: %w", err)
	}
	sectors, err := s.territory.ListByGame(ctx, w.game.ID)
	if err != nil {
		return fmt.Errorf("load sectors: %w", err)
	}

	w.systems = systems
	w.structures = structures
	w.sectors = sectors
	w.sysByID = make(map[string]*model.System, len(systems))
	for i := range w.systems {
		w.sysByID[w.systems[i].ID] = &w.systems[i]
	}
	return nil
}

// applyGrowth advances every owned garrison along the S-curve toward its
// effective cap. Returns the number of owned planets visited.
func (s *TickService) applyGrowth(ctx context.Context, w *tickWorld) int {
	processed := 0
	for i := range w.systems {
		sys := &w.systems[i]
		if sys.OwnerID == "" {
			continue
		}
		processed++

		max := effectiveMaxTroops(sys.ID, w.structures)
		if sys.TroopCount >= max {
			continue
		}
		t := float64(sys.TroopCount)
		growth := (10 + math.Pow(t, 0.73)/4) * math.Max(0, 1-t/float64(max))
		next := int(math.Floor(t + growth))
		if next > max {
			next = max
		}
		if next == sys.TroopCount {
			continue
		}
		if err := s.systems.SetTroops(ctx, sys.ID, next); err != nil {
			s.log.Error().Err(err).Str("system_id", sys.ID).Msg("growth update failed")
			continue
		}
		sys.TroopCount = next
	}
	return processed
}

func (s *TickService) publishResult(ctx context.Context, gameID string, result *model.TickResult) {
	if s.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := s.cache.SetTickResult(ctx, gameID, data); err != nil {
				s.log.Warn().Err(err).Str("game_id", gameID).Msg("tick result cache write failed")
			}
		}
	}
	s.bc.BroadcastToGame(gameID, "tick", result)
}
