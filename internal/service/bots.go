package service

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/Dorschm/stellar-sub001/internal/bot"
	"github.com/Dorschm/stellar-sub001/internal/model"
)

// travelDuration converts a launch distance into flight time: one 100ms hop
// per two units, rounded up.
func travelDuration(dist float64) time.Duration {
	return time.Duration(math.Ceil(dist/2)) * 100 * time.Millisecond
}

// runBots gives each staggered bot one planner decision. Bot failures never
// affect the rest of the tick.
func (s *TickService) runBots(ctx context.Context, w *tickWorld) {
	rows, err := s.playerRows(ctx, w)
	if err != nil {
		s.log.Error().Err(err).Str("game_id", w.game.ID).Msg("bot player load failed")
		return
	}

	for i := range w.players {
		gp := &w.players[i]
		if !gp.IsAlive || gp.IsEliminated {
			continue
		}
		p := rows[gp.PlayerID]
		if p == nil || !p.IsBot {
			continue
		}
		if !bot.ShouldAct(w.tick, p.ID) {
			continue
		}

		var rng *rand.Rand
		if s.BotRand != nil {
			rng = s.BotRand
		}
		planner := bot.NewPlanner(p.BotDifficulty, rng)
		action := planner.Plan(&bot.World{
			Now:        w.now,
			Tick:       w.tick,
			Systems:    w.systems,
			Structures: w.structures,
			Credits:    p.Credits,
		}, p.ID)
		if action == nil {
			continue
		}
		s.applyBotAction(ctx, w, p, action)
	}
}

func (s *TickService) applyBotAction(ctx context.Context, w *tickWorld, p *model.Player, action *bot.Action) {
	switch action.Type {
	case bot.ActionBuild:
		s.applyBotBuild(ctx, w, p, action)
	case bot.ActionLaunch:
		s.applyBotLaunch(ctx, w, p, action)
	}
}

func (s *TickService) applyBotBuild(ctx context.Context, w *tickWorld, p *model.Player, action *bot.Action) {
	sys := w.system(action.SystemID)
	if sys == nil || sys.OwnerID != p.ID {
		return
	}
	st := &model.SystemStructure{
		ID:            uuid.NewString(),
		GameID:        w.game.ID,
		SystemID:      sys.ID,
		OwnerID:       p.ID,
		StructureType: action.StructureType,
		Level:         1,
		Health:        100,
		IsActive:      true,
	}
	if err := s.systems.CreateStructure(ctx, st); err != nil {
		s.log.Error().Err(err).Str("system_id", sys.ID).Msg("bot build failed")
		return
	}
	if err := s.players.AddResources(ctx, p.ID, -action.CreditCost, 0, 0, 0); err != nil {
		s.log.Error().Err(err).Str("player_id", p.ID).Msg("bot build charge failed")
	}
	p.Credits -= action.CreditCost
	w.structures = append(w.structures, *st)
}

func (s *TickService) applyBotLaunch(ctx context.Context, w *tickWorld, p *model.Player, action *bot.Action) {
	source := w.system(action.SourceSystemID)
	target := w.system(action.TargetSystemID)
	if source == nil || target == nil || source.OwnerID != p.ID {
		return
	}
	troops := action.Troops
	if troops > source.TroopCount {
		troops = source.TroopCount
	}
	if troops <= 0 {
		return
	}

	attack := &model.Attack{
		ID:             uuid.NewString(),
		GameID:         w.game.ID,
		AttackerID:     p.ID,
		SourceSystemID: source.ID,
		TargetSystemID: target.ID,
		Troops:         troops,
		ArrivalAt:      w.now.Add(travelDuration(systemDistance(source, target))),
		Status:         model.AttackInTransit,
		CreatedAt:      w.now,
	}
	if err := s.attacks.Create(ctx, attack); err != nil {
		s.log.Error().Err(err).Str("source_id", source.ID).Msg("bot launch failed")
		return
	}
	if err := s.systems.SetTroops(ctx, source.ID, source.TroopCount-troops); err != nil {
		s.log.Error().Err(err).Str("system_id", source.ID).Msg("bot launch debit failed")
		return
	}
	source.TroopCount -= troops
}
