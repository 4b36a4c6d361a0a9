package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

// resolveAttacks processes every arrived in_transit attack in stable
// (arrival_at, id) order. Each attack is claimed with a conditional status
// update before its outcome is written, so a concurrent tick that selected
// the same attack resolves it exactly once. Returns the number of attacks
// this invocation claimed.
func (s *TickService) resolveAttacks(ctx context.Context, w *tickWorld) int {
	attacks, err := s.attacks.ListArrivable(ctx, w.game.ID, w.now)
	if err != nil {
		s.log.Error().Err(err).Str("game_id", w.game.ID).Msg("list arrivable attacks failed")
		return 0
	}

	// Flanking considers every arrived attack by the same attacker on the
	// same target, so source positions are collected before resolution.
	flankSources := make(map[string][][3]float64)
	for i := range attacks {
		src := w.system(attacks[i].SourceSystemID)
		if src == nil {
			continue
		}
		key := attacks[i].AttackerID + "|" + attacks[i].TargetSystemID
		flankSources[key] = append(flankSources[key], [3]float64{src.X, src.Y, src.Z})
	}

	processed := 0
	for i := range attacks {
		if s.resolveAttack(ctx, w, &attacks[i], flankSources) {
			processed++
		}
	}
	return processed
}

func (s *TickService) resolveAttack(ctx context.Context, w *tickWorld, a *model.Attack, flankSources map[string][][3]float64) bool {
	target := w.system(a.TargetSystemID)
	if target == nil {
		// Target row is gone; retire the attack so it never reprocesses.
		claimed, err := s.attacks.ClaimTransition(ctx, a.ID, model.AttackArrived)
		if err != nil {
			s.log.Error().Err(err).Str("attack_id", a.ID).Msg("retire orphan attack failed")
		}
		return claimed
	}

	if target.OwnerID == a.AttackerID {
		return s.applyFriendlyArrival(ctx, w, a, target)
	}

	defenderID := target.OwnerID
	defenderTroops := target.TroopCount
	terrain := terrainFor(target)

	if shouldRetreat(a.Troops, defenderTroops) {
		return s.applyRetreat(ctx, w, a, target, defenderID, defenderTroops, terrain)
	}

	if isEncircled(target, a.AttackerID, w.systems) {
		return s.applySurrender(ctx, w, a, target, defenderID, defenderTroops, terrain)
	}

	source := w.system(a.SourceSystemID)
	flanking := hasFlanking(target, flankSources[a.AttackerID+"|"+a.TargetSystemID])
	elevation := hasElevation(source, target)
	defense := hasDefenseStation(target, defenderID, w.systems, w.structures)

	outcome := resolveCombat(a.Troops, defenderTroops, flanking, elevation, defense, terrain)

	claimed, err := s.attacks.ClaimTransition(ctx, a.ID, model.AttackArrived)
	if err != nil || !claimed {
		if err != nil {
			s.log.Error().Err(err).Str("attack_id", a.ID).Msg("claim attack failed")
		}
		return false
	}

	log := model.CombatLog{
		ID:                uuid.NewString(),
		GameID:            w.game.ID,
		AttackerID:        a.AttackerID,
		DefenderID:        defenderID,
		SystemID:          target.ID,
		AttackerTroops:    a.Troops,
		DefenderTroops:    defenderTroops,
		AttackerLosses:    outcome.attackerLosses,
		DefenderLosses:    outcome.defenderLosses,
		TerrainType:       terrain,
		HadFlanking:       flanking,
		HadElevation:      elevation,
		HadDefenseStation: defense,
		OccurredAt:        w.now,
	}

	if outcome.attackerWins {
		survivors := a.Troops - outcome.attackerLosses
		if survivors < 0 {
			survivors = 0
		}
		log.CombatResult = model.ResultAttackerVictory
		log.Survivors = survivors
		s.captureSystem(ctx, w, target, a.AttackerID, survivors)
	} else {
		remaining := defenderTroops - outcome.defenderLosses
		if remaining < 0 {
			remaining = 0
		}
		log.CombatResult = model.ResultDefenderVictory
		log.Survivors = remaining
		if err := s.systems.SetTroops(ctx, target.ID, remaining); err != nil {
			s.log.Error().Err(err).Str("system_id", target.ID).Msg("defender troop update failed")
		} else {
			target.TroopCount = remaining
		}
	}

	s.appendCombatLog(ctx, &log)
	return true
}

// applyFriendlyArrival merges a reinforcement transfer into the target
// garrison, clamped to the effective cap.
func (s *TickService) applyFriendlyArrival(ctx context.Context, w *tickWorld, a *model.Attack, target *model.System) bool {
	claimed, err := s.attacks.ClaimTransition(ctx, a.ID, model.AttackArrived)
	if err != nil || !claimed {
		if err != nil {
			s.log.Error().Err(err).Str("attack_id", a.ID).Msg("claim reinforcement failed")
		}
		return false
	}
	merged := target.TroopCount + a.Troops
	if max := effectiveMaxTroops(target.ID, w.structures); merged > max {
		merged = max
	}
	if err := s.systems.SetTroops(ctx, target.ID, merged); err != nil {
		s.log.Error().Err(err).Str("system_id", target.ID).Msg("reinforcement update failed")
		return true
	}
	target.TroopCount = merged
	return true
}

// applyRetreat turns the attack back: 80% of the force returns to the
// source, capped at the base garrison.
func (s *TickService) applyRetreat(ctx context.Context, w *tickWorld, a *model.Attack, target *model.System, defenderID string, defenderTroops int, terrain string) bool {
	claimed, err := s.attacks.ClaimTransition(ctx, a.ID, model.AttackRetreating)
	if err != nil || !claimed {
		if err != nil {
			s.log.Error().Err(err).Str("attack_id", a.ID).Msg("claim retreat failed")
		}
		return false
	}

	returning := retreatReturn(a.Troops)
	if source := w.system(a.SourceSystemID); source != nil && returning > 0 {
		next := clampRetreatReturn(source.TroopCount, returning)
		if err := s.systems.SetTroops(ctx, source.ID, next); err != nil {
			s.log.Error().Err(err).Str("system_id", source.ID).Msg("retreat return failed")
		} else {
			source.TroopCount = next
		}
	}

	s.appendCombatLog(ctx, &model.CombatLog{
		ID:             uuid.NewString(),
		GameID:         w.game.ID,
		AttackerID:     a.AttackerID,
		DefenderID:     defenderID,
		SystemID:       target.ID,
		AttackerTroops: a.Troops,
		DefenderTroops: defenderTroops,
		AttackerLosses: a.Troops - returning,
		Survivors:      returning,
		TerrainType:    terrain,
		CombatResult:   model.ResultRetreat,
		OccurredAt:     w.now,
	})
	return true
}

// applySurrender captures a fully encircled planet without a fight: the
// attacking force lands intact and the garrison is lost.
func (s *TickService) applySurrender(ctx context.Context, w *tickWorld, a *model.Attack, target *model.System, defenderID string, defenderTroops int, terrain string) bool {
	claimed, err := s.attacks.ClaimTransition(ctx, a.ID, model.AttackArrived)
	if err != nil || !claimed {
		if err != nil {
			s.log.Error().Err(err).Str("attack_id", a.ID).Msg("claim surrender failed")
		}
		return false
	}

	s.captureSystem(ctx, w, target, a.AttackerID, a.Troops)

	s.appendCombatLog(ctx, &model.CombatLog{
		ID:             uuid.NewString(),
		GameID:         w.game.ID,
		AttackerID:     a.AttackerID,
		DefenderID:     defenderID,
		SystemID:       target.ID,
		AttackerTroops: a.Troops,
		DefenderTroops: defenderTroops,
		DefenderLosses: defenderTroops,
		Survivors:      a.Troops,
		TerrainType:    terrain,
		WasEncircled:   true,
		CombatResult:   model.ResultAttackerVictory,
		OccurredAt:     w.now,
	})
	return true
}

// captureSystem flips ownership, lands the surviving troops, and reassigns
// the planet's painted territory to the new owner.
func (s *TickService) captureSystem(ctx context.Context, w *tickWorld, target *model.System, newOwnerID string, troops int) {
	if err := s.systems.SetOwner(ctx, target.ID, newOwnerID, troops); err != nil {
		s.log.Error().Err(err).Str("system_id", target.ID).Msg("capture update failed")
		return
	}
	target.OwnerID = newOwnerID
	target.TroopCount = troops

	if err := s.territory.ReassignPlanetSectors(ctx, target.ID, newOwnerID, w.now); err != nil {
		s.log.Error().Err(err).Str("system_id", target.ID).Msg("sector reassignment failed")
	}
	for i := range w.sectors {
		if w.sectors[i].ControlledByID == target.ID {
			w.sectors[i].OwnerID = newOwnerID
			w.sectors[i].CapturedAt = w.now
		}
	}
}

func (s *TickService) appendCombatLog(ctx context.Context, l *model.CombatLog) {
	if err := s.attacks.AppendCombatLog(ctx, l); err != nil {
		s.log.Error().Err(err).Str("system_id", l.SystemID).Msg("combat log append failed")
	}
}
