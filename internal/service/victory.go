package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

const eliminationGrace = 30 * time.Second

// eliminateDefeated flips participants who hold no planets once the opening
// grace period has passed. Bots are eliminated the same way humans are.
func (s *TickService) eliminateDefeated(ctx context.Context, w *tickWorld) error {
	if w.game.StartedAt == nil || w.now.Sub(*w.game.StartedAt) <= eliminationGrace {
		return nil
	}
	for i := range w.players {
		gp := &w.players[i]
		if !gp.IsAlive || gp.IsEliminated {
			continue
		}
		if w.planetCount(gp.PlayerID) > 0 {
			continue
		}
		done, err := s.games.EliminatePlayer(ctx, w.game.ID, gp.PlayerID, w.now)
		if err != nil {
			return fmt.Errorf("eliminate player %s: %w", gp.PlayerID, err)
		}
		if done {
			gp.IsAlive = false
			gp.IsEliminated = true
			at := w.now
			gp.EliminatedAt = &at
			s.bc.BroadcastToGame(w.game.ID, "player_eliminated", map[string]any{"playerId": gp.PlayerID})
		}
	}
	return nil
}

// playerShare holds a participant's control percentages for one tick.
type playerShare struct {
	playerID       string
	placementOrder int
	planetPct      float64
	territoryPct   float64
}

func (ps playerShare) best() float64 {
	if ps.planetPct >= ps.territoryPct {
		return ps.planetPct
	}
	return ps.territoryPct
}

func (s *TickService) computeShares(w *tickWorld) []playerShare {
	totalPlanets := len(w.systems)
	totalSectors := len(w.sectors)

	shares := make([]playerShare, 0, len(w.players))
	for i := range w.players {
		gp := &w.players[i]
		ps := playerShare{playerID: gp.PlayerID, placementOrder: gp.PlacementOrder}
		if totalPlanets > 0 {
			ps.planetPct = float64(w.planetCount(gp.PlayerID)) / float64(totalPlanets) * 100
		}
		if totalSectors > 0 {
			ps.territoryPct = float64(w.sectorCount(gp.PlayerID)) / float64(totalSectors) * 100
		}
		shares = append(shares, ps)
	}
	return shares
}

// checkVictory computes each participant's control shares, records running
// territory peaks, and picks a winner among participants that meet the
// victory condition on either measure. Ties break by placement order.
func (s *TickService) checkVictory(ctx context.Context, w *tickWorld) (winnerID, victoryType string, winningPct float64) {
	shares := s.computeShares(w)

	for _, ps := range shares {
		if ps.territoryPct > 0 {
			if err := s.games.RaisePeakTerritory(ctx, w.game.ID, ps.playerID, ps.territoryPct); err != nil {
				s.log.Warn().Err(err).Str("player_id", ps.playerID).Msg("peak territory update failed")
			}
		}
	}

	threshold := w.game.VictoryCondition
	var winner *playerShare
	for i := range shares {
		ps := &shares[i]
		if ps.planetPct < threshold && ps.territoryPct < threshold {
			continue
		}
		if winner == nil ||
			ps.best() > winner.best() ||
			(ps.best() == winner.best() && ps.placementOrder < winner.placementOrder) {
			winner = ps
		}
	}
	if winner == nil {
		return "", "", 0
	}
	victoryType = model.VictoryTerritoryControl
	if winner.planetPct >= winner.territoryPct {
		victoryType = model.VictoryPlanetControl
	}
	return winner.playerID, victoryType, winner.best()
}

// finalizeGame performs the guarded completion and writes final standings.
// Returns false without error when another tick completed the game first.
// Stats writes after the status flip are idempotent, so a partial failure
// here is retried by ensureFinalStats on the next tick, never rolled back.
func (s *TickService) finalizeGame(ctx context.Context, w *tickWorld, winnerID, victoryType string) (bool, error) {
	duration := 0
	if w.game.StartedAt != nil {
		duration = int(w.now.Sub(*w.game.StartedAt).Seconds())
	}
	won, err := s.games.CompleteIfOngoing(ctx, w.game.ID, winnerID, victoryType, w.now, duration)
	if err != nil {
		return false, fmt.Errorf("complete game: %w", err)
	}
	if !won {
		return false, nil
	}

	if err := s.writeFinalStats(ctx, w); err != nil {
		s.log.Error().Err(err).Str("game_id", w.game.ID).Msg("stats upsert failed")
	}

	s.log.Info().
		Str("game_id", w.game.ID).
		Str("winner_id", winnerID).
		Str("victory_type", victoryType).
		Int("duration_s", duration).
		Msg("game completed")
	s.bc.BroadcastToGame(w.game.ID, "game_completed", map[string]any{
		"winner":      winnerID,
		"victoryType": victoryType,
	})
	if s.cache != nil {
		if err := s.cache.DeleteGameData(ctx, w.game.ID); err != nil {
			s.log.Warn().Err(err).Str("game_id", w.game.ID).Msg("live cache cleanup failed")
		}
	}
	return true, nil
}

// writeFinalStats computes final placements and writes the per-player summary
// rows plus the final placement columns. Safe to re-run: the upsert ignores
// existing rows.
func (s *TickService) writeFinalStats(ctx context.Context, w *tickWorld) error {
	shares := s.computeShares(w)
	sort.SliceStable(shares, func(i, j int) bool {
		if shares[i].territoryPct != shares[j].territoryPct {
			return shares[i].territoryPct > shares[j].territoryPct
		}
		return shares[i].placementOrder < shares[j].placementOrder
	})

	peaks := make(map[string]float64, len(w.players))
	for i := range w.players {
		peaks[w.players[i].PlayerID] = w.players[i].PeakTerritoryPct
	}

	stats := make([]model.GameStats, 0, len(shares))
	for rank, ps := range shares {
		troopsSent, err := s.attacks.SumTroopsSent(ctx, w.game.ID, ps.playerID)
		if err != nil {
			s.log.Error().Err(err).Str("player_id", ps.playerID).Msg("troops sent lookup failed")
		}
		won, lost, captured, err := s.attacks.CombatRecord(ctx, w.game.ID, ps.playerID)
		if err != nil {
			s.log.Error().Err(err).Str("player_id", ps.playerID).Msg("combat record lookup failed")
		}
		built, err := s.systems.CountStructuresBuilt(ctx, w.game.ID, ps.playerID)
		if err != nil {
			s.log.Error().Err(err).Str("player_id", ps.playerID).Msg("structures built lookup failed")
		}

		peak := peaks[ps.playerID]
		if ps.territoryPct > peak {
			peak = ps.territoryPct
		}
		stats = append(stats, model.GameStats{
			GameID:            w.game.ID,
			PlayerID:          ps.playerID,
			PlanetsControlled: w.planetCount(ps.playerID),
			TerritoryPct:      ps.territoryPct,
			TroopsSent:        troopsSent,
			PlanetsCaptured:   captured,
			CombatsWon:        won,
			CombatsLost:       lost,
			StructuresBuilt:   built,
			PeakTerritoryPct:  peak,
			FinalPlacement:    rank + 1,
		})
	}

	if err := s.stats.Upsert(ctx, stats); err != nil {
		return fmt.Errorf("upsert stats: %w", err)
	}
	for _, st := range stats {
		if err := s.games.SetFinalResult(ctx, w.game.ID, st.PlayerID, st.FinalPlacement, st.TerritoryPct); err != nil {
			s.log.Error().Err(err).Str("player_id", st.PlayerID).Msg("final result update failed")
		}
	}
	return nil
}

// ensureFinalStats repairs a completed game whose stats upsert failed after
// the status flip: when no stats rows exist, it reloads the world and
// re-runs the idempotent standings write. Abandoned games record no
// standings.
func (s *TickService) ensureFinalStats(ctx context.Context, game *model.Game, now time.Time) error {
	if game.VictoryType == model.VictoryAbandoned {
		return nil
	}
	n, err := s.stats.CountForGame(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("count stats: %w", err)
	}
	if n > 0 {
		return nil
	}
	players, err := s.games.ListPlayers(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	if len(players) == 0 {
		return nil
	}
	w := &tickWorld{game: game, players: players, now: now}
	if err := s.loadWorld(ctx, w); err != nil {
		return err
	}
	return s.writeFinalStats(ctx, w)
}
