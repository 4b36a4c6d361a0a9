package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

const (
	activeWindow      = 60 * time.Second
	abandonmentWindow = 5 * time.Minute
)

// updatePresence refreshes activity flags, completes the game as abandoned
// when every participant has been silent past the abandonment window, and
// promotes a new host when the current one has gone inactive. It runs for
// waiting lobbies and active games alike. Returns true when the game was
// abandoned.
func (s *TickService) updatePresence(ctx context.Context, w *tickWorld) (bool, error) {
	allGone := len(w.players) > 0
	for i := range w.players {
		gp := &w.players[i]
		if gp.LastSeen.After(w.now.Add(-abandonmentWindow)) {
			allGone = false
		}
		if gp.IsActive && gp.LastSeen.Before(w.now.Add(-activeWindow)) {
			if err := s.games.MarkInactive(ctx, w.game.ID, gp.PlayerID); err != nil {
				s.log.Error().Err(err).Str("player_id", gp.PlayerID).Msg("mark inactive failed")
				continue
			}
			gp.IsActive = false
		}
	}

	if allGone {
		duration := 0
		if w.game.StartedAt != nil {
			duration = int(w.now.Sub(*w.game.StartedAt).Seconds())
		}
		won, err := s.games.CompleteIfOngoing(ctx, w.game.ID, "", model.VictoryAbandoned, w.now, duration)
		if err != nil {
			return false, fmt.Errorf("complete abandoned game: %w", err)
		}
		if won {
			s.log.Info().Str("game_id", w.game.ID).Msg("game abandoned")
			s.bc.BroadcastToGame(w.game.ID, "game_completed", map[string]any{"victoryType": model.VictoryAbandoned})
			if s.cache != nil {
				if err := s.cache.DeleteGameData(ctx, w.game.ID); err != nil {
					s.log.Warn().Err(err).Str("game_id", w.game.ID).Msg("live cache cleanup failed")
				}
			}
		}
		return true, nil
	}

	// Host promotion applies to active games only.
	if w.game.Status == model.StatusActive {
		if err := s.promoteHost(ctx, w); err != nil {
			return false, err
		}
	}
	return false, nil
}

// promoteHost hands the lobby to the first active participant when the
// current host is inactive, renumbering placement orders from 1 while
// keeping everyone else's relative order.
func (s *TickService) promoteHost(ctx context.Context, w *tickWorld) error {
	if len(w.players) == 0 {
		return nil
	}
	ordered := make([]*model.GamePlayer, 0, len(w.players))
	for i := range w.players {
		ordered = append(ordered, &w.players[i])
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PlacementOrder < ordered[j].PlacementOrder
	})

	if isPresent(ordered[0], w.now) {
		return nil
	}
	newHost := -1
	for i, gp := range ordered {
		if isPresent(gp, w.now) {
			newHost = i
			break
		}
	}
	if newHost <= 0 {
		return nil
	}

	orders := make(map[string]int, len(ordered))
	orders[ordered[newHost].PlayerID] = 1
	next := 2
	for i, gp := range ordered {
		if i == newHost {
			continue
		}
		orders[gp.PlayerID] = next
		next++
	}
	if err := s.games.UpdatePlacementOrders(ctx, w.game.ID, orders); err != nil {
		return fmt.Errorf("promote host: %w", err)
	}
	for _, gp := range ordered {
		gp.PlacementOrder = orders[gp.PlayerID]
	}
	s.log.Info().
		Str("game_id", w.game.ID).
		Str("player_id", ordered[newHost].PlayerID).
		Msg("host promoted")
	return nil
}

func isPresent(gp *model.GamePlayer, now time.Time) bool {
	return gp.IsActive && !gp.LastSeen.Before(now.Add(-activeWindow))
}
