package service

import (
	"context"
	"fmt"
	"math"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

const (
	energyCap          = 100_000
	peakEnergyRatio    = 0.42
	creditsPerPlanet   = 10
	creditsPerTrade    = 10
	mineralsPerStation = 50
	tradeRouteRadius   = 100.0
)

// energyEfficiency scales generation by how full the energy store is:
// 0.5 when empty, peaking at 1.0 at 42% of cap, falling back to 0.5 at cap.
// The peak constant must round through a single float64 value so the
// quotient at each boundary is exactly 1.
func energyEfficiency(energy int64) float64 {
	ratio := float64(energy) / energyCap
	peak := float64(peakEnergyRatio)
	var eff float64
	if ratio <= peak {
		eff = 0.5 + ratio/peak*0.5
	} else {
		eff = 1 - (ratio-peak)/(1-peak)*0.5
	}
	return math.Max(0, math.Min(1, eff))
}

// generateResources credits each participant's income for the tick. The
// repository clamps every balance to its cap.
func (s *TickService) generateResources(ctx context.Context, w *tickWorld) error {
	rows, err := s.playerRows(ctx, w)
	if err != nil {
		return err
	}

	for i := range w.players {
		gp := &w.players[i]
		p := rows[gp.PlayerID]
		if p == nil {
			continue
		}
		planets := w.planetCount(gp.PlayerID)

		energy := int64(math.Floor((100 + math.Floor(math.Pow(float64(planets), 0.6)*100)) * energyEfficiency(p.Energy)))
		credits := int64(creditsPerPlanet*planets + creditsPerTrade*s.tradeRoutes(w, gp.PlayerID))
		minerals := int64(mineralsPerStation * s.activeMiningStations(w, gp.PlayerID))

		if energy == 0 && credits == 0 && minerals == 0 {
			continue
		}
		if err := s.players.AddResources(ctx, gp.PlayerID, credits, energy, minerals, 0); err != nil {
			s.log.Error().Err(err).Str("player_id", gp.PlayerID).Msg("resource credit failed")
		}
	}
	return nil
}

// tradeRoutes counts (trade station, other owned planet) pairs within trade
// range. Each station trades with every owned planet it can reach.
func (s *TickService) tradeRoutes(w *tickWorld, playerID string) int {
	routes := 0
	for _, st := range w.structures {
		if st.OwnerID != playerID || st.StructureType != model.StructureTradeStation || !st.IsActive {
			continue
		}
		station := w.system(st.SystemID)
		if station == nil {
			continue
		}
		for i := range w.systems {
			other := &w.systems[i]
			if other.ID == station.ID || other.OwnerID != playerID {
				continue
			}
			if systemDistance(station, other) <= tradeRouteRadius {
				routes++
			}
		}
	}
	return routes
}

func (s *TickService) activeMiningStations(w *tickWorld, playerID string) int {
	n := 0
	for _, st := range w.structures {
		if st.OwnerID != playerID || st.StructureType != model.StructureMiningStation || !st.IsActive {
			continue
		}
		if sys := w.system(st.SystemID); sys != nil && sys.HasMinerals {
			n++
		}
	}
	return n
}

// playerRows loads and caches the shared player rows for this tick.
func (s *TickService) playerRows(ctx context.Context, w *tickWorld) (map[string]*model.Player, error) {
	if w.playerRows != nil {
		return w.playerRows, nil
	}
	rows := make(map[string]*model.Player, len(w.players))
	for i := range w.players {
		p, err := s.players.FindByID(ctx, w.players[i].PlayerID)
		if err != nil {
			return nil, fmt.Errorf("load player %s: %w", w.players[i].PlayerID, err)
		}
		if p != nil {
			rows[p.ID] = p
		}
	}
	w.playerRows = rows
	return rows, nil
}
