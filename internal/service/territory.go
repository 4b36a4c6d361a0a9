package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

const (
	sectorSize          = 10.0
	sectorStep          = 1.5 * sectorSize
	candidateAzimuths   = 8
	densityRadius       = 30.0
	densityLimit        = 16
	collisionRadius     = 10.0
	territoryRadiusCap  = 200.0
	captureGuard        = time.Second
	baseExpandInterval  = 10
	fastExpandInterval  = 8
	slowExpandInterval  = 15
	eagerExpandInterval = 7
)

// expansionTier maps stable ownership age in ticks to (tier, radius,
// sectors per wave). Older holdings paint wider, denser waves.
func expansionTier(ageTicks int) (tier int, radius float64, perWave int) {
	switch {
	case ageTicks <= 50:
		return 1, 20, 8
	case ageTicks <= 150:
		return 2, 35, 16
	default:
		return 3, 50, 24
	}
}

// expandInterval picks the expansion cadence for a planet. Later conditions
// override earlier ones.
func expandInterval(p *model.System) int {
	interval := baseExpandInterval
	if p.TroopCount > 300 {
		interval = fastExpandInterval
	}
	if p.InNebula {
		interval = slowExpandInterval
	}
	if p.HasMinerals {
		interval = eagerExpandInterval
	}
	return interval
}

// expandTerritory grows each owned planet's painted territory as a
// breadth-first frontier: candidates radiate from the outermost wave and are
// accepted under distance, density, and collision caps. Newly accepted
// sectors join the world snapshot so later planets and the victory check see
// them. Returns the number of sectors created.
func (s *TickService) expandTerritory(ctx context.Context, w *tickWorld) int {
	byPlanet := make(map[string][]*model.TerritorySector)
	for i := range w.sectors {
		sec := &w.sectors[i]
		byPlanet[sec.ControlledByID] = append(byPlanet[sec.ControlledByID], sec)
	}

	var queued []model.TerritorySector

	for i := range w.systems {
		p := &w.systems[i]
		if p.OwnerID == "" {
			continue
		}
		owned := byPlanet[p.ID]

		ageTicks := 0
		if len(owned) > 0 {
			oldest := owned[0].CapturedAt
			for _, sec := range owned[1:] {
				if sec.CapturedAt.Before(oldest) {
					oldest = sec.CapturedAt
				}
			}
			// Freshly captured territory settles before it spreads.
			if w.now.Sub(oldest) < captureGuard {
				continue
			}
			ageTicks = int(w.now.Sub(oldest).Milliseconds()) / w.game.TickRateMs
		}

		tier, radius, perWave := expansionTier(ageTicks)

		if math.Sqrt(float64(len(owned)+1))*sectorSize > territoryRadiusCap {
			continue
		}
		if w.tick%expandInterval(p) != 0 {
			continue
		}

		waveMax := 0
		for _, sec := range owned {
			if sec.ExpansionWave > waveMax {
				waveMax = sec.ExpansionWave
			}
		}
		var edges [][3]float64
		for _, sec := range owned {
			if sec.ExpansionWave == waveMax {
				edges = append(edges, [3]float64{sec.X, sec.Y, sec.Z})
			}
		}
		if len(edges) == 0 {
			edges = [][3]float64{{p.X, p.Y, p.Z}}
		}
		newWave := waveMax + 1

		var accepted []model.TerritorySector
	candidates:
		for _, edge := range edges {
			for k := 0; k < candidateAzimuths; k++ {
				theta := float64(k) * math.Pi / 4
				cx := edge[0] + sectorStep*math.Cos(theta)
				cy := edge[1]
				cz := edge[2] + sectorStep*math.Sin(theta)

				fromPlanet := distance(cx, cy, cz, p.X, p.Y, p.Z)
				if fromPlanet > radius {
					continue
				}
				if !s.sectorFits(w, queued, accepted, cx, cy, cz) {
					continue
				}

				accepted = append(accepted, model.TerritorySector{
					ID:                 uuid.NewString(),
					GameID:             w.game.ID,
					X:                  cx,
					Y:                  cy,
					Z:                  cz,
					OwnerID:            p.OwnerID,
					ControlledByID:     p.ID,
					CapturedAt:         w.now,
					ExpansionTier:      tier,
					ExpansionWave:      newWave,
					DistanceFromPlanet: fromPlanet,
				})
				if len(accepted) == perWave {
					break candidates
				}
			}
		}
		queued = append(queued, accepted...)
	}

	if len(queued) == 0 {
		return 0
	}
	if err := s.territory.InsertBatch(ctx, queued); err != nil {
		s.log.Error().Err(err).Str("game_id", w.game.ID).Msg("sector insert failed")
		return 0
	}
	w.sectors = append(w.sectors, queued...)
	return len(queued)
}

// sectorFits applies the density cap (under 16 neighbors within 30) and the
// collision cap (nothing within 10), counting sectors queued earlier in
// this tick as well as persisted ones.
func (s *TickService) sectorFits(w *tickWorld, queued, accepted []model.TerritorySector, x, y, z float64) bool {
	neighbors := 0
	check := func(sx, sy, sz float64) bool {
		d := distance(x, y, z, sx, sy, sz)
		if d < collisionRadius {
			return false
		}
		if d <= densityRadius {
			neighbors++
		}
		return neighbors < densityLimit
	}
	for i := range w.sectors {
		if !check(w.sectors[i].X, w.sectors[i].Y, w.sectors[i].Z) {
			return false
		}
	}
	for i := range queued {
		if !check(queued[i].X, queued[i].Y, queued[i].Z) {
			return false
		}
	}
	for i := range accepted {
		if !check(accepted[i].X, accepted[i].Y, accepted[i].Z) {
			return false
		}
	}
	return true
}
