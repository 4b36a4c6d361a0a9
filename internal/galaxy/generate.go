// Package galaxy builds the playfield for a new game: a jittered cubic grid
// of planets with terrain features and spread-out homeworlds.
package galaxy

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

const (
	gridSpacing    = 80.0
	gridJitter     = 20.0
	mineralsChance = 0.25
	nebulaChance   = 0.15

	neutralTroops = 50
	homeTroops    = 100

	minPlanetsPerPlayer = 16
	minGridSide         = 3
)

// Generate lays out the galaxy for a game as an n x n x n grid centered on
// the origin, with each planet jittered off its lattice point. The grid side
// scales with the player count.
func Generate(gameID string, playerCount int, rng *rand.Rand) []model.System {
	side := gridSide(playerCount)
	offset := float64(side-1) * gridSpacing / 2

	systems := make([]model.System, 0, side*side*side)
	n := 0
	for ix := 0; ix < side; ix++ {
		for iy := 0; iy < side; iy++ {
			for iz := 0; iz < side; iz++ {
				n++
				systems = append(systems, model.System{
					ID:               uuid.NewString(),
					GameID:           gameID,
					Name:             fmt.Sprintf("System %03d", n),
					X:                float64(ix)*gridSpacing - offset + jitter(rng),
					Y:                float64(iy)*gridSpacing - offset + jitter(rng),
					Z:                float64(iz)*gridSpacing - offset + jitter(rng),
					TroopCount:       neutralTroops,
					EnergyGeneration: 1 + rng.Intn(3),
					HasMinerals:      rng.Float64() < mineralsChance,
					InNebula:         rng.Float64() < nebulaChance,
				})
			}
		}
	}
	return systems
}

// AssignHomeworlds claims one planet per player, chosen greedily to maximize
// mutual distance so nobody starts in a neighbor's lap. Homeworlds start
// with a full garrison and clear terrain.
func AssignHomeworlds(systems []model.System, playerIDs []string, rng *rand.Rand) {
	if len(systems) == 0 || len(playerIDs) == 0 {
		return
	}
	chosen := make([]int, 0, len(playerIDs))
	chosen = append(chosen, rng.Intn(len(systems)))

	for len(chosen) < len(playerIDs) && len(chosen) < len(systems) {
		bestIdx, bestDist := -1, -1.0
		for i := range systems {
			if contains(chosen, i) {
				continue
			}
			nearest := math.MaxFloat64
			for _, c := range chosen {
				if d := dist(&systems[i], &systems[c]); d < nearest {
					nearest = d
				}
			}
			if nearest > bestDist {
				bestDist = nearest
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		chosen = append(chosen, bestIdx)
	}

	for i, idx := range chosen {
		s := &systems[idx]
		s.OwnerID = playerIDs[i]
		s.TroopCount = homeTroops
		s.HasMinerals = false
		s.InNebula = false
	}
}

func gridSide(playerCount int) int {
	if playerCount < 1 {
		playerCount = 1
	}
	side := int(math.Ceil(math.Cbrt(float64(playerCount * minPlanetsPerPlayer))))
	if side < minGridSide {
		side = minGridSide
	}
	return side
}

func jitter(rng *rand.Rand) float64 {
	return (rng.Float64()*2 - 1) * gridJitter
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func dist(a, b *model.System) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
