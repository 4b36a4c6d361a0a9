package service

import (
	"math"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

// Terrain types, derived from planet flags. Nebula wins over asteroid.
const (
	TerrainSpace    = "space"
	TerrainNebula   = "nebula"
	TerrainAsteroid = "asteroid"
)

const (
	baseMaxTroops     = 500
	colonyCapPerLevel = 100

	retreatRatio       = 0.3
	retreatReturnRatio = 0.8

	flankingMult  = 1.2
	elevationMult = 1.1
	nebulaMult    = 1.5
	asteroidMult  = 1.25
	defenseMult   = 5.0

	attackerLossRatio = 0.3
	defenderLossRatio = 0.4

	encircleRadius    = 50.0
	defenseAuraRadius = 50.0
	elevationDelta    = 10.0
)

// combatOutcome is the resolved result of one non-retreat engagement.
type combatOutcome struct {
	attackerWins   bool
	attackerLosses int
	defenderLosses int
}

func terrainFor(target *model.System) string {
	switch {
	case target.InNebula:
		return TerrainNebula
	case target.HasMinerals:
		return TerrainAsteroid
	default:
		return TerrainSpace
	}
}

func terrainDefenseMult(terrain string) float64 {
	switch terrain {
	case TerrainNebula:
		return nebulaMult
	case TerrainAsteroid:
		return asteroidMult
	default:
		return 1.0
	}
}

// effectiveMaxTroops is the garrison cap: 500 plus 100 per active colony
// station level on the planet.
func effectiveMaxTroops(systemID string, structures []model.SystemStructure) int {
	max := baseMaxTroops
	for _, s := range structures {
		if s.SystemID == systemID && s.StructureType == model.StructureColonyStation && s.IsActive {
			max += s.Level * colonyCapPerLevel
		}
	}
	return max
}

func distance(ax, ay, az, bx, by, bz float64) float64 {
	dx, dy, dz := ax-bx, ay-by, az-bz
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func systemDistance(a, b *model.System) float64 {
	return distance(a.X, a.Y, a.Z, b.X, b.Y, b.Z)
}

// shouldRetreat reports whether the attacking force turns back rather than
// engage: strictly under 30% of the garrison.
func shouldRetreat(attackTroops, defenderTroops int) bool {
	return float64(attackTroops) < float64(defenderTroops)*retreatRatio
}

// retreatReturn is the troop count that makes it back to the source.
func retreatReturn(attackTroops int) int {
	return int(math.Floor(float64(attackTroops) * retreatReturnRatio))
}

// clampRetreatReturn merges returning troops into the source garrison. The
// return path caps at the base garrison only and never reduces an
// already-overfull source.
func clampRetreatReturn(sourceTroops, returning int) int {
	merged := sourceTroops + returning
	if merged > baseMaxTroops {
		if sourceTroops > baseMaxTroops {
			return sourceTroops
		}
		return baseMaxTroops
	}
	return merged
}

// isEncircled reports whether attacker-owned planets cover all six axis
// directions around the target within the encirclement radius. A cheap
// bounding-box check prunes before the Euclidean test.
func isEncircled(target *model.System, attackerID string, systems []model.System) bool {
	covered := make(map[int]bool, 6)
	for i := range systems {
		n := &systems[i]
		if n.OwnerID != attackerID || n.ID == target.ID {
			continue
		}
		dx, dy, dz := n.X-target.X, n.Y-target.Y, n.Z-target.Z
		if math.Abs(dx) > encircleRadius || math.Abs(dy) > encircleRadius || math.Abs(dz) > encircleRadius {
			continue
		}
		if distance(n.X, n.Y, n.Z, target.X, target.Y, target.Z) > encircleRadius {
			continue
		}
		covered[axisDirection(dx, dy, dz)] = true
		if len(covered) == 6 {
			return true
		}
	}
	return false
}

// axisDirection classifies a displacement by its dominant axis and sign:
// 0..5 for +x, -x, +y, -y, +z, -z.
func axisDirection(dx, dy, dz float64) int {
	ax, ay, az := math.Abs(dx), math.Abs(dy), math.Abs(dz)
	switch {
	case ax >= ay && ax >= az:
		if dx >= 0 {
			return 0
		}
		return 1
	case ay >= az:
		if dy >= 0 {
			return 2
		}
		return 3
	default:
		if dz >= 0 {
			return 4
		}
		return 5
	}
}

// hasDefenseStation reports whether the defender has an active defense
// platform on any planet within the defense aura of the target.
func hasDefenseStation(target *model.System, defenderID string, systems []model.System, structures []model.SystemStructure) bool {
	if defenderID == "" {
		return false
	}
	platformSystems := make(map[string]bool)
	for _, s := range structures {
		if s.OwnerID == defenderID && s.StructureType == model.StructureDefensePlatform && s.IsActive {
			platformSystems[s.SystemID] = true
		}
	}
	if len(platformSystems) == 0 {
		return false
	}
	for i := range systems {
		if !platformSystems[systems[i].ID] {
			continue
		}
		if systemDistance(&systems[i], target) <= defenseAuraRadius {
			return true
		}
	}
	return false
}

// hasFlanking reports whether any pair of attack source positions forms an
// angle over 90 degrees at the target, i.e. a negative dot product of the
// target-to-source vectors.
func hasFlanking(target *model.System, sources [][3]float64) bool {
	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			ux, uy, uz := sources[i][0]-target.X, sources[i][1]-target.Y, sources[i][2]-target.Z
			vx, vy, vz := sources[j][0]-target.X, sources[j][1]-target.Y, sources[j][2]-target.Z
			if ux*vx+uy*vy+uz*vz < 0 {
				return true
			}
		}
	}
	return false
}

// hasElevation reports the high-ground bonus: source more than 10 units
// above the target.
func hasElevation(source, target *model.System) bool {
	return source != nil && source.Y-target.Y > elevationDelta
}

// resolveCombat applies the multiplier stack and loss ratios. The attacker
// wins only on a strictly greater effective force.
func resolveCombat(attackTroops, defenderTroops int, flanking, elevation, defenseStation bool, terrain string) combatOutcome {
	attackMult := 1.0
	if flanking {
		attackMult *= flankingMult
	}
	if elevation {
		attackMult *= elevationMult
	}
	defenseMultTotal := terrainDefenseMult(terrain)
	if defenseStation {
		defenseMultTotal *= defenseMult
	}

	ea := float64(attackTroops) * attackMult
	ed := float64(defenderTroops) * defenseMultTotal

	return combatOutcome{
		attackerWins:   ea > ed,
		attackerLosses: int(math.Floor(ed * attackerLossRatio)),
		defenderLosses: int(math.Floor(ea * defenderLossRatio)),
	}
}
