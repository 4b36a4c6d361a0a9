package bot

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

// Action kinds produced by the planner.
const (
	ActionBuild  = "build"
	ActionLaunch = "launch"
)

// StructureCost is the credit price per structure type a bot can build.
var StructureCost = map[string]int64{
	model.StructureMiningStation: 50000,
	model.StructureColonyStation: 50000,
}

// World is the read-only snapshot a planner decides from. The tick service
// assembles it from the rows it already loaded for the current tick.
type World struct {
	Now        time.Time
	Tick       int
	Systems    []model.System
	Structures []model.SystemStructure
	Credits    int64
}

// Action is a single bot decision, applied by the tick service. Launch with
// an own-planet target is a reinforcement transfer; the attack row merges on
// friendly arrival.
type Action struct {
	Type           string
	SystemID       string
	StructureType  string
	CreditCost     int64
	SourceSystemID string
	TargetSystemID string
	Troops         int
}

// Planner makes one decision per invocation for a single bot, walking five
// priorities in order. Difficulty scales offensive and build aggression.
type Planner struct {
	eps float64
	rng *rand.Rand
}

// NewPlanner creates a planner for a difficulty level. The rng is injected
// so tests can pin decisions.
func NewPlanner(difficulty string, rng *rand.Rand) *Planner {
	eps := 0.75
	switch difficulty {
	case "easy":
		eps = 0.5
	case "hard":
		eps = 1.0
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{eps: eps, rng: rng}
}

// Epsilon exposes the difficulty multiplier.
func (p *Planner) Epsilon() float64 { return p.eps }

// Stagger returns a stable per-player offset so bots don't all act on the
// same tick.
func Stagger(playerID string) int {
	h := fnv.New32a()
	h.Write([]byte(playerID))
	return int(h.Sum32() % 5)
}

// ShouldAct reports whether this bot takes a turn on the given tick.
func ShouldAct(tick int, playerID string) bool {
	return (tick+Stagger(playerID))%5 == 0
}

// Plan returns the bot's action for this turn, or nil when no priority
// produced one. The first successful priority consumes the turn.
func (p *Planner) Plan(w *World, botID string) *Action {
	owned, enemies, neutrals := partitionSystems(w.Systems, botID)
	if len(owned) == 0 {
		return nil
	}

	if a := p.planBuild(w, botID, owned); a != nil {
		return a
	}
	if a := p.planEncirclementFinisher(owned, enemies); a != nil {
		return a
	}
	if a := p.planNeutralExpansion(owned, neutrals); a != nil {
		return a
	}
	if a := p.planEnemyAttack(owned, enemies); a != nil {
		return a
	}
	return p.planReinforce(owned)
}

// planBuild places a mining station on a mineral world first, a colony
// station anywhere second.
func (p *Planner) planBuild(w *World, botID string, owned []model.System) *Action {
	if w.Credits < int64(50000*p.eps) {
		return nil
	}
	if p.rng.Float64() >= p.eps {
		return nil
	}

	hasStructure := make(map[string]map[string]bool)
	for _, s := range w.Structures {
		if hasStructure[s.SystemID] == nil {
			hasStructure[s.SystemID] = make(map[string]bool)
		}
		hasStructure[s.SystemID][s.StructureType] = true
	}

	for _, sys := range owned {
		if sys.HasMinerals && !hasStructure[sys.ID][model.StructureMiningStation] {
			return &Action{
				Type:          ActionBuild,
				SystemID:      sys.ID,
				StructureType: model.StructureMiningStation,
				CreditCost:    StructureCost[model.StructureMiningStation],
			}
		}
	}

	var candidates []model.System
	for _, sys := range owned {
		if !hasStructure[sys.ID][model.StructureColonyStation] {
			candidates = append(candidates, sys)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sys := candidates[p.rng.Intn(len(candidates))]
	return &Action{
		Type:          ActionBuild,
		SystemID:      sys.ID,
		StructureType: model.StructureColonyStation,
		CreditCost:    StructureCost[model.StructureColonyStation],
	}
}

// planEncirclementFinisher pushes on enemy planets that are nearly
// surrounded: four of six axis directions covered triggers the assault.
func (p *Planner) planEncirclementFinisher(owned, enemies []model.System) *Action {
	for _, target := range enemies {
		if nearestWithin(owned, target, 150) == nil {
			continue
		}
		covered := make(map[int]bool)
		for i := range owned {
			if dist(owned[i], target) > 50 {
				continue
			}
			covered[dominantDirection(owned[i], target)] = true
		}
		if len(covered) < 4 {
			continue
		}

		src := nearestWithin(owned, target, math.MaxFloat64)
		if src == nil || src.TroopCount <= 50 {
			continue
		}
		troops := int(math.Floor(float64(src.TroopCount) * 0.7 * p.eps))
		if troops <= 0 {
			continue
		}
		return &Action{Type: ActionLaunch, SourceSystemID: src.ID, TargetSystemID: target.ID, Troops: troops}
	}
	return nil
}

// planNeutralExpansion grabs the weakest neutral planets in range.
func (p *Planner) planNeutralExpansion(owned, neutrals []model.System) *Action {
	var inRange []model.System
	for _, n := range neutrals {
		if nearestWithin(owned, n, 100) != nil {
			inRange = append(inRange, n)
		}
	}
	sort.SliceStable(inRange, func(i, j int) bool { return inRange[i].TroopCount < inRange[j].TroopCount })

	for _, target := range inRange {
		for i := range owned {
			src := owned[i]
			if float64(src.TroopCount) <= float64(target.TroopCount)*1.5 {
				continue
			}
			troops := int(math.Floor(float64(src.TroopCount) * 0.6 * p.eps))
			if troops <= 0 {
				continue
			}
			return &Action{Type: ActionLaunch, SourceSystemID: src.ID, TargetSystemID: target.ID, Troops: troops}
		}
	}
	return nil
}

// planEnemyAttack hits the most valuable enemy planet in range with a clear
// troop advantage. Resource value prefers mineral worlds and avoids nebulas.
func (p *Planner) planEnemyAttack(owned, enemies []model.System) *Action {
	var inRange []model.System
	for _, e := range enemies {
		if nearestWithin(owned, e, 150) != nil {
			inRange = append(inRange, e)
		}
	}
	sort.SliceStable(inRange, func(i, j int) bool {
		return resourceValue(inRange[i]) > resourceValue(inRange[j])
	})

	for _, target := range inRange {
		for i := range owned {
			src := owned[i]
			if src.TroopCount <= 50 {
				continue
			}
			ratio := float64(src.TroopCount) / math.Max(1, float64(target.TroopCount))
			if ratio <= 1.5/p.eps {
				continue
			}
			troops := int(math.Floor(float64(src.TroopCount) * 0.5 * p.eps))
			if troops <= 0 {
				continue
			}
			return &Action{Type: ActionLaunch, SourceSystemID: src.ID, TargetSystemID: target.ID, Troops: troops}
		}
	}
	return nil
}

// planReinforce shifts troops from the strongest planet to the weakest.
func (p *Planner) planReinforce(owned []model.System) *Action {
	if len(owned) < 2 {
		return nil
	}
	strongest, weakest := 0, 0
	for i := range owned {
		if owned[i].TroopCount > owned[strongest].TroopCount {
			strongest = i
		}
		if owned[i].TroopCount < owned[weakest].TroopCount {
			weakest = i
		}
	}
	if strongest == weakest {
		return nil
	}
	troops := int(math.Floor(float64(owned[strongest].TroopCount) * 0.3 * p.eps))
	if troops <= 0 {
		return nil
	}
	return &Action{
		Type:           ActionLaunch,
		SourceSystemID: owned[strongest].ID,
		TargetSystemID: owned[weakest].ID,
		Troops:         troops,
	}
}

func resourceValue(s model.System) int {
	v := 0
	if s.HasMinerals {
		v++
	}
	if s.InNebula {
		v--
	}
	return v
}

func partitionSystems(systems []model.System, botID string) (owned, enemies, neutrals []model.System) {
	for _, s := range systems {
		switch {
		case s.OwnerID == botID:
			owned = append(owned, s)
		case s.OwnerID == "":
			neutrals = append(neutrals, s)
		default:
			enemies = append(enemies, s)
		}
	}
	return owned, enemies, neutrals
}

func dist(a, b model.System) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// nearestWithin returns the closest system to target within radius, or nil.
func nearestWithin(systems []model.System, target model.System, radius float64) *model.System {
	var best *model.System
	bestDist := radius
	for i := range systems {
		d := dist(systems[i], target)
		if d <= bestDist {
			bestDist = d
			best = &systems[i]
		}
	}
	return best
}

// dominantDirection classifies which of the six axis directions a neighbor
// occupies relative to the target: 0..5 for +x,-x,+y,-y,+z,-z.
func dominantDirection(neighbor, target model.System) int {
	dx, dy, dz := neighbor.X-target.X, neighbor.Y-target.Y, neighbor.Z-target.Z
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
