package bot

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

func pinnedPlanner(difficulty string) *Planner {
	return NewPlanner(difficulty, rand.New(rand.NewSource(1)))
}

func sys(id, owner string, x float64, troops int) model.System {
	return model.System{ID: id, OwnerID: owner, X: x, TroopCount: troops}
}

func TestStaggerIsStable(t *testing.T) {
	for _, id := range []string{"bot-1", "bot-2", "a-very-long-player-identifier"} {
		first := Stagger(id)
		assert.Equal(t, first, Stagger(id), "stagger must be deterministic for %s", id)
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, 5)
	}
}

func TestShouldActEveryFifthTick(t *testing.T) {
	const id = "bot-1"
	acted := 0
	for tick := 1; tick <= 5; tick++ {
		if ShouldAct(tick, id) {
			acted++
			assert.True(t, ShouldAct(tick+5, id), "cadence must repeat every 5 ticks")
		}
	}
	assert.Equal(t, 1, acted, "exactly one turn per 5-tick window")
}

func TestEpsilonByDifficulty(t *testing.T) {
	assert.Equal(t, 0.5, pinnedPlanner("easy").Epsilon())
	assert.Equal(t, 0.75, pinnedPlanner("medium").Epsilon())
	assert.Equal(t, 1.0, pinnedPlanner("hard").Epsilon())
}

func TestPlanNothingWithoutPlanets(t *testing.T) {
	p := pinnedPlanner("hard")
	w := &World{Systems: []model.System{sys("e1", "enemy", 0, 100)}}
	assert.Nil(t, p.Plan(w, "bot-1"))
}

func TestBuildPrefersMiningOnMineralWorld(t *testing.T) {
	p := pinnedPlanner("hard")
	mineral := sys("m1", "bot-1", 0, 100)
	mineral.HasMinerals = true
	w := &World{
		Systems: []model.System{mineral, sys("p2", "bot-1", 50, 100)},
		Credits: 60000,
	}

	a := p.Plan(w, "bot-1")
	require.NotNil(t, a)
	assert.Equal(t, ActionBuild, a.Type)
	assert.Equal(t, model.StructureMiningStation, a.StructureType)
	assert.Equal(t, "m1", a.SystemID)
	assert.Equal(t, int64(50000), a.CreditCost)
}

func TestBuildFallsBackToColonyStation(t *testing.T) {
	p := pinnedPlanner("hard")
	w := &World{
		Systems: []model.System{sys("p1", "bot-1", 0, 100)},
		Credits: 60000,
	}

	a := p.Plan(w, "bot-1")
	require.NotNil(t, a)
	assert.Equal(t, ActionBuild, a.Type)
	assert.Equal(t, model.StructureColonyStation, a.StructureType)
	assert.Equal(t, "p1", a.SystemID)
}

func TestBuildSkippedWithoutCredits(t *testing.T) {
	p := pinnedPlanner("hard")
	w := &World{
		Systems: []model.System{sys("p1", "bot-1", 0, 100)},
		Credits: 10000,
	}
	assert.Nil(t, p.Plan(w, "bot-1"), "lone planet with no credits has no move")
}

func TestBuildSkipsAlreadyEquippedWorlds(t *testing.T) {
	p := pinnedPlanner("hard")
	mineral := sys("m1", "bot-1", 0, 100)
	mineral.HasMinerals = true
	w := &World{
		Systems: []model.System{mineral},
		Structures: []model.SystemStructure{
			{SystemID: "m1", StructureType: model.StructureMiningStation},
			{SystemID: "m1", StructureType: model.StructureColonyStation},
		},
		Credits: 60000,
	}
	assert.Nil(t, p.Plan(w, "bot-1"))
}

func TestNeutralExpansionTargetsWeakestInRange(t *testing.T) {
	p := pinnedPlanner("hard")
	w := &World{Systems: []model.System{
		sys("home", "bot-1", 0, 200),
		sys("weak", "", 50, 30),
		sys("strong", "", 60, 40),
		sys("far", "", 500, 5),
	}}

	a := p.Plan(w, "bot-1")
	require.NotNil(t, a)
	assert.Equal(t, ActionLaunch, a.Type)
	assert.Equal(t, "home", a.SourceSystemID)
	assert.Equal(t, "weak", a.TargetSystemID)
	assert.Equal(t, 120, a.Troops) // floor(200 * 0.6 * 1.0)
}

func TestNeutralExpansionNeedsTroopAdvantage(t *testing.T) {
	p := pinnedPlanner("hard")
	w := &World{Systems: []model.System{
		sys("home", "bot-1", 0, 60),
		sys("n1", "", 50, 50),
	}}
	assert.Nil(t, p.Plan(w, "bot-1"), "60 vs 50 is under the 1.5x bar")
}

func TestEnemyAttackRequiresClearAdvantage(t *testing.T) {
	p := pinnedPlanner("hard")
	w := &World{Systems: []model.System{
		sys("home", "bot-1", 0, 100),
		sys("e1", "enemy", 50, 90),
	}}
	assert.Nil(t, p.Plan(w, "bot-1"))

	w.Systems[1].TroopCount = 40
	a := p.Plan(w, "bot-1")
	require.NotNil(t, a)
	assert.Equal(t, ActionLaunch, a.Type)
	assert.Equal(t, "e1", a.TargetSystemID)
	assert.Equal(t, 50, a.Troops) // floor(100 * 0.5 * 1.0)
}

func TestEnemyAttackPrefersMineralWorlds(t *testing.T) {
	p := pinnedPlanner("hard")
	rich := sys("rich", "enemy", 60, 10)
	rich.HasMinerals = true
	w := &World{Systems: []model.System{
		sys("home", "bot-1", 0, 200),
		sys("plain", "enemy", 50, 10),
		rich,
	}}

	a := p.Plan(w, "bot-1")
	require.NotNil(t, a)
	assert.Equal(t, "rich", a.TargetSystemID)
}

func TestEncirclementFinisherOutranksExpansion(t *testing.T) {
	p := pinnedPlanner("hard")
	w := &World{Systems: []model.System{
		{ID: "px", OwnerID: "bot-1", X: 40, TroopCount: 200},
		{ID: "nx", OwnerID: "bot-1", X: -40, TroopCount: 200},
		{ID: "py", OwnerID: "bot-1", Y: 40, TroopCount: 200},
		{ID: "ny", OwnerID: "bot-1", Y: -40, TroopCount: 200},
		sys("trapped", "enemy", 0, 500),
		sys("easy-neutral", "", 90, 5),
	}}

	a := p.Plan(w, "bot-1")
	require.NotNil(t, a)
	assert.Equal(t, ActionLaunch, a.Type)
	assert.Equal(t, "trapped", a.TargetSystemID, "4 of 6 covered directions triggers the finisher")
	assert.Equal(t, 140, a.Troops) // floor(200 * 0.7 * 1.0)
}

func TestDifficultyScalesLaunchSize(t *testing.T) {
	world := func() *World {
		return &World{Systems: []model.System{
			sys("home", "bot-1", 0, 200),
			sys("n1", "", 50, 30),
		}}
	}

	hard := pinnedPlanner("hard").Plan(world(), "bot-1")
	easy := pinnedPlanner("easy").Plan(world(), "bot-1")
	require.NotNil(t, hard)
	require.NotNil(t, easy)
	assert.Equal(t, 120, hard.Troops)
	assert.Equal(t, 60, easy.Troops)
}

func TestReinforceShiftsStrongestToWeakest(t *testing.T) {
	p := pinnedPlanner("hard")
	w := &World{Systems: []model.System{
		sys("weak", "bot-1", 0, 20),
		sys("strong", "bot-1", 50, 300),
	}}

	a := p.Plan(w, "bot-1")
	require.NotNil(t, a)
	assert.Equal(t, ActionLaunch, a.Type)
	assert.Equal(t, "strong", a.SourceSystemID)
	assert.Equal(t, "weak", a.TargetSystemID)
	assert.Equal(t, 90, a.Troops) // floor(300 * 0.3 * 1.0)
}
