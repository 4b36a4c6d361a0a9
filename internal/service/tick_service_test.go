package service

import (
	"context"
	"testing"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

func TestProcessTickSkipsCompletedGame(t *testing.T) {
	f := newFixture()
	f.games.games[f.gameID].Status = model.StatusCompleted

	result, err := f.svc.ProcessTick(context.Background(), f.gameID)
	if err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}
	if result.SkipReason != SkipCompleted {
		t.Errorf("skip reason = %q, want %q", result.SkipReason, SkipCompleted)
	}
	if got := f.ticks.counters[f.gameID]; got != 0 {
		t.Errorf("tick counter advanced to %d on completed game", got)
	}
}

func TestProcessTickSkipsWaitingGame(t *testing.T) {
	f := newFixture()
	f.games.games[f.gameID].Status = model.StatusWaiting

	result, err := f.svc.ProcessTick(context.Background(), f.gameID)
	if err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}
	if result.SkipReason != SkipNotActive {
		t.Errorf("skip reason = %q, want %q", result.SkipReason, SkipNotActive)
	}
}

func TestProcessTickUnknownGame(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.ProcessTick(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown game")
	}
}

func TestProcessTickReturnsDistinctTickNumbers(t *testing.T) {
	f := newFixture()
	f.addHuman("p1", 1)
	f.addSystem("s1", "p1", 0, 0, 0, 100)
	for i := range 5 {
		f.addSystem(sysID(i), "", float64(100+i*50), 0, 0, 50)
	}

	seen := make(map[int]bool)
	for range 3 {
		result, err := f.svc.ProcessTick(context.Background(), f.gameID)
		if err != nil {
			t.Fatalf("ProcessTick: %v", err)
		}
		if seen[result.Tick] {
			t.Fatalf("tick number %d returned twice", result.Tick)
		}
		seen[result.Tick] = true
	}
}

func sysID(i int) string {
	return string(rune('a'+i)) + "-sys"
}

func TestGrowthFromZeroIsTen(t *testing.T) {
	f := newFixture()
	f.addHuman("p1", 1)
	f.addSystem("s1", "p1", 0, 0, 0, 0)
	for i := range 5 {
		f.addSystem(sysID(i), "", float64(100+i*50), 0, 0, 50)
	}

	if _, err := f.svc.ProcessTick(context.Background(), f.gameID); err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}
	if got := f.systems.systems["s1"].TroopCount; got != 10 {
		t.Errorf("troops after growth from 0 = %d, want 10", got)
	}
}

func TestGrowthStopsAtCap(t *testing.T) {
	f := newFixture()
	f.addHuman("p1", 1)
	f.addSystem("s1", "p1", 0, 0, 0, 500)
	for i := range 5 {
		f.addSystem(sysID(i), "", float64(100+i*50), 0, 0, 50)
	}

	if _, err := f.svc.ProcessTick(context.Background(), f.gameID); err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}
	if got := f.systems.systems["s1"].TroopCount; got != 500 {
		t.Errorf("troops at cap = %d, want 500", got)
	}
}

func TestColonyStationRaisesCap(t *testing.T) {
	f := newFixture()
	f.addHuman("p1", 1)
	f.addSystem("s1", "p1", 0, 0, 0, 500)
	for i := range 5 {
		f.addSystem(sysID(i), "", float64(100+i*50), 0, 0, 50)
	}
	f.systems.structures = append(f.systems.structures, model.SystemStructure{
		ID: "st1", GameID: f.gameID, SystemID: "s1", OwnerID: "p1",
		StructureType: model.StructureColonyStation, Level: 2, Health: 100, IsActive: true,
	})

	if _, err := f.svc.ProcessTick(context.Background(), f.gameID); err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}
	// cap is 700 now, so a planet parked at the base cap resumes growing
	if got := f.systems.systems["s1"].TroopCount; got <= 500 {
		t.Errorf("troops = %d, want growth past 500 with colony cap", got)
	}
}

func TestFriendlyArrivalMergesAndClamps(t *testing.T) {
	f := newFixture()
	f.addHuman("p1", 1)
	f.addSystem("a", "p1", 0, 0, 0, 200)
	f.addSystem("b", "p1", 200, 0, 0, 500)
	for i := range 5 {
		f.addSystem(sysID(i), "", float64(100+i*50), 300, 0, 50)
	}
	f.addAttack("atk1", "p1", "a", "b", 100)

	result, err := f.svc.ProcessTick(context.Background(), f.gameID)
	if err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}
	if result.AttacksProcessed != 1 {
		t.Errorf("attacks processed = %d, want 1", result.AttacksProcessed)
	}
	if got := f.attacks.attacks["atk1"].Status; got != model.AttackArrived {
		t.Errorf("attack status = %q, want arrived", got)
	}
	// b sits at the base cap, so the merge clamps back to 500
	if got := f.systems.systems["b"].TroopCount; got != 500 {
		t.Errorf("target troops = %d, want 500", got)
	}
	if len(f.attacks.logs) != 0 {
		t.Errorf("friendly arrival wrote %d combat logs", len(f.attacks.logs))
	}
}

func TestFriendlyArrivalBelowCap(t *testing.T) {
	f := newFixture()
	f.addHuman("p1", 1)
	f.addSystem("a", "p1", 0, 0, 0, 200)
	f.addSystem("b", "p1", 200, 0, 0, 0)
	for i := range 5 {
		f.addSystem(sysID(i), "", float64(100+i*50), 300, 0, 50)
	}
	f.addAttack("atk1", "p1", "a", "b", 100)

	if _, err := f.svc.ProcessTick(context.Background(), f.gameID); err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}
	// growth lifts b from 0 to 10 before the 100 reinforcements land
	if got := f.systems.systems["b"].TroopCount; got != 110 {
		t.Errorf("target troops = %d, want 110", got)
	}
}

func TestEnergyEfficiencyBoundaries(t *testing.T) {
	cases := []struct {
		energy int64
		want   float64
	}{
		{0, 0.5},
		{42_000, 1.0},
		{100_000, 0.5},
	}
	for _, tc := range cases {
		if got := energyEfficiency(tc.energy); got != tc.want {
			t.Errorf("energyEfficiency(%d) = %v, want %v", tc.energy, got, tc.want)
		}
	}
}

func TestResourceGenerationCreditsPlanetIncome(t *testing.T) {
	f := newFixture()
	f.addHuman("p1", 1)
	f.addSystem("s1", "p1", 0, 0, 0, 100)
	f.addSystem("s2", "p1", 60, 0, 0, 100)
	for i := range 8 {
		f.addSystem(sysID(i), "", float64(200+i*60), 300, 0, 50)
	}

	if _, err := f.svc.ProcessTick(context.Background(), f.gameID); err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}
	p := f.players.players["p1"]
	if p.Credits != 1000+20 {
		t.Errorf("credits = %d, want 1020 (10 per planet)", p.Credits)
	}
	if p.Energy <= 500 {
		t.Errorf("energy = %d, want energy income applied", p.Energy)
	}
	if p.Minerals != 0 {
		t.Errorf("minerals = %d, want 0 without mining stations", p.Minerals)
	}
}

func TestTradeStationCreditsIncome(t *testing.T) {
	f := newFixture()
	f.addHuman("p1", 1)
	f.addSystem("s1", "p1", 0, 0, 0, 100)
	f.addSystem("s2", "p1", 60, 0, 0, 100)
	for i := range 8 {
		f.addSystem(sysID(i), "", float64(300+i*60), 300, 0, 50)
	}
	f.systems.structures = append(f.systems.structures, model.SystemStructure{
		ID: "st1", GameID: f.gameID, SystemID: "s1", OwnerID: "p1",
		StructureType: model.StructureTradeStation, Level: 1, Health: 100, IsActive: true,
	})

	if _, err := f.svc.ProcessTick(context.Background(), f.gameID); err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}
	// 10 per planet x2 plus 10 for the s1<->s2 trade route
	if got := f.players.players["p1"].Credits; got != 1000+30 {
		t.Errorf("credits = %d, want 1030", got)
	}
}

func TestMiningStationMineralsIncome(t *testing.T) {
	f := newFixture()
	f.addHuman("p1", 1)
	s := f.addSystem("s1", "p1", 0, 0, 0, 100)
	s.HasMinerals = true
	for i := range 8 {
		f.addSystem(sysID(i), "", float64(300+i*60), 300, 0, 50)
	}
	f.systems.structures = append(f.systems.structures, model.SystemStructure{
		ID: "st1", GameID: f.gameID, SystemID: "s1", OwnerID: "p1",
		StructureType: model.StructureMiningStation, Level: 1, Health: 100, IsActive: true,
	})

	if _, err := f.svc.ProcessTick(context.Background(), f.gameID); err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}
	if got := f.players.players["p1"].Minerals; got != 50 {
		t.Errorf("minerals = %d, want 50", got)
	}
}

func TestTickResultCached(t *testing.T) {
	f := newFixture()
	f.addHuman("p1", 1)
	f.addSystem("s1", "p1", 0, 0, 0, 100)
	for i := range 5 {
		f.addSystem(sysID(i), "", float64(100+i*50), 0, 0, 50)
	}

	if _, err := f.svc.ProcessTick(context.Background(), f.gameID); err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}
	if f.cache.results[f.gameID] == nil {
		t.Error("tick result not written to cache")
	}
}
