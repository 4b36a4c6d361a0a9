package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Dorschm/stellar-sub001/internal/model"
)

type mockGameRepo struct {
	games   map[string]*model.Game
	players map[string][]model.GamePlayer
}

func newMockGameRepo() *mockGameRepo {
	return &mockGameRepo{
		games:   make(map[string]*model.Game),
		players: make(map[string][]model.GamePlayer),
	}
}

func (m *mockGameRepo) Create(_ context.Context, victoryCondition float64, tickRateMs, maxPlayers int) (*model.Game, error) {
	g := &model.Game{
		ID:               fmt.Sprintf("game-%d", len(m.games)+1),
		Status:           model.StatusWaiting,
		VictoryCondition: victoryCondition,
		TickRateMs:       tickRateMs,
		MaxPlayers:       maxPlayers,
		CreatedAt:        time.Now(),
	}
	m.games[g.ID] = g
	return g, nil
}

func (m *mockGameRepo) FindByID(_ context.Context, id string) (*model.Game, error) {
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (m *mockGameRepo) ListActive(_ context.Context) ([]model.Game, error) {
	var result []model.Game
	for _, g := range m.games {
		if g.Status == model.StatusActive {
			result = append(result, *g)
		}
	}
	return result, nil
}

func (m *mockGameRepo) Start(_ context.Context, gameID string, at time.Time) error {
	g, ok := m.games[gameID]
	if !ok {
		return fmt.Errorf("game %s not found", gameID)
	}
	g.Status = model.StatusActive
	g.StartedAt = &at
	return nil
}

func (m *mockGameRepo) AddPlayer(_ context.Context, gameID, playerID, empireColor string, placementOrder int) error {
	m.players[gameID] = append(m.players[gameID], model.GamePlayer{
		GameID:         gameID,
		PlayerID:       playerID,
		EmpireColor:    empireColor,
		PlacementOrder: placementOrder,
		IsAlive:        true,
		IsActive:       true,
		LastSeen:       time.Now(),
	})
	return nil
}

func (m *mockGameRepo) ListPlayers(_ context.Context, gameID string) ([]model.GamePlayer, error) {
	return append([]model.GamePlayer(nil), m.players[gameID]...), nil
}

func (m *mockGameRepo) CompleteIfOngoing(_ context.Context, gameID, winnerID, victoryType string, endedAt time.Time, durationSeconds int) (bool, error) {
	g, ok := m.games[gameID]
	if !ok || g.Status == model.StatusCompleted {
		return false, nil
	}
	g.Status = model.StatusCompleted
	g.WinnerID = winnerID
	g.VictoryType = victoryType
	g.EndedAt = &endedAt
	g.GameDurationSeconds = &durationSeconds
	return true, nil
}

func (m *mockGameRepo) Heartbeat(_ context.Context, gameID, playerID string, at time.Time) error {
	for i := range m.players[gameID] {
		if m.players[gameID][i].PlayerID == playerID {
			m.players[gameID][i].LastSeen = at
			m.players[gameID][i].IsActive = true
		}
	}
	return nil
}

func (m *mockGameRepo) MarkInactive(_ context.Context, gameID, playerID string) error {
	for i := range m.players[gameID] {
		if m.players[gameID][i].PlayerID == playerID {
			m.players[gameID][i].IsActive = false
		}
	}
	return nil
}

func (m *mockGameRepo) EliminatePlayer(_ context.Context, gameID, playerID string, at time.Time) (bool, error) {
	for i := range m.players[gameID] {
		gp := &m.players[gameID][i]
		if gp.PlayerID != playerID {
			continue
		}
		if !gp.IsAlive || gp.IsEliminated {
			return false, nil
		}
		gp.IsAlive = false
		gp.IsEliminated = true
		gp.EliminatedAt = &at
		return true, nil
	}
	return false, nil
}

func (m *mockGameRepo) UpdatePlacementOrders(_ context.Context, gameID string, orders map[string]int) error {
	for i := range m.players[gameID] {
		if order, ok := orders[m.players[gameID][i].PlayerID]; ok {
			m.players[gameID][i].PlacementOrder = order
		}
	}
	return nil
}

func (m *mockGameRepo) RaisePeakTerritory(_ context.Context, gameID, playerID string, pct float64) error {
	for i := range m.players[gameID] {
		gp := &m.players[gameID][i]
		if gp.PlayerID == playerID && pct > gp.PeakTerritoryPct {
			gp.PeakTerritoryPct = pct
		}
	}
	return nil
}

func (m *mockGameRepo) SetFinalResult(_ context.Context, gameID, playerID string, placement int, territoryPct float64) error {
	for i := range m.players[gameID] {
		gp := &m.players[gameID][i]
		if gp.PlayerID == playerID {
			gp.FinalPlacement = &placement
			gp.FinalTerritoryPct = &territoryPct
		}
	}
	return nil
}

type mockPlayerRepo struct {
	players map[string]*model.Player
}

func newMockPlayerRepo() *mockPlayerRepo {
	return &mockPlayerRepo{players: make(map[string]*model.Player)}
}

func (m *mockPlayerRepo) Create(_ context.Context, username string, isBot bool, botDifficulty string) (*model.Player, error) {
	p := &model.Player{
		ID:            fmt.Sprintf("player-%d", len(m.players)+1),
		Username:      username,
		Credits:       1000,
		Energy:        500,
		IsBot:         isBot,
		BotDifficulty: botDifficulty,
	}
	m.players[p.ID] = p
	return p, nil
}

func (m *mockPlayerRepo) FindByID(_ context.Context, id string) (*model.Player, error) {
	p, ok := m.players[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockPlayerRepo) AddResources(_ context.Context, id string, credits, energy, minerals, research int64) error {
	p, ok := m.players[id]
	if !ok {
		return fmt.Errorf("player %s not found", id)
	}
	p.Credits = clampRes(p.Credits+credits, 1_000_000)
	p.Energy = clampRes(p.Energy+energy, 100_000)
	p.Minerals = clampRes(p.Minerals+minerals, 100_000)
	p.ResearchPoints = clampRes(p.ResearchPoints+research, 1_000)
	return nil
}

func clampRes(v, cap int64) int64 {
	if v < 0 {
		return 0
	}
	if v > cap {
		return cap
	}
	return v
}

type mockSystemRepo struct {
	systems    map[string]*model.System
	order      []string
	structures []model.SystemStructure
}

func newMockSystemRepo() *mockSystemRepo {
	return &mockSystemRepo{systems: make(map[string]*model.System)}
}

func (m *mockSystemRepo) InsertBatch(_ context.Context, systems []model.System) error {
	for i := range systems {
		cp := systems[i]
		m.systems[cp.ID] = &cp
		m.order = append(m.order, cp.ID)
	}
	return nil
}

func (m *mockSystemRepo) ListByGame(_ context.Context, gameID string) ([]model.System, error) {
	var result []model.System
	for _, id := range m.order {
		if m.systems[id].GameID == gameID {
			result = append(result, *m.systems[id])
		}
	}
	return result, nil
}

func (m *mockSystemRepo) FindByID(_ context.Context, id string) (*model.System, error) {
	s, ok := m.systems[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockSystemRepo) SetTroops(_ context.Context, id string, troops int) error {
	s, ok := m.systems[id]
	if !ok {
		return fmt.Errorf("system %s not found", id)
	}
	s.TroopCount = troops
	return nil
}

func (m *mockSystemRepo) SetOwner(_ context.Context, id, ownerID string, troops int) error {
	s, ok := m.systems[id]
	if !ok {
		return fmt.Errorf("system %s not found", id)
	}
	s.OwnerID = ownerID
	s.TroopCount = troops
	return nil
}

func (m *mockSystemRepo) ListStructures(_ context.Context, gameID string) ([]model.SystemStructure, error) {
	var result []model.SystemStructure
	for _, s := range m.structures {
		if s.GameID == gameID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockSystemRepo) CreateStructure(_ context.Context, s *model.SystemStructure) error {
	m.structures = append(m.structures, *s)
	return nil
}

func (m *mockSystemRepo) CountStructuresBuilt(_ context.Context, gameID, ownerID string) (int, error) {
	n := 0
	for _, s := range m.structures {
		if s.GameID == gameID && s.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

type mockAttackRepo struct {
	attacks map[string]*model.Attack
	order   []string
	logs    []model.CombatLog
}

func newMockAttackRepo() *mockAttackRepo {
	return &mockAttackRepo{attacks: make(map[string]*model.Attack)}
}

func (m *mockAttackRepo) Create(_ context.Context, a *model.Attack) error {
	cp := *a
	m.attacks[cp.ID] = &cp
	m.order = append(m.order, cp.ID)
	return nil
}

func (m *mockAttackRepo) ListArrivable(_ context.Context, gameID string, now time.Time) ([]model.Attack, error) {
	var result []model.Attack
	for _, id := range m.order {
		a := m.attacks[id]
		if a.GameID == gameID && a.Status == model.AttackInTransit && !a.ArrivalAt.After(now) {
			result = append(result, *a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].ArrivalAt.Equal(result[j].ArrivalAt) {
			return result[i].ArrivalAt.Before(result[j].ArrivalAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *mockAttackRepo) ClaimTransition(_ context.Context, id, toStatus string) (bool, error) {
	a, ok := m.attacks[id]
	if !ok || a.Status != model.AttackInTransit {
		return false, nil
	}
	a.Status = toStatus
	return true, nil
}

func (m *mockAttackRepo) AppendCombatLog(_ context.Context, l *model.CombatLog) error {
	m.logs = append(m.logs, *l)
	return nil
}

func (m *mockAttackRepo) SumTroopsSent(_ context.Context, gameID, attackerID string) (int, error) {
	n := 0
	for _, a := range m.attacks {
		if a.GameID == gameID && a.AttackerID == attackerID {
			n += a.Troops
		}
	}
	return n, nil
}

func (m *mockAttackRepo) CombatRecord(_ context.Context, gameID, playerID string) (won, lost, captured int, err error) {
	for _, l := range m.logs {
		if l.GameID != gameID {
			continue
		}
		switch l.CombatResult {
		case model.ResultAttackerVictory:
			if l.AttackerID == playerID {
				won++
				captured++
			}
			if l.DefenderID == playerID {
				lost++
			}
		case model.ResultDefenderVictory:
			if l.DefenderID == playerID {
				won++
			}
			if l.AttackerID == playerID {
				lost++
			}
		case model.ResultRetreat:
			if l.AttackerID == playerID {
				lost++
			}
		}
	}
	return won, lost, captured, nil
}

type mockTerritoryRepo struct {
	sectors []model.TerritorySector
}

func newMockTerritoryRepo() *mockTerritoryRepo {
	return &mockTerritoryRepo{}
}

func (m *mockTerritoryRepo) ListByGame(_ context.Context, gameID string) ([]model.TerritorySector, error) {
	var result []model.TerritorySector
	for _, s := range m.sectors {
		if s.GameID == gameID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockTerritoryRepo) InsertBatch(_ context.Context, sectors []model.TerritorySector) error {
	m.sectors = append(m.sectors, sectors...)
	return nil
}

func (m *mockTerritoryRepo) ReassignPlanetSectors(_ context.Context, planetID, newOwnerID string, at time.Time) error {
	for i := range m.sectors {
		if m.sectors[i].ControlledByID == planetID {
			m.sectors[i].OwnerID = newOwnerID
			m.sectors[i].CapturedAt = at
		}
	}
	return nil
}

type mockTickRepo struct {
	counters map[string]int
}

func newMockTickRepo() *mockTickRepo {
	return &mockTickRepo{counters: make(map[string]int)}
}

func (m *mockTickRepo) Increment(_ context.Context, gameID string, _ time.Time) (int, error) {
	m.counters[gameID]++
	return m.counters[gameID], nil
}

func (m *mockTickRepo) Current(_ context.Context, gameID string) (int, error) {
	return m.counters[gameID], nil
}

type mockStatsRepo struct {
	rows map[string]model.GameStats

	// failUpserts makes the next N Upsert calls fail, simulating a lost
	// finalization write.
	failUpserts int
}

func newMockStatsRepo() *mockStatsRepo {
	return &mockStatsRepo{rows: make(map[string]model.GameStats)}
}

func (m *mockStatsRepo) Upsert(_ context.Context, stats []model.GameStats) error {
	if m.failUpserts > 0 {
		m.failUpserts--
		return fmt.Errorf("stats store unavailable")
	}
	for _, s := range stats {
		key := s.GameID + "|" + s.PlayerID
		if _, ok := m.rows[key]; ok {
			continue
		}
		m.rows[key] = s
	}
	return nil
}

func (m *mockStatsRepo) CountForGame(_ context.Context, gameID string) (int, error) {
	n := 0
	for key := range m.rows {
		if strings.HasPrefix(key, gameID+"|") {
			n++
		}
	}
	return n, nil
}

type mockCache struct {
	results map[string]json.RawMessage
	locks   map[string]bool
	deleted []string
}

func newMockCache() *mockCache {
	return &mockCache{
		results: make(map[string]json.RawMessage),
		locks:   make(map[string]bool),
	}
}

func (m *mockCache) SetTickResult(_ context.Context, gameID string, result json.RawMessage) error {
	m.results[gameID] = result
	return nil
}

func (m *mockCache) GetTickResult(_ context.Context, gameID string) (json.RawMessage, error) {
	return m.results[gameID], nil
}

func (m *mockCache) TryTickLock(_ context.Context, gameID string, _ time.Duration) (bool, error) {
	if m.locks[gameID] {
		return false, nil
	}
	m.locks[gameID] = true
	return true, nil
}

func (m *mockCache) ReleaseTickLock(_ context.Context, gameID string) error {
	delete(m.locks, gameID)
	return nil
}

func (m *mockCache) Heartbeat(_ context.Context, gameID, playerID string, _ time.Duration) error {
	return nil
}

func (m *mockCache) DeleteGameData(_ context.Context, gameID string) error {
	m.deleted = append(m.deleted, gameID)
	delete(m.results, gameID)
	return nil
}

// fixture assembles a TickService over fresh mocks with one active game.
type fixture struct {
	games     *mockGameRepo
	players   *mockPlayerRepo
	systems   *mockSystemRepo
	attacks   *mockAttackRepo
	territory *mockTerritoryRepo
	ticks     *mockTickRepo
	stats     *mockStatsRepo
	cache     *mockCache
	svc       *TickService
	gameID    string
}

func newFixture() *fixture {
	f := &fixture{
		games:     newMockGameRepo(),
		players:   newMockPlayerRepo(),
		systems:   newMockSystemRepo(),
		attacks:   newMockAttackRepo(),
		territory: newMockTerritoryRepo(),
		ticks:     newMockTickRepo(),
		stats:     newMockStatsRepo(),
		cache:     newMockCache(),
	}
	f.svc = NewTickService(f.games, f.players, f.systems, f.attacks, f.territory,
		f.ticks, f.stats, f.cache, nil, zerolog.Nop())

	startedAt := time.Now().Add(-2 * time.Minute)
	f.games.games["g1"] = &model.Game{
		ID:               "g1",
		Status:           model.StatusActive,
		VictoryCondition: 80,
		TickRateMs:       100,
		MaxPlayers:       8,
		CreatedAt:        startedAt.Add(-time.Minute),
		StartedAt:        &startedAt,
	}
	f.gameID = "g1"
	return f
}

// addHuman seats a human participant and creates the backing player row.
func (f *fixture) addHuman(id string, order int) {
	f.games.players[f.gameID] = append(f.games.players[f.gameID], model.GamePlayer{
		GameID:         f.gameID,
		PlayerID:       id,
		PlacementOrder: order,
		IsAlive:        true,
		IsActive:       true,
		LastSeen:       time.Now(),
	})
	f.players.players[id] = &model.Player{ID: id, Username: id, Credits: 1000, Energy: 500}
}

// addBot seats a bot participant.
func (f *fixture) addBot(id string, order int, difficulty string, credits int64) {
	f.addHuman(id, order)
	f.players.players[id].IsBot = true
	f.players.players[id].BotDifficulty = difficulty
	f.players.players[id].Credits = credits
}

// addSystem registers a planet in the fixture game.
func (f *fixture) addSystem(id, ownerID string, x, y, z float64, troops int) *model.System {
	s := &model.System{
		ID:         id,
		GameID:     f.gameID,
		Name:       id,
		X:          x,
		Y:          y,
		Z:          z,
		OwnerID:    ownerID,
		TroopCount: troops,
	}
	f.systems.systems[id] = s
	f.systems.order = append(f.systems.order, id)
	return s
}

// addAttack queues an in-transit attack that arrived in the past.
func (f *fixture) addAttack(id, attackerID, sourceID, targetID string, troops int) {
	f.attacks.attacks[id] = &model.Attack{
		ID:             id,
		GameID:         f.gameID,
		AttackerID:     attackerID,
		SourceSystemID: sourceID,
		TargetSystemID: targetID,
		Troops:         troops,
		ArrivalAt:      time.Now().Add(-time.Second),
		Status:         model.AttackInTransit,
		CreatedAt:      time.Now().Add(-time.Minute),
	}
	f.attacks.order = append(f.attacks.order, id)
}
