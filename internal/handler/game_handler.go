package handler

import (
	"errors"
	"net/http"

	"github.com/Dorschm/stellar-sub001/internal/logger"
	"github.com/Dorschm/stellar-sub001/internal/service"
)

// GameHandler exposes the game lifecycle endpoints.
type GameHandler struct {
	games *service.GameService
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(games *service.GameService) *GameHandler {
	return &GameHandler{games: games}
}

// CreateGame handles POST /api/games.
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VictoryCondition float64 `json:"victoryCondition"`
		TickRateMs       int     `json:"tickRateMs"`
		MaxPlayers       int     `json:"maxPlayers"`
	}
	if r.Body != nil {
		_ = decodeJSON(r, &req)
	}

	game, err := h.games.CreateGame(r.Context(), req.VictoryCondition, req.TickRateMs, req.MaxPlayers)
	if err != nil {
		logger.ForRequest(r.Context()).Error().Err(err).Msg("Create game failed")
		writeError(w, http.StatusInternalServerError, "failed to create game")
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

// GetGame handles GET /api/games/{id}.
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.games.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err, "load game failed")
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// ListActiveGames handles GET /api/games/active.
func (h *GameHandler) ListActiveGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.ListActive(r.Context())
	if err != nil {
		logger.ForRequest(r.Context()).Error().Err(err).Msg("List active games failed")
		writeError(w, http.StatusInternalServerError, "failed to list games")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

// JoinGame handles POST /api/games/{id}/join.
func (h *GameHandler) JoinGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "playerId is required")
		return
	}
	if err := h.games.Join(r.Context(), r.PathValue("id"), req.PlayerID); err != nil {
		h.writeServiceError(w, r, err, "join game failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// AddBot handles POST /api/games/{id}/bots.
func (h *GameHandler) AddBot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Difficulty string `json:"difficulty"`
	}
	if r.Body != nil {
		_ = decodeJSON(r, &req)
	}
	if req.Difficulty == "" {
		req.Difficulty = "normal"
	}
	p, err := h.games.AddBot(r.Context(), r.PathValue("id"), req.Difficulty)
	if err != nil {
		h.writeServiceError(w, r, err, "add bot failed")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// StartGame handles POST /api/games/{id}/start.
func (h *GameHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	if err := h.games.Start(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err, "start game failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Heartbeat handles POST /api/games/{id}/heartbeat.
func (h *GameHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "playerId is required")
		return
	}
	if err := h.games.Heartbeat(r.Context(), r.PathValue("id"), req.PlayerID); err != nil {
		h.writeServiceError(w, r, err, "heartbeat failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// MarkInactive handles POST /api/mark-inactive — the browser unload beacon.
func (h *GameHandler) MarkInactive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GameID   string `json:"gameId"`
		PlayerID string `json:"playerId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.GameID == "" || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "gameId and playerId are required")
		return
	}
	if err := h.games.MarkInactive(r.Context(), req.GameID, req.PlayerID); err != nil {
		h.writeServiceError(w, r, err, "mark inactive failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// LatestTick handles GET /api/games/{id}/tick — the last cached tick result.
func (h *GameHandler) LatestTick(w http.ResponseWriter, r *http.Request) {
	data, err := h.games.LatestTick(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err, "latest tick failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// LaunchAttack handles POST /api/games/{id}/attacks.
func (h *GameHandler) LaunchAttack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId"`
		SourceID string `json:"sourcePlanetId"`
		TargetID string `json:"targetPlanetId"`
		Troops   int    `json:"troops"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlayerID == "" || req.SourceID == "" || req.TargetID == "" {
		writeError(w, http.StatusBadRequest, "playerId, sourcePlanetId, and targetPlanetId are required")
		return
	}
	attack, err := h.games.LaunchAttack(r.Context(), r.PathValue("id"), req.PlayerID, req.SourceID, req.TargetID, req.Troops)
	if err != nil {
		h.writeServiceError(w, r, err, "launch attack failed")
		return
	}
	writeJSON(w, http.StatusCreated, attack)
}

// BuildStructure handles POST /api/games/{id}/structures.
func (h *GameHandler) BuildStructure(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID      string `json:"playerId"`
		SystemID      string `json:"systemId"`
		StructureType string `json:"structureType"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlayerID == "" || req.SystemID == "" || req.StructureType == "" {
		writeError(w, http.StatusBadRequest, "playerId, systemId, and structureType are required")
		return
	}
	st, err := h.games.BuildStructure(r.Context(), r.PathValue("id"), req.PlayerID, req.SystemID, req.StructureType)
	if err != nil {
		h.writeServiceError(w, r, err, "build structure failed")
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// writeServiceError maps the lifecycle sentinel errors to status codes.
func (h *GameHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, service.ErrGameNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrGameNotJoinable),
		errors.Is(err, service.ErrGameFull),
		errors.Is(err, service.ErrGameNotStartable),
		errors.Is(err, service.ErrNotEnoughPlayers),
		errors.Is(err, service.ErrNotPlanetOwner),
		errors.Is(err, service.ErrInsufficientTroops),
		errors.Is(err, service.ErrInsufficientCredits),
		errors.Is(err, service.ErrUnknownStructure):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.ForRequest(r.Context()).Error().Err(err).Msg(logMsg)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
