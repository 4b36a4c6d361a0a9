package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/Dorschm/stellar-sub001/internal/logger"
	"github.com/Dorschm/stellar-sub001/internal/model"
)

// TickProcessor advances a game by one tick.
type TickProcessor interface {
	ProcessTick(ctx context.Context, gameID string) (*model.TickResult, error)
}

// TickHandler exposes the tick processor over HTTP for external drivers.
type TickHandler struct {
	ticker TickProcessor
}

// NewTickHandler creates a TickHandler.
func NewTickHandler(ticker TickProcessor) *TickHandler {
	return &TickHandler{ticker: ticker}
}

type tickRequest struct {
	GameID string `json:"gameId"`
}

type tickStats struct {
	PlanetsProcessed int `json:"planetsProcessed"`
	AttacksProcessed int `json:"attacksProcessed"`
	SectorsCreated   int `json:"sectorsCreated"`
}

// ProcessTick handles POST /api/tick — advances the game by one tick.
func (h *TickHandler) ProcessTick(w http.ResponseWriter, r *http.Request) {
	var req tickRequest
	if err := decodeJSON(r, &req); err != nil || req.GameID == "" {
		writeError(w, http.StatusBadRequest, "gameId is required")
		return
	}

	result, err := h.ticker.ProcessTick(r.Context(), req.GameID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		logger.ForRequest(r.Context()).Error().Err(err).Str("gameId", req.GameID).Msg("Tick failed")
		writeError(w, http.StatusInternalServerError, "tick processing failed")
		return
	}

	if result.SkipReason != "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": result.SkipReason,
		})
		return
	}

	if result.GameComplete {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":           true,
			"tick":              result.Tick,
			"gameComplete":      true,
			"winner":            result.WinnerID,
			"winningPercentage": result.WinningPct,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tick":    result.Tick,
		"stats": tickStats{
			PlanetsProcessed: result.PlanetsProcessed,
			AttacksProcessed: result.AttacksProcessed,
			SectorsCreated:   result.SectorsCreated,
		},
	})
}
