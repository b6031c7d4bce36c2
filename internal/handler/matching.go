package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
	"github.com/tradeflowafrica/tradeflow/internal/engine"
)

// MatchingHandler handles the admin endpoints that trigger and inspect
// matching cycles.
type MatchingHandler struct {
	engine *engine.Engine
}

// NewMatchingHandler creates a new MatchingHandler.
func NewMatchingHandler(eng *engine.Engine) *MatchingHandler {
	return &MatchingHandler{engine: eng}
}

// cycleReportResponse is the JSON representation of a cycle report.
type cycleReportResponse struct {
	CycleID         string  `json:"cycle_id"`
	Pair            string  `json:"pair"`
	StartedAt       string  `json:"started_at"`
	CompletedAt     string  `json:"completed_at"`
	DurationMs      int64   `json:"duration_ms"`
	BuyPoolSize     int     `json:"buy_pool_size"`
	SellPoolSize    int     `json:"sell_pool_size"`
	MatchCount      int     `json:"match_count"`
	VolumeNGN       float64 `json:"volume_ngn"`
	VolumeCNY       float64 `json:"volume_cny"`
	ExpiredCount    int     `json:"expired_count"`
	RateUsed        string  `json:"rate_used"`
	RateSource      string  `json:"rate_source"`
	ConflictRetried bool    `json:"conflict_retried"`
}

// RunCycle handles POST /admin/matching/cycles.
func (h *MatchingHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.RunCycle(r.Context(), domain.PairNGNCNY)
	if err != nil {
		mapCycleError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, buildCycleReportResponse(report))
}

// LatestCycle handles GET /admin/matching/cycles/latest.
func (h *MatchingHandler) LatestCycle(w http.ResponseWriter, r *http.Request) {
	report := h.engine.LastReport()
	if report == nil {
		WriteError(w, http.StatusNotFound, "no_cycles", "No matching cycle has completed yet")
		return
	}

	WriteJSON(w, http.StatusOK, buildCycleReportResponse(report))
}

func buildCycleReportResponse(rep *engine.CycleReport) cycleReportResponse {
	return cycleReportResponse{
		CycleID:         rep.CycleID,
		Pair:            string(rep.Pair),
		StartedAt:       rep.StartedAt.UTC().Format(time.RFC3339),
		CompletedAt:     rep.CompletedAt.UTC().Format(time.RFC3339),
		DurationMs:      rep.Duration.Milliseconds(),
		BuyPoolSize:     rep.BuyPoolSize,
		SellPoolSize:    rep.SellPoolSize,
		MatchCount:      rep.MatchCount,
		VolumeNGN:       domain.MinorToMajor(rep.VolumeNGN),
		VolumeCNY:       domain.MinorToMajor(rep.VolumeCNY),
		ExpiredCount:    rep.ExpiredCount,
		RateUsed:        rep.RateUsed,
		RateSource:      rep.RateSource,
		ConflictRetried: rep.ConflictRetried,
	}
}

// mapCycleError maps domain errors to HTTP responses for cycle endpoints.
func mapCycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		WriteError(w, http.StatusConflict, "cycle_in_progress", "A matching cycle is already running for this pair")
	case errors.Is(err, domain.ErrCycleConflict):
		WriteError(w, http.StatusConflict, "cycle_conflict", "The cycle could not be applied due to concurrent intent changes")
	case errors.Is(err, domain.ErrStaleRate):
		WriteError(w, http.StatusServiceUnavailable, "stale_rate", "No valid rate quote is available")
	case errors.Is(err, domain.ErrUnknownPair):
		WriteError(w, http.StatusNotFound, "unknown_pair", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
