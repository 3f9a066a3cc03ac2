package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/errdeck/errdeck/internal/api"
	"github.com/errdeck/errdeck/internal/services"
)

// StatsHandler serves the correlation and comparison endpoints
type StatsHandler struct {
	correlationService *services.CorrelationService
	patternService     *services.PatternService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(correlationService *services.CorrelationService, patternService *services.PatternService) *StatsHandler {
	return &StatsHandler{
		correlationService: correlationService,
		patternService:     patternService,
	}
}

func parseDays(r *http.Request) int {
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 7
}

// HandleByVersion serves GET /api/stats/by-version
func (h *StatsHandler) HandleByVersion(w http.ResponseWriter, r *http.Request) {
	stats, err := h.correlationService.ErrorsByVersion(parseDays(r))
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to aggregate by version")
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}

// HandleByRevision serves GET /api/stats/by-revision
func (h *StatsHandler) HandleByRevision(w http.ResponseWriter, r *http.Request) {
	stats, err := h.correlationService.ErrorsByRevision(parseDays(r))
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to aggregate by revision")
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}

// HandleProblematicReleases serves GET /api/stats/problematic-releases
func (h *StatsHandler) HandleProblematicReleases(w http.ResponseWriter, r *http.Request) {
	threshold := 2.0
	if v := r.URL.Query().Get("threshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			threshold = f
		}
	}

	stats, err := h.correlationService.ProblematicReleases(parseDays(r), threshold)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to find problematic releases")
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}

// HandleOverview serves GET /api/stats/overview: the dashboard's one-call
// summary of platform rates, severities, resolution and stability.
func (h *StatsHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	days := parseDays(r)

	platforms, err := h.correlationService.ErrorsByPlatform(days)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to aggregate by platform")
		return
	}
	severities, err := h.correlationService.SeverityDistribution(days)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to aggregate severities")
		return
	}
	resolution, err := h.correlationService.ResolutionTimes(days)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to compute resolution times")
		return
	}
	topTypes, err := h.correlationService.TopErrorTypes(days, 10)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to compute top error types")
		return
	}
	stability, err := h.correlationService.StabilityScore(days)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to compute stability score")
		return
	}
	trend, err := h.correlationService.DailyTrend(days)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to compute daily trend")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"platforms":       platforms,
		"severities":      severities,
		"resolution":      resolution,
		"top_error_types": topTypes,
		"stability_score": stability,
		"daily_trend":     trend,
	})
}

// HandleMultiErrorUsers serves GET /api/stats/multi-error-users
func (h *StatsHandler) HandleMultiErrorUsers(w http.ResponseWriter, r *http.Request) {
	minTypes := 2
	if v := r.URL.Query().Get("min_types"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minTypes = n
		}
	}

	stats, err := h.correlationService.MultiErrorUsers(parseDays(r), minTypes)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to find multi-error users")
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}

// HandleCorrelatedErrors serves GET /api/stats/correlated-errors
func (h *StatsHandler) HandleCorrelatedErrors(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.correlationService.TimeCorrelatedErrors(parseDays(r), 5*time.Minute, 3)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to correlate errors")
		return
	}
	api.RespondJSON(w, http.StatusOK, pairs)
}

// HandlePatterns serves GET /api/stats/patterns?error_type=X&platform=Y
func (h *StatsHandler) HandlePatterns(w http.ResponseWriter, r *http.Request) {
	errorType := r.URL.Query().Get("error_type")
	platform := r.URL.Query().Get("platform")
	if errorType == "" {
		api.RespondError(w, http.StatusBadRequest, "error_type is required")
		return
	}
	days := parseDays(r)

	cyclical, err := h.patternService.CyclicalFor(errorType, platform, days)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Pattern analysis failed")
		return
	}
	bursts, err := h.patternService.BurstsFor(errorType, platform, days, 0, 0)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Burst analysis failed")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"cyclical": cyclical,
		"bursts":   bursts,
	})
}
