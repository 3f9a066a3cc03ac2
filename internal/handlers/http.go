package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// HTTPHandler handles HTTP endpoints
type HTTPHandler struct {
	reportHandler *ReportHandler
	issueHandler  *IssueHandler
	statsHandler  *StatsHandler
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(reportHandler *ReportHandler, issueHandler *IssueHandler, statsHandler *StatsHandler) *HTTPHandler {
	return &HTTPHandler{
		reportHandler: reportHandler,
		issueHandler:  issueHandler,
		statsHandler:  statsHandler,
	}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)

	if h.reportHandler != nil {
		mux.HandleFunc("/api/report", h.reportHandler.HandleReport)
	}

	if h.issueHandler != nil {
		mux.HandleFunc("/api/issues", h.issueHandler.HandleIssues)
		// Issue sub-resources: /api/issues/{id}[/resolve|similar|cascades|viewed]
		mux.HandleFunc("/api/issues/", h.issueHandler.HandleIssue)
		mux.HandleFunc("/api/issues/batch/resolve", h.issueHandler.HandleBatchResolve)
		mux.HandleFunc("/api/issues/batch/delete", h.issueHandler.HandleBatchDelete)
	}

	if h.statsHandler != nil {
		mux.HandleFunc("/api/stats/overview", h.statsHandler.HandleOverview)
		mux.HandleFunc("/api/stats/by-version", h.statsHandler.HandleByVersion)
		mux.HandleFunc("/api/stats/by-revision", h.statsHandler.HandleByRevision)
		mux.HandleFunc("/api/stats/problematic-releases", h.statsHandler.HandleProblematicReleases)
		mux.HandleFunc("/api/stats/multi-error-users", h.statsHandler.HandleMultiErrorUsers)
		mux.HandleFunc("/api/stats/correlated-errors", h.statsHandler.HandleCorrelatedErrors)
		mux.HandleFunc("/api/stats/patterns", h.statsHandler.HandlePatterns)
	}
}

// handleHealth returns a simple health check response
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := map[string]string{
		"status":  "ok",
		"version": "1.0.0",
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}
