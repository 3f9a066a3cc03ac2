package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/api"
	"github.com/errdeck/errdeck/internal/backtrace"
	"github.com/errdeck/errdeck/internal/cascade"
	"github.com/errdeck/errdeck/internal/services"
)

// IssueHandler serves the issues API: listing, lookup, resolution, deletion,
// similarity and cascade queries.
type IssueHandler struct {
	issueService *services.IssueService
	scorer       *backtrace.Scorer
	detector     *cascade.Detector
}

// NewIssueHandler creates a new issue handler
func NewIssueHandler(issueService *services.IssueService, scorer *backtrace.Scorer, detector *cascade.Detector) *IssueHandler {
	return &IssueHandler{
		issueService: issueService,
		scorer:       scorer,
		detector:     detector,
	}
}

// HandleIssues serves GET /api/issues
func (h *IssueHandler) HandleIssues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	pagination := api.ParsePagination(r)
	filter := services.ListFilter{
		ErrorType: r.URL.Query().Get("error_type"),
		Platform:  r.URL.Query().Get("platform"),
		Limit:     pagination.PerPage,
		Offset:    pagination.Offset(),
	}
	if v := r.URL.Query().Get("resolved"); v != "" {
		resolved := v == "true"
		filter.Resolved = &resolved
	}

	issues, err := h.issueService.ListIssues(filter)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to list issues")
		return
	}
	api.RespondJSON(w, http.StatusOK, issues)
}

// HandleIssue routes /api/issues/{id} and its sub-resources
func (h *IssueHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/issues/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")

	id, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid issue id")
		return
	}
	issueID := uint(id)

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.getIssue(w, issueID)
		case http.MethodDelete:
			h.deleteIssue(w, issueID)
		default:
			api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	switch parts[1] {
	case "resolve":
		h.resolveIssue(w, r, issueID)
	case "similar":
		h.similarIssues(w, r, issueID)
	case "cascades":
		h.cascades(w, r, issueID)
	case "viewed":
		h.markViewed(w, r, issueID)
	default:
		api.RespondError(w, http.StatusNotFound, "Unknown resource")
	}
}

func (h *IssueHandler) getIssue(w http.ResponseWriter, id uint) {
	issue, err := h.issueService.GetIssue(id)
	if err == gorm.ErrRecordNotFound {
		api.RespondNotFound(w, "issue")
		return
	}
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to load issue")
		return
	}
	api.RespondJSON(w, http.StatusOK, issue)
}

func (h *IssueHandler) deleteIssue(w http.ResponseWriter, id uint) {
	err := h.issueService.DeleteIssue(id)
	if err == gorm.ErrRecordNotFound {
		api.RespondNotFound(w, "issue")
		return
	}
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to delete issue")
		return
	}
	api.RespondNoContent(w)
}

func (h *IssueHandler) resolveIssue(w http.ResponseWriter, r *http.Request, id uint) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var res services.Resolution
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	issue, err := h.issueService.ResolveIssue(id, res)
	if err == gorm.ErrRecordNotFound {
		api.RespondNotFound(w, "issue")
		return
	}
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to resolve issue")
		return
	}
	api.RespondJSON(w, http.StatusOK, issue)
}

func (h *IssueHandler) similarIssues(w http.ResponseWriter, r *http.Request, id uint) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	issue, err := h.issueService.GetIssue(id)
	if err == gorm.ErrRecordNotFound {
		api.RespondNotFound(w, "issue")
		return
	}
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to load issue")
		return
	}

	threshold := 0.5
	if v := r.URL.Query().Get("threshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			threshold = f
		}
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	similar, err := h.scorer.FindSimilar(issue, threshold, limit)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Similarity search failed")
		return
	}
	api.RespondJSON(w, http.StatusOK, similar)
}

func (h *IssueHandler) cascades(w http.ResponseWriter, r *http.Request, id uint) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	minProbability := 0.0
	if v := r.URL.Query().Get("min_probability"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			minProbability = f
		}
	}

	related, err := h.detector.CascadesFor(id, minProbability)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Cascade lookup failed")
		return
	}
	api.RespondJSON(w, http.StatusOK, related)
}

func (h *IssueHandler) markViewed(w http.ResponseWriter, r *http.Request, id uint) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	err := h.issueService.MarkViewed(id)
	if err == gorm.ErrRecordNotFound {
		api.RespondNotFound(w, "issue")
		return
	}
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to mark issue viewed")
		return
	}
	api.RespondNoContent(w)
}

// BatchRequest lists the issue ids of a batch operation, plus resolution
// metadata for batch resolve
type BatchRequest struct {
	IDs        []uint `json:"ids"`
	ResolvedBy string `json:"resolved_by"`
	Comment    string `json:"comment"`
	Reference  string `json:"reference"`
}

// HandleBatchResolve serves POST /api/issues/batch/resolve
func (h *IssueHandler) HandleBatchResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	result := h.issueService.BatchResolve(req.IDs, services.Resolution{
		ResolvedBy: req.ResolvedBy,
		Comment:    req.Comment,
		Reference:  req.Reference,
	})
	api.RespondJSON(w, http.StatusOK, result)
}

// HandleBatchDelete serves POST /api/issues/batch/delete
func (h *IssueHandler) HandleBatchDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	result := h.issueService.BatchDelete(req.IDs)
	api.RespondJSON(w, http.StatusOK, result)
}
