package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/errdeck/errdeck/internal/api"
	"github.com/errdeck/errdeck/internal/services"
)

// ReportHandler accepts exception reports from instrumented applications
type ReportHandler struct {
	ingestService *services.IngestService
}

// NewReportHandler creates a new report handler
func NewReportHandler(ingestService *services.IngestService) *ReportHandler {
	return &ReportHandler{ingestService: ingestService}
}

// ReportRequest is the wire format of one exception report
type ReportRequest struct {
	ErrorType string           `json:"error_type"`
	Message   string           `json:"message"`
	Backtrace []string         `json:"backtrace"`
	Context   services.Context `json:"context"`
}

// ReportResponse acknowledges a report. IssueUUID is empty when the report
// was ignored, sampled out, or failed to ingest; the reporter never sees
// the difference.
type ReportResponse struct {
	IssueUUID       string `json:"issue_uuid,omitempty"`
	Fingerprint     string `json:"fingerprint,omitempty"`
	OccurrenceCount int    `json:"occurrence_count,omitempty"`
}

// HandleReport processes POST /api/report
func (h *ReportHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var req ReportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.ErrorType == "" {
		api.RespondError(w, http.StatusBadRequest, "error_type is required")
		return
	}

	issue := h.ingestService.Report(req.ErrorType, req.Message, req.Backtrace, req.Context)

	resp := ReportResponse{}
	if issue != nil {
		resp.IssueUUID = issue.UUID
		resp.Fingerprint = issue.Fingerprint
		resp.OccurrenceCount = issue.OccurrenceCount
	}
	api.RespondJSON(w, http.StatusAccepted, resp)
}
