package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/backtrace"
	"github.com/errdeck/errdeck/internal/cascade"
	"github.com/errdeck/errdeck/internal/database"
	"github.com/errdeck/errdeck/internal/events"
	"github.com/errdeck/errdeck/internal/services"
	"github.com/errdeck/errdeck/internal/testhelpers"
)

func newTestIssueHandler(t *testing.T) (*IssueHandler, *gorm.DB) {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	handler := NewIssueHandler(
		services.NewIssueService(db, events.NewBus()),
		backtrace.NewScorer(db, 100),
		cascade.NewDetector(db, 5*time.Minute, 0.5),
	)
	return handler, db
}

func TestHandleIssuesListsWithFilters(t *testing.T) {
	handler, db := newTestIssueHandler(t)

	testhelpers.NewIssueBuilder().WithErrorType("NoMethodError").WithPlatform("web").Create(t, db)
	testhelpers.NewIssueBuilder().WithErrorType("NoMethodError").WithPlatform("mobile").Create(t, db)
	testhelpers.NewIssueBuilder().WithErrorType("TimeoutError").WithPlatform("web").Create(t, db)

	var issues []database.Issue
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/issues?platform=web&error_type=NoMethodError", nil).
		ExecuteFunc(handler.HandleIssues).
		AssertStatus(http.StatusOK).
		DecodeJSON(&issues)

	if len(issues) != 1 {
		t.Fatalf("expected 1 filtered issue, got %d", len(issues))
	}
	if issues[0].ErrorType != "NoMethodError" || issues[0].Platform != "web" {
		t.Errorf("wrong issue returned: %s/%s", issues[0].ErrorType, issues[0].Platform)
	}
}

func TestHandleIssuesRejectsPost(t *testing.T) {
	handler, _ := newTestIssueHandler(t)

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/issues", nil).
		ExecuteFunc(handler.HandleIssues).
		AssertStatus(http.StatusMethodNotAllowed)
}

func TestHandleIssueGet(t *testing.T) {
	handler, db := newTestIssueHandler(t)
	issue := testhelpers.NewIssueBuilder().WithErrorType("NoMethodError").Create(t, db)

	var got database.Issue
	testhelpers.NewHTTPTestContext(t, http.MethodGet, fmt.Sprintf("/api/issues/%d", issue.ID), nil).
		ExecuteFunc(handler.HandleIssue).
		AssertStatus(http.StatusOK).
		DecodeJSON(&got)

	if got.ID != issue.ID {
		t.Errorf("got issue %d, want %d", got.ID, issue.ID)
	}
}

func TestHandleIssueNotFound(t *testing.T) {
	handler, _ := newTestIssueHandler(t)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/issues/99999", nil).
		ExecuteFunc(handler.HandleIssue).
		AssertStatus(http.StatusNotFound)
}

func TestHandleIssueRejectsBadID(t *testing.T) {
	handler, _ := newTestIssueHandler(t)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/issues/not-a-number", nil).
		ExecuteFunc(handler.HandleIssue).
		AssertStatus(http.StatusBadRequest)
}

func TestHandleIssueResolve(t *testing.T) {
	handler, db := newTestIssueHandler(t)
	issue := testhelpers.NewIssueBuilder().WithErrorType("NoMethodError").Create(t, db)

	var resolved database.Issue
	testhelpers.NewHTTPTestContext(t, http.MethodPost, fmt.Sprintf("/api/issues/%d/resolve", issue.ID), nil).
		WithJSONBody(services.Resolution{ResolvedBy: "alice", Comment: "fixed in deploy"}).
		ExecuteFunc(handler.HandleIssue).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resolved)

	if !resolved.Resolved {
		t.Error("issue should be resolved")
	}
	if resolved.ResolvedBy != "alice" {
		t.Errorf("ResolvedBy = %q, want alice", resolved.ResolvedBy)
	}
}

func TestHandleIssueDelete(t *testing.T) {
	handler, db := newTestIssueHandler(t)
	issue := testhelpers.NewIssueBuilder().Create(t, db)

	testhelpers.NewHTTPTestContext(t, http.MethodDelete, fmt.Sprintf("/api/issues/%d", issue.ID), nil).
		ExecuteFunc(handler.HandleIssue).
		AssertStatus(http.StatusNoContent)

	var count int64
	db.Model(&database.Issue{}).Count(&count)
	if count != 0 {
		t.Errorf("expected issue removed, %d rows remain", count)
	}
}

func TestHandleIssueSimilar(t *testing.T) {
	handler, db := newTestIssueHandler(t)
	issue := testhelpers.NewIssueBuilder().
		WithErrorType("NoMethodError").
		WithMessage("undefined method 'save' for nil").
		WithSignature("user.rb:save|post.rb:publish").
		Create(t, db)
	testhelpers.NewIssueBuilder().
		WithErrorType("NoMethodError").
		WithMessage("undefined method 'save' for nil").
		WithSignature("user.rb:save|post.rb:publish").
		Create(t, db)

	var matches []backtrace.ScoredIssue
	testhelpers.NewHTTPTestContext(t, http.MethodGet, fmt.Sprintf("/api/issues/%d/similar?threshold=0.5", issue.ID), nil).
		ExecuteFunc(handler.HandleIssue).
		AssertStatus(http.StatusOK).
		DecodeJSON(&matches)

	if len(matches) != 1 {
		t.Fatalf("expected 1 similar issue, got %d", len(matches))
	}
	if matches[0].Score < 0.5 {
		t.Errorf("Score = %v, want >= 0.5", matches[0].Score)
	}
}

func TestHandleIssueCascades(t *testing.T) {
	handler, db := newTestIssueHandler(t)
	parent := testhelpers.NewIssueBuilder().WithErrorType("DatabaseConnectionError").Create(t, db)
	child := testhelpers.NewIssueBuilder().WithErrorType("TimeoutError").Create(t, db)

	edge := &database.CascadePattern{
		ParentIssueID:      parent.ID,
		ChildIssueID:       child.ID,
		Frequency:          5,
		CascadeProbability: 0.8,
		AvgDelaySeconds:    12,
		LastDetectedAt:     time.Now(),
	}
	if err := db.Create(edge).Error; err != nil {
		t.Fatalf("failed to seed cascade edge: %v", err)
	}

	var related cascade.Related
	testhelpers.NewHTTPTestContext(t, http.MethodGet, fmt.Sprintf("/api/issues/%d/cascades?min_probability=0.5", parent.ID), nil).
		ExecuteFunc(handler.HandleIssue).
		AssertStatus(http.StatusOK).
		DecodeJSON(&related)

	if len(related.Children) != 1 {
		t.Fatalf("expected 1 downstream edge, got %d", len(related.Children))
	}
	if len(related.Parents) != 0 {
		t.Errorf("expected no upstream edges, got %d", len(related.Parents))
	}
}

func TestHandleIssueViewed(t *testing.T) {
	handler, db := newTestIssueHandler(t)
	issue := testhelpers.NewIssueBuilder().Create(t, db)

	testhelpers.NewHTTPTestContext(t, http.MethodPost, fmt.Sprintf("/api/issues/%d/viewed", issue.ID), nil).
		ExecuteFunc(handler.HandleIssue).
		AssertStatus(http.StatusNoContent)

	var got database.Issue
	if err := db.First(&got, issue.ID).Error; err != nil {
		t.Fatalf("failed to reload issue: %v", err)
	}
	if got.Status != database.IssueStatusInvestigating {
		t.Errorf("Status = %q, want %q", got.Status, database.IssueStatusInvestigating)
	}
}

func TestHandleIssueUnknownSubResource(t *testing.T) {
	handler, db := newTestIssueHandler(t)
	issue := testhelpers.NewIssueBuilder().Create(t, db)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, fmt.Sprintf("/api/issues/%d/bogus", issue.ID), nil).
		ExecuteFunc(handler.HandleIssue).
		AssertStatus(http.StatusNotFound)
}

func TestHandleBatchResolvePartialFailure(t *testing.T) {
	handler, db := newTestIssueHandler(t)
	a := testhelpers.NewIssueBuilder().Create(t, db)
	b := testhelpers.NewIssueBuilder().Create(t, db)

	var result services.BatchResult
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/issues/batch/resolve", nil).
		WithJSONBody(BatchRequest{IDs: []uint{a.ID, 99999, b.ID}, ResolvedBy: "alice"}).
		ExecuteFunc(handler.HandleBatchResolve).
		AssertStatus(http.StatusOK).
		DecodeJSON(&result)

	if result.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", result.Succeeded)
	}
	if len(result.FailedIDs) != 1 || result.FailedIDs[0] != 99999 {
		t.Errorf("FailedIDs = %v, want [99999]", result.FailedIDs)
	}
}

func TestHandleBatchDelete(t *testing.T) {
	handler, db := newTestIssueHandler(t)
	a := testhelpers.NewIssueBuilder().Create(t, db)
	b := testhelpers.NewIssueBuilder().Create(t, db)

	var result services.BatchResult
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/issues/batch/delete", nil).
		WithJSONBody(BatchRequest{IDs: []uint{a.ID, b.ID}}).
		ExecuteFunc(handler.HandleBatchDelete).
		AssertStatus(http.StatusOK).
		DecodeJSON(&result)

	if result.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", result.Succeeded)
	}

	var count int64
	db.Model(&database.Issue{}).Count(&count)
	if count != 0 {
		t.Errorf("expected all issues removed, %d rows remain", count)
	}
}

func TestHandleBatchResolveRejectsGet(t *testing.T) {
	handler, _ := newTestIssueHandler(t)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/issues/batch/resolve", nil).
		ExecuteFunc(handler.HandleBatchResolve).
		AssertStatus(http.StatusMethodNotAllowed)
}
