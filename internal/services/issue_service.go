package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/database"
	"github.com/errdeck/errdeck/internal/events"
)

// IssueService handles operator actions on issues: lookup, resolution,
// deletion, and their batch forms.
type IssueService struct {
	db  *gorm.DB
	bus *events.Bus
}

// NewIssueService creates a new issue service
func NewIssueService(db *gorm.DB, bus *events.Bus) *IssueService {
	return &IssueService{db: db, bus: bus}
}

// Resolution carries the metadata of an operator resolve action
type Resolution struct {
	ResolvedBy string `json:"resolved_by"`
	Comment    string `json:"comment"`
	Reference  string `json:"reference"`
}

// BatchResult reports per-item outcomes of a batch operation. One item's
// failure never aborts the rest.
type BatchResult struct {
	Succeeded int      `json:"succeeded"`
	FailedIDs []uint   `json:"failed_ids"`
	Messages  []string `json:"messages"`
}

// GetIssue fetches an issue by ID
func (s *IssueService) GetIssue(id uint) (*database.Issue, error) {
	var issue database.Issue
	if err := s.db.First(&issue, id).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

// GetIssueByUUID fetches an issue by UUID
func (s *IssueService) GetIssueByUUID(uuid string) (*database.Issue, error) {
	var issue database.Issue
	if err := s.db.Where("uuid = ?", uuid).First(&issue).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

// ListFilter narrows ListIssues results; zero values mean "no filter"
type ListFilter struct {
	ErrorType string
	Platform  string
	Status    database.IssueStatus
	Resolved  *bool
	Limit     int
	Offset    int
}

// ListIssues returns issues matching the filter, most recently seen first
func (s *IssueService) ListIssues(filter ListFilter) ([]database.Issue, error) {
	query := s.db.Order("last_seen_at DESC")
	if filter.ErrorType != "" {
		query = query.Where("error_type = ?", filter.ErrorType)
	}
	if filter.Platform != "" {
		query = query.Where("platform = ?", filter.Platform)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var issues []database.Issue
	err := query.Find(&issues).Error
	return issues, err
}

// ResolveIssue marks an issue resolved with the operator's metadata and
// emits the resolved signal
func (s *IssueService) ResolveIssue(id uint, res Resolution) (*database.Issue, error) {
	issue, err := s.GetIssue(id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"resolved":           true,
		"status":             database.IssueStatusResolved,
		"resolved_by":        res.ResolvedBy,
		"resolution_comment": res.Comment,
		"resolution_ref":     res.Reference,
		"resolved_at":        now,
	}
	if err := s.db.Model(issue).Updates(updates).Error; err != nil {
		return nil, err
	}

	issue.Resolved = true
	issue.Status = database.IssueStatusResolved
	issue.ResolvedBy = res.ResolvedBy
	issue.ResolutionComment = res.Comment
	issue.ResolutionRef = res.Reference
	issue.ResolvedAt = &now

	s.bus.Publish(events.EventIssueResolved, events.Payload{Issue: issue})
	return issue, nil
}

// BatchResolve resolves each listed issue, reporting per-item success
func (s *IssueService) BatchResolve(ids []uint, res Resolution) *BatchResult {
	result := &BatchResult{}
	for _, id := range ids {
		if _, err := s.ResolveIssue(id, res); err != nil {
			result.FailedIDs = append(result.FailedIDs, id)
			result.Messages = append(result.Messages, fmt.Sprintf("issue %d: %v", id, err))
			continue
		}
		result.Succeeded++
	}
	if result.Succeeded > 0 {
		s.bus.Publish(events.EventIssuesBatchResolved, events.Payload{IssueIDs: ids})
	}
	return result
}

// DeleteIssue removes an issue with its occurrences and cascade edges
func (s *IssueService) DeleteIssue(id uint) error {
	return database.DeleteIssue(s.db, id)
}

// BatchDelete deletes each listed issue, reporting per-item success
func (s *IssueService) BatchDelete(ids []uint) *BatchResult {
	result := &BatchResult{}
	for _, id := range ids {
		if err := database.DeleteIssue(s.db, id); err != nil {
			result.FailedIDs = append(result.FailedIDs, id)
			result.Messages = append(result.Messages, fmt.Sprintf("issue %d: %v", id, err))
			continue
		}
		result.Succeeded++
	}
	if result.Succeeded > 0 {
		s.bus.Publish(events.EventIssuesBatchDeleted, events.Payload{IssueIDs: ids})
	}
	return result
}

// MarkViewed emits the viewed signal for audit subscribers. Status moves
// from new to investigating on first view.
func (s *IssueService) MarkViewed(id uint) error {
	issue, err := s.GetIssue(id)
	if err != nil {
		return err
	}
	if issue.Status == database.IssueStatusNew {
		if err := s.db.Model(issue).Update("status", database.IssueStatusInvestigating).Error; err != nil {
			return err
		}
		issue.Status = database.IssueStatusInvestigating
	}
	s.bus.Publish(events.EventIssueViewed, events.Payload{Issue: issue})
	return nil
}
