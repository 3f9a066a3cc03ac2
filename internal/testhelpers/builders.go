// Package testhelpers provides additional data builders for testing
package testhelpers

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/database"
)

// ========================================
// Issue Builder
// ========================================

// IssueBuilder builds Issue instances for testing
type IssueBuilder struct {
	issue database.Issue
}

// NewIssueBuilder creates a new issue builder with defaults
func NewIssueBuilder() *IssueBuilder {
	now := time.Now()
	return &IssueBuilder{
		issue: database.Issue{
			UUID:            uuid.New().String(),
			Fingerprint:     fmt.Sprintf("%016x", time.Now().UnixNano()),
			ErrorType:       "RuntimeError",
			Message:         "test error for unit tests",
			Platform:        "web",
			Severity:        database.SeverityLow,
			Status:          database.IssueStatusNew,
			OccurrenceCount: 1,
			FirstSeenAt:     now,
			LastSeenAt:      now,
		},
	}
}

// WithFingerprint sets the fingerprint
func (b *IssueBuilder) WithFingerprint(fp string) *IssueBuilder {
	b.issue.Fingerprint = fp
	return b
}

// WithErrorType sets the error type
func (b *IssueBuilder) WithErrorType(errorType string) *IssueBuilder {
	b.issue.ErrorType = errorType
	return b
}

// WithMessage sets the message
func (b *IssueBuilder) WithMessage(message string) *IssueBuilder {
	b.issue.Message = message
	return b
}

// WithPlatform sets the platform
func (b *IssueBuilder) WithPlatform(platform string) *IssueBuilder {
	b.issue.Platform = platform
	return b
}

// WithSeverity sets the severity
func (b *IssueBuilder) WithSeverity(severity database.Severity) *IssueBuilder {
	b.issue.Severity = severity
	return b
}

// WithSignature sets the backtrace signature
func (b *IssueBuilder) WithSignature(sig string) *IssueBuilder {
	b.issue.BacktraceSignature = sig
	return b
}

// WithOccurrenceCount sets the occurrence count
func (b *IssueBuilder) WithOccurrenceCount(n int) *IssueBuilder {
	b.issue.OccurrenceCount = n
	return b
}

// WithAppVersion sets the app version
func (b *IssueBuilder) WithAppVersion(version string) *IssueBuilder {
	b.issue.AppVersion = version
	return b
}

// WithRevisionID sets the revision ID
func (b *IssueBuilder) WithRevisionID(revision string) *IssueBuilder {
	b.issue.RevisionID = revision
	return b
}

// WithLastSeenAt sets the last seen timestamp
func (b *IssueBuilder) WithLastSeenAt(t time.Time) *IssueBuilder {
	b.issue.LastSeenAt = t
	return b
}

// WithFirstSeenAt sets the first seen timestamp
func (b *IssueBuilder) WithFirstSeenAt(t time.Time) *IssueBuilder {
	b.issue.FirstSeenAt = t
	return b
}

// Resolved marks the issue as resolved
func (b *IssueBuilder) Resolved() *IssueBuilder {
	now := time.Now()
	b.issue.Resolved = true
	b.issue.Status = database.IssueStatusResolved
	b.issue.ResolvedAt = &now
	return b
}

// ResolvedAt marks the issue resolved at a specific time
func (b *IssueBuilder) ResolvedAt(t time.Time) *IssueBuilder {
	b.issue.Resolved = true
	b.issue.Status = database.IssueStatusResolved
	b.issue.ResolvedAt = &t
	return b
}

// Build returns the constructed issue
func (b *IssueBuilder) Build() database.Issue {
	return b.issue
}

// Create persists the issue and returns it
func (b *IssueBuilder) Create(t *testing.T, db *gorm.DB) database.Issue {
	t.Helper()
	issue := b.Build()
	if err := db.Create(&issue).Error; err != nil {
		t.Fatalf("failed to create test issue: %v", err)
	}
	return issue
}

// ========================================
// Occurrence Builder
// ========================================

// OccurrenceBuilder builds Occurrence instances for testing
type OccurrenceBuilder struct {
	occurrence database.Occurrence
}

// NewOccurrenceBuilder creates a new occurrence builder with defaults
func NewOccurrenceBuilder(issueID uint) *OccurrenceBuilder {
	return &OccurrenceBuilder{
		occurrence: database.Occurrence{
			IssueID:    issueID,
			ErrorType:  "RuntimeError",
			Platform:   "web",
			OccurredAt: time.Now(),
		},
	}
}

// WithErrorType sets the error type
func (b *OccurrenceBuilder) WithErrorType(errorType string) *OccurrenceBuilder {
	b.occurrence.ErrorType = errorType
	return b
}

// WithPlatform sets the platform
func (b *OccurrenceBuilder) WithPlatform(platform string) *OccurrenceBuilder {
	b.occurrence.Platform = platform
	return b
}

// WithUserID sets the user ID
func (b *OccurrenceBuilder) WithUserID(userID string) *OccurrenceBuilder {
	b.occurrence.UserID = userID
	return b
}

// OccurredAt sets the occurrence timestamp
func (b *OccurrenceBuilder) OccurredAt(t time.Time) *OccurrenceBuilder {
	b.occurrence.OccurredAt = t
	return b
}

// Build returns the constructed occurrence
func (b *OccurrenceBuilder) Build() database.Occurrence {
	return b.occurrence
}

// Create persists the occurrence and returns it
func (b *OccurrenceBuilder) Create(t *testing.T, db *gorm.DB) database.Occurrence {
	t.Helper()
	occ := b.Build()
	if err := db.Create(&occ).Error; err != nil {
		t.Fatalf("failed to create test occurrence: %v", err)
	}
	return occ
}
