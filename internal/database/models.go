package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Severity represents the coarse priority classification of an error type
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IssueStatus represents the workflow status of an issue
type IssueStatus string

const (
	IssueStatusNew           IssueStatus = "new"
	IssueStatusInvestigating IssueStatus = "investigating"
	IssueStatusResolved      IssueStatus = "resolved"
	IssueStatusSnoozed       IssueStatus = "snoozed"
)

// Issue is a deduplicated, persistent representation of one error type+context.
// Occurrences within the reopen window increment the same row; after the
// window, or once resolved, a new occurrence with an identical fingerprint
// creates a fresh Issue. At most one open issue exists per fingerprint,
// enforced by a partial unique index; a stale open issue is auto-resolved
// when a fresh one takes over its fingerprint.
type Issue struct {
	ID                 uint        `gorm:"primaryKey" json:"id"`
	UUID               string      `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Fingerprint        string      `gorm:"size:64;not null;index:idx_issues_dedup,priority:1;uniqueIndex:idx_issues_open_fingerprint,where:resolved = false" json:"fingerprint"`
	ErrorType          string      `gorm:"size:255;not null;index" json:"error_type"`
	Message            string      `gorm:"type:text" json:"message"`
	Backtrace          string      `gorm:"type:text" json:"backtrace"`
	BacktraceSignature string      `gorm:"size:64;index" json:"backtrace_signature"`
	Platform           string      `gorm:"size:64;index" json:"platform"`
	Severity           Severity    `gorm:"type:varchar(20);default:'low'" json:"severity"`
	Status             IssueStatus `gorm:"type:varchar(20);not null;default:'new'" json:"status"`
	PriorityLevel      int         `gorm:"default:0" json:"priority_level"`

	OccurrenceCount int       `gorm:"not null;default:1" json:"occurrence_count"`
	FirstSeenAt     time.Time `gorm:"not null" json:"first_seen_at"`
	LastSeenAt      time.Time `gorm:"not null;index:idx_issues_dedup,priority:3" json:"last_seen_at"`

	// Refreshable request context from the most recent occurrence
	Controller    string `gorm:"size:255" json:"controller"`
	Action        string `gorm:"size:255" json:"action"`
	UserID        string `gorm:"size:255" json:"user_id"`
	RequestURL    string `gorm:"type:text" json:"request_url"`
	RequestParams JSONB  `gorm:"type:jsonb" json:"request_params"`
	UserAgent     string `gorm:"type:text" json:"user_agent"`
	IPAddress     string `gorm:"size:64" json:"ip_address"`
	AppVersion    string `gorm:"size:64;index" json:"app_version"`
	RevisionID    string `gorm:"size:64;index" json:"revision_id"`

	Resolved          bool       `gorm:"not null;default:false;index:idx_issues_dedup,priority:2" json:"resolved"`
	ResolvedBy        string     `gorm:"size:255" json:"resolved_by"`
	ResolutionComment string     `gorm:"type:text" json:"resolution_comment"`
	ResolutionRef     string     `gorm:"size:255" json:"resolution_ref"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`

	SimilarityScore float64 `gorm:"type:decimal(4,3);default:0" json:"similarity_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Issue exclusively owns its occurrences (cascade-delete on issue delete)
	Occurrences []Occurrence `gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE" json:"occurrences,omitempty"`
}

// BeforeCreate sets seen timestamps and enforces the minimum occurrence count
func (i *Issue) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if i.FirstSeenAt.IsZero() {
		i.FirstSeenAt = now
	}
	if i.LastSeenAt.IsZero() {
		i.LastSeenAt = i.FirstSeenAt
	}
	if i.OccurrenceCount < 1 {
		i.OccurrenceCount = 1
	}
	return nil
}

// IsOpen returns true if the issue has not been resolved
func (i *Issue) IsOpen() bool {
	return !i.Resolved
}

// Occurrence is one concrete instance of an issue happening.
// Immutable once created; used for temporal co-occurrence and pattern analysis.
type Occurrence struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	IssueID    uint      `gorm:"not null;index" json:"issue_id"`
	ErrorType  string    `gorm:"size:255;not null;index:idx_occurrences_series,priority:1" json:"error_type"`
	Platform   string    `gorm:"size:64;index:idx_occurrences_series,priority:2" json:"platform"`
	OccurredAt time.Time `gorm:"not null;index:idx_occurrences_series,priority:3" json:"occurred_at"`
	UserID     string    `gorm:"size:255;index" json:"user_id"`
	RequestID  string    `gorm:"size:255" json:"request_id"`
	SessionID  string    `gorm:"size:255" json:"session_id"`
	CreatedAt  time.Time `json:"created_at"`

	// Belongs to Issue
	Issue Issue `gorm:"foreignKey:IssueID" json:"-"`
}

// CascadePattern is a directed edge recording that occurrences of the parent
// issue tend to precede occurrences of the child within the detection window.
type CascadePattern struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ParentIssueID      uint      `gorm:"not null;uniqueIndex:idx_cascade_pair,priority:1" json:"parent_issue_id"`
	ChildIssueID       uint      `gorm:"not null;uniqueIndex:idx_cascade_pair,priority:2" json:"child_issue_id"`
	Frequency          int       `gorm:"not null;default:1" json:"frequency"`
	AvgDelaySeconds    float64   `gorm:"type:decimal(10,2)" json:"avg_delay_seconds"`
	CascadeProbability float64   `gorm:"type:decimal(4,3)" json:"cascade_probability"`
	LastDetectedAt     time.Time `gorm:"not null" json:"last_detected_at"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	ParentIssue Issue `gorm:"foreignKey:ParentIssueID" json:"-"`
	ChildIssue  Issue `gorm:"foreignKey:ChildIssueID" json:"-"`
}

// IsStrong reports whether this edge is a genuine causal signal rather than
// coincidental adjacency
func (c *CascadePattern) IsStrong() bool {
	return c.CascadeProbability >= 0.7 && c.Frequency >= 3
}

// BaselineType represents the aggregation period of a baseline
type BaselineType string

const (
	BaselineHourly BaselineType = "hourly"
	BaselineDaily  BaselineType = "daily"
	BaselineWeekly BaselineType = "weekly"
)

// ErrorBaseline is a statistical snapshot of how often an (error_type,
// platform) pair normally occurs per period. Written only by the scheduled
// baseline job; read-only to the rest of the system.
type ErrorBaseline struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	ErrorType    string       `gorm:"size:255;not null;uniqueIndex:idx_baseline_key,priority:1" json:"error_type"`
	Platform     string       `gorm:"size:64;not null;uniqueIndex:idx_baseline_key,priority:2" json:"platform"`
	BaselineType BaselineType `gorm:"type:varchar(20);not null;uniqueIndex:idx_baseline_key,priority:3" json:"baseline_type"`
	PeriodStart  time.Time    `gorm:"not null" json:"period_start"`
	PeriodEnd    time.Time    `gorm:"not null" json:"period_end"`
	Count        int          `json:"count"`
	Mean         float64      `gorm:"type:decimal(10,4)" json:"mean"`
	StdDev       float64      `gorm:"type:decimal(10,4)" json:"std_dev"`
	Percentile95 float64      `gorm:"type:decimal(10,4)" json:"percentile_95"`
	Percentile99 float64      `gorm:"type:decimal(10,4)" json:"percentile_99"`
	SampleSize   int          `json:"sample_size"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TableName overrides for explicit table naming
func (Issue) TableName() string {
	return "issues"
}

func (Occurrence) TableName() string {
	return "occurrences"
}

func (CascadePattern) TableName() string {
	return "cascade_patterns"
}

func (ErrorBaseline) TableName() string {
	return "error_baselines"
}
