package services

import (
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/config"
	"github.com/errdeck/errdeck/internal/database"
	"github.com/errdeck/errdeck/internal/events"
	"github.com/errdeck/errdeck/internal/fingerprint"
)

// ReopenWindow is how long an unresolved issue keeps absorbing matching
// occurrences. Past it, an identical fingerprint opens a fresh issue.
const ReopenWindow = 24 * time.Hour

// Context carries the optional request/job context reported alongside an
// exception. All fields are populated by the caller; the core never inspects
// framework objects.
type Context struct {
	UserID        string         `json:"user_id"`
	RequestID     string         `json:"request_id"`
	SessionID     string         `json:"session_id"`
	RequestURL    string         `json:"request_url"`
	RequestParams database.JSONB `json:"request_params"`
	UserAgent     string         `json:"user_agent"`
	IPAddress     string         `json:"ip_address"`
	Controller    string         `json:"controller"`
	Action        string         `json:"action"`
	Platform      string         `json:"platform"`
	AppVersion    string         `json:"app_version"`
	RevisionID    string         `json:"revision_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// IngestService is the sole ingestion entry point: it fingerprints incoming
// exceptions, deduplicates them into issues, and records occurrence events.
type IngestService struct {
	db                *gorm.DB
	bus               *events.Bus
	rules             *config.Rules
	overrides         map[string]fingerprint.Severity
	samplingRate      float64
	maxBacktraceLines int
	reopenWindow      time.Duration

	// injectable for deterministic sampling and insert-race tests
	randFloat     func() float64
	findDuplicate func(db *gorm.DB, fingerprint string, window time.Duration) (*database.Issue, error)

	queue chan reportRequest
	stop  chan struct{}
}

type reportRequest struct {
	errorType string
	message   string
	backtrace []string
	ctx       Context
}

// NewIngestService creates an ingest service. rules and settings may be
// nil; a nil settings falls back to the default reopen window.
func NewIngestService(db *gorm.DB, bus *events.Bus, cfg *config.Config, rules *config.Rules, settings *database.TrackerSettings) *IngestService {
	if rules == nil {
		rules = &config.Rules{}
	}
	overrides := make(map[string]fingerprint.Severity, len(rules.SeverityOverrides))
	for errorType, severity := range rules.SeverityOverrides {
		overrides[errorType] = fingerprint.Severity(severity)
	}

	reopenWindow := ReopenWindow
	if settings != nil && settings.ReopenWindowHours > 0 {
		reopenWindow = time.Duration(settings.ReopenWindowHours) * time.Hour
	}

	return &IngestService{
		db:                db,
		bus:               bus,
		rules:             rules,
		overrides:         overrides,
		samplingRate:      cfg.SamplingRate,
		maxBacktraceLines: cfg.MaxBacktraceLines,
		reopenWindow:      reopenWindow,
		randFloat:         rand.Float64,
		findDuplicate:     database.FindDuplicateIssue,
	}
}

// ReportError records one exception. Returns the issue it was attributed to,
// or nil when the error was ignored, sampled out, or ingestion failed.
// Failures never propagate: the instrumented application must never crash
// because error tracking did.
func (s *IngestService) ReportError(errorType, message string, backtrace []string, ctx Context) *database.Issue {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Ingestion panic recovered for %s: %v", errorType, r)
		}
	}()

	issue, err := s.recordOccurrence(errorType, message, backtrace, ctx)
	if err != nil {
		log.Printf("Ingestion failed for %s: %v", errorType, err)
		return nil
	}
	return issue
}

func (s *IngestService) recordOccurrence(errorType, message string, backtrace []string, ctx Context) (*database.Issue, error) {
	if s.rules.IsIgnored(errorType) {
		return nil, nil
	}

	if len(backtrace) > s.maxBacktraceLines {
		backtrace = backtrace[:s.maxBacktraceLines]
	}

	hash, severity := fingerprint.FingerprintWithOverrides(
		errorType, message, backtrace, ctx.Controller, ctx.Action, s.overrides)

	// Sampling applies to non-critical errors only; critical errors are
	// always ingested.
	if severity != fingerprint.SeverityCritical && s.samplingRate < 1.0 {
		if s.randFloat() >= s.samplingRate {
			return nil, nil
		}
	}

	occurredAt := ctx.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	issue, created, err := s.findOrCreateIssue(hash, severity, errorType, message, backtrace, ctx, occurredAt)
	if err != nil {
		return nil, err
	}

	occurrence := &database.Occurrence{
		IssueID:    issue.ID,
		ErrorType:  errorType,
		Platform:   ctx.Platform,
		OccurredAt: occurredAt,
		UserID:     ctx.UserID,
		RequestID:  ctx.RequestID,
		SessionID:  ctx.SessionID,
	}
	if err := s.db.Create(occurrence).Error; err != nil {
		return nil, err
	}

	// Exactly one new-issue signal, on the transition to count 1 only
	if created {
		s.bus.Publish(events.EventNewIssue, events.Payload{Issue: issue})
	}

	return issue, nil
}

// findOrCreateIssue implements the dedup upsert. Concurrent first
// occurrences race on the insert; the loser's unique violation is resolved
// by re-fetching and incrementing instead.
func (s *IngestService) findOrCreateIssue(hash string, severity fingerprint.Severity, errorType, message string, backtrace []string, ctx Context, occurredAt time.Time) (*database.Issue, bool, error) {
	existing, err := s.findDuplicate(s.db, hash, s.reopenWindow)
	if err == nil {
		if err := s.incrementExisting(existing, ctx, occurredAt); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	// A stale open issue would collide with the open-fingerprint unique
	// index; close it so the fresh issue can take over.
	if err := database.CloseStaleIssues(s.db, hash, s.reopenWindow); err != nil {
		return nil, false, err
	}

	issue := &database.Issue{
		UUID:               uuid.New().String(),
		Fingerprint:        hash,
		ErrorType:          errorType,
		Message:            message,
		Backtrace:          strings.Join(backtrace, "\n"),
		BacktraceSignature: fingerprint.Signature(backtrace),
		Platform:           ctx.Platform,
		Severity:           database.Severity(severity),
		Status:             database.IssueStatusNew,
		OccurrenceCount:    1,
		FirstSeenAt:        occurredAt,
		LastSeenAt:         occurredAt,
		Controller:         ctx.Controller,
		Action:             ctx.Action,
		UserID:             ctx.UserID,
		RequestURL:         ctx.RequestURL,
		RequestParams:      ctx.RequestParams,
		UserAgent:          ctx.UserAgent,
		IPAddress:          ctx.IPAddress,
		AppVersion:         ctx.AppVersion,
		RevisionID:         ctx.RevisionID,
	}

	if err := s.db.Create(issue).Error; err != nil {
		// Unique violation from a concurrent first occurrence: re-fetch
		// the winner's row and increment it instead.
		existing, retryErr := database.FindDuplicateIssue(s.db, hash, s.reopenWindow)
		if retryErr != nil {
			return nil, false, err
		}
		if incErr := s.incrementExisting(existing, ctx, occurredAt); incErr != nil {
			return nil, false, incErr
		}
		return existing, false, nil
	}

	return issue, true, nil
}

// incrementExisting bumps the counter and refreshes context fields, but only
// with non-empty values so blanks never erase prior context
func (s *IngestService) incrementExisting(issue *database.Issue, ctx Context, occurredAt time.Time) error {
	if err := database.IncrementIssue(s.db, issue.ID, occurredAt); err != nil {
		return err
	}
	issue.OccurrenceCount++
	issue.LastSeenAt = occurredAt

	updates := map[string]interface{}{}
	refresh := func(column, value string, field *string) {
		if value != "" {
			updates[column] = value
			*field = value
		}
	}
	refresh("user_id", ctx.UserID, &issue.UserID)
	refresh("request_url", ctx.RequestURL, &issue.RequestURL)
	refresh("user_agent", ctx.UserAgent, &issue.UserAgent)
	refresh("ip_address", ctx.IPAddress, &issue.IPAddress)
	refresh("app_version", ctx.AppVersion, &issue.AppVersion)
	refresh("revision_id", ctx.RevisionID, &issue.RevisionID)
	if len(ctx.RequestParams) > 0 {
		updates["request_params"] = ctx.RequestParams
		issue.RequestParams = ctx.RequestParams
	}

	if len(updates) == 0 {
		return nil
	}
	return s.db.Model(&database.Issue{}).Where("id = ?", issue.ID).Updates(updates).Error
}

// StartAsync switches the service into fire-and-forget mode: Report enqueues
// onto a bounded in-process queue drained by a single worker goroutine with
// semantics identical to inline ingestion.
func (s *IngestService) StartAsync(queueSize int) {
	s.queue = make(chan reportRequest, queueSize)
	s.stop = make(chan struct{})
	go s.worker()
}

// StopAsync stops the worker and ingests whatever is still queued, so a
// shutdown does not silently discard accepted reports
func (s *IngestService) StopAsync() {
	if s.stop == nil {
		return
	}
	close(s.stop)

	for {
		select {
		case req := <-s.queue:
			s.ReportError(req.errorType, req.message, req.backtrace, req.ctx)
		default:
			return
		}
	}
}

// Report records an exception via the configured execution mode: enqueued
// when async mode is active, inline otherwise. The async path returns nil
// immediately.
func (s *IngestService) Report(errorType, message string, backtrace []string, ctx Context) *database.Issue {
	if s.queue == nil {
		return s.ReportError(errorType, message, backtrace, ctx)
	}

	select {
	case s.queue <- reportRequest{errorType: errorType, message: message, backtrace: backtrace, ctx: ctx}:
	default:
		// Queue full: drop rather than block the reporting application
		log.Printf("Warning: ingestion queue full, dropping report for %s", errorType)
	}
	return nil
}

func (s *IngestService) worker() {
	for {
		select {
		case req := <-s.queue:
			s.ReportError(req.errorType, req.message, req.backtrace, req.ctx)
		case <-s.stop:
			log.Println("Ingestion worker stopped")
			return
		}
	}
}
