package services

import (
	"testing"
	"time"

	"github.com/errdeck/errdeck/internal/pattern"
	"github.com/errdeck/errdeck/internal/testhelpers"
)

func TestBurstsForFiltersSeries(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewPatternService(db)

	issue := testhelpers.NewIssueBuilder().WithErrorType("TimeoutError").WithPlatform("web").Create(t, db)

	// A burst of 6 events one second apart on the web series
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 6; i++ {
		testhelpers.NewOccurrenceBuilder(issue.ID).
			WithErrorType("TimeoutError").
			WithPlatform("web").
			OccurredAt(base.Add(time.Duration(i) * time.Second)).
			Create(t, db)
	}
	// Same timing on mobile must not leak into the web series
	for i := 0; i < 6; i++ {
		testhelpers.NewOccurrenceBuilder(issue.ID).
			WithErrorType("TimeoutError").
			WithPlatform("mobile").
			OccurredAt(base.Add(time.Duration(i) * time.Second)).
			Create(t, db)
	}

	bursts, err := svc.BurstsFor("TimeoutError", "web", 7, 0, 0)
	if err != nil {
		t.Fatalf("BurstsFor() error = %v", err)
	}
	if len(bursts) != 1 {
		t.Fatalf("expected 1 burst, got %d", len(bursts))
	}
	if bursts[0].ErrorCount != 6 {
		t.Errorf("ErrorCount = %d, want 6", bursts[0].ErrorCount)
	}
}

func TestBurstsForIssueIgnoresOtherIssues(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewPatternService(db)

	target := testhelpers.NewIssueBuilder().WithErrorType("TimeoutError").Create(t, db)
	other := testhelpers.NewIssueBuilder().WithErrorType("TimeoutError").Create(t, db)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		testhelpers.NewOccurrenceBuilder(target.ID).OccurredAt(base.Add(time.Duration(i) * time.Second)).Create(t, db)
	}
	testhelpers.NewOccurrenceBuilder(other.ID).OccurredAt(base).Create(t, db)

	bursts, err := svc.BurstsForIssue(target.ID, 7, 0, 0)
	if err != nil {
		t.Fatalf("BurstsForIssue() error = %v", err)
	}
	if len(bursts) != 1 {
		t.Fatalf("expected 1 burst, got %d", len(bursts))
	}
	if bursts[0].ErrorCount != 5 {
		t.Errorf("ErrorCount = %d, want 5", bursts[0].ErrorCount)
	}
}

func TestCyclicalForEmptySeries(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewPatternService(db)

	result, err := svc.CyclicalFor("NoSuchError", "web", 7)
	if err != nil {
		t.Fatalf("CyclicalFor() error = %v", err)
	}
	if result.Kind != pattern.KindUniform {
		t.Errorf("Kind = %q, want uniform for an empty series", result.Kind)
	}
	if result.SampleSize != 0 {
		t.Errorf("SampleSize = %d, want 0", result.SampleSize)
	}
}
