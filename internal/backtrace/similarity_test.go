package backtrace

import (
	"math"
	"testing"

	"github.com/errdeck/errdeck/internal/database"
	"github.com/errdeck/errdeck/internal/testhelpers"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		a, b     database.Issue
		expected float64
	}{
		{
			name: "identical signature type and message caps at 1.0",
			a: database.Issue{
				BacktraceSignature: "abc123", ErrorType: "NoMethodError", Message: "undefined method save",
			},
			b: database.Issue{
				BacktraceSignature: "abc123", ErrorType: "NoMethodError", Message: "undefined method save",
			},
			expected: 1.0,
		},
		{
			name: "same type only",
			a:    database.Issue{ErrorType: "NoMethodError", Message: "alpha"},
			b:    database.Issue{ErrorType: "NoMethodError", Message: "beta"},
			expected: 0.3,
		},
		{
			name: "shared namespace stem only",
			a:    database.Issue{ErrorType: "ActiveRecord::RecordNotFound", Message: "alpha"},
			b:    database.Issue{ErrorType: "ActiveRecord::StatementInvalid", Message: "beta"},
			expected: 0.15,
		},
		{
			name: "shared suffix-stripped stem",
			a:    database.Issue{ErrorType: "PaymentError", Message: "alpha"},
			b:    database.Issue{ErrorType: "PaymentException", Message: "beta"},
			expected: 0.15,
		},
		{
			name:     "nothing in common",
			a:        database.Issue{ErrorType: "TypeError", Message: "alpha"},
			b:        database.Issue{ErrorType: "KeyError", Message: "beta"},
			expected: 0,
		},
		{
			name: "empty signatures never match each other",
			a:    database.Issue{BacktraceSignature: "", ErrorType: "TypeError", Message: "alpha"},
			b:    database.Issue{BacktraceSignature: "", ErrorType: "KeyError", Message: "beta"},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(&tt.a, &tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Score() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestScoreMessageOverlap(t *testing.T) {
	a := database.Issue{ErrorType: "A", Message: "undefined method save for user"}
	b := database.Issue{ErrorType: "B", Message: "undefined method destroy for user"}

	// 4 of 6 distinct tokens shared: 0.3 * 4/6 = 0.2
	got := Score(&a, &b)
	if math.Abs(got-0.2) > 1e-9 {
		t.Errorf("Score() = %v, want 0.2", got)
	}
}

func TestFindSimilarExcludesSelfAndOtherPlatforms(t *testing.T) {
	db := testhelpers.SetupTestDB(t)

	query := testhelpers.NewIssueBuilder().
		WithErrorType("NoMethodError").
		WithSignature("sig-1").
		WithPlatform("web").
		Create(t, db)

	match := testhelpers.NewIssueBuilder().
		WithErrorType("NoMethodError").
		WithSignature("sig-1").
		WithPlatform("web").
		Create(t, db)

	// Same everything but wrong platform
	testhelpers.NewIssueBuilder().
		WithErrorType("NoMethodError").
		WithSignature("sig-1").
		WithPlatform("mobile").
		Create(t, db)

	scorer := NewScorer(db, 0)
	results, err := scorer.FindSimilar(&query, 0.5, 10)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Issue.ID != match.ID {
		t.Errorf("expected issue %d, got %d", match.ID, results[0].Issue.ID)
	}
	if results[0].Issue.ID == query.ID {
		t.Error("query issue must never appear in its own results")
	}
}

func TestFindSimilarThresholdAndOrdering(t *testing.T) {
	db := testhelpers.SetupTestDB(t)

	query := testhelpers.NewIssueBuilder().
		WithErrorType("NoMethodError").
		WithSignature("sig-1").
		WithMessage("undefined method save").
		Create(t, db)

	strong := testhelpers.NewIssueBuilder().
		WithErrorType("NoMethodError").
		WithSignature("sig-1").
		WithMessage("undefined method save").
		Create(t, db)

	weak := testhelpers.NewIssueBuilder().
		WithErrorType("NoMethodError").
		WithSignature("sig-other").
		WithMessage("completely different text").
		Create(t, db)

	scorer := NewScorer(db, 0)

	results, err := scorer.FindSimilar(&query, 0.5, 10)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(results) != 1 || results[0].Issue.ID != strong.ID {
		t.Fatalf("expected only the strong match above threshold, got %+v", results)
	}

	// Lowering the threshold lets the weak match in, after the strong one
	results, err = scorer.FindSimilar(&query, 0.1, 10)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Issue.ID != strong.ID || results[1].Issue.ID != weak.ID {
		t.Errorf("results not ordered by descending score: %v then %v", results[0].Score, results[1].Score)
	}
}

func TestTypeStem(t *testing.T) {
	tests := []struct {
		errorType string
		expected  string
	}{
		{"ActiveRecord::RecordNotFound", "ActiveRecord"},
		{"PaymentError", "Payment"},
		{"PaymentException", "Payment"},
		{"Error", ""},
		{"RuntimeError", "Runtime"},
		{"Weird", ""},
	}

	for _, tt := range tests {
		t.Run(tt.errorType, func(t *testing.T) {
			if got := typeStem(tt.errorType); got != tt.expected {
				t.Errorf("typeStem(%q) = %q, want %q", tt.errorType, got, tt.expected)
			}
		})
	}
}
