package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}
	return path
}

func TestLoadRulesEmptyPath(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules(\"\") failed: %v", err)
	}
	if len(rules.SeverityOverrides) != 0 || len(rules.IgnoredExceptions) != 0 {
		t.Errorf("empty path should yield empty rules, got %+v", rules)
	}
	if rules.IsIgnored("Anything") {
		t.Error("empty rules should ignore nothing")
	}
}

func TestLoadRulesParsesYAML(t *testing.T) {
	path := writeRulesFile(t, `
severity_overrides:
  PaymentError: critical
  CacheMissError: low
ignored_exceptions:
  - ActionController::RoutingError
  - Temp*
`)

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}

	if rules.SeverityOverrides["PaymentError"] != "critical" {
		t.Errorf("override not loaded: %+v", rules.SeverityOverrides)
	}
	if len(rules.IgnoredExceptions) != 2 {
		t.Errorf("expected 2 ignore entries, got %d", len(rules.IgnoredExceptions))
	}
}

func TestLoadRulesRejectsUnknownSeverity(t *testing.T) {
	path := writeRulesFile(t, `
severity_overrides:
  PaymentError: catastrophic
`)

	if _, err := LoadRules(path); err == nil {
		t.Error("expected an error for an unknown severity name")
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	if _, err := LoadRules("/nonexistent/rules.yml"); err == nil {
		t.Error("expected an error for a missing rules file")
	}
}

func TestLoadRulesMalformedYAML(t *testing.T) {
	path := writeRulesFile(t, "severity_overrides: [not: a: map")

	if _, err := LoadRules(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestIsIgnored(t *testing.T) {
	rules := &Rules{
		IgnoredExceptions: []string{
			"ActionController::RoutingError",
			"Temp*",
		},
	}

	tests := []struct {
		errorType string
		ignored   bool
	}{
		{"ActionController::RoutingError", true},
		{"ActionController::UnknownFormat", false},
		{"TempFileError", true},
		{"Temp", true},
		{"Temperature", true},
		{"NotTemp", false},
	}

	for _, tt := range tests {
		t.Run(tt.errorType, func(t *testing.T) {
			if got := rules.IsIgnored(tt.errorType); got != tt.ignored {
				t.Errorf("IsIgnored(%q) = %v, want %v", tt.errorType, got, tt.ignored)
			}
		})
	}
}
