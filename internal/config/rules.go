package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules carries operator-tunable ingestion rules loaded from a YAML file:
// severity overrides merged on top of the builtin classification table, and
// ignore patterns that short-circuit ingestion entirely.
type Rules struct {
	// SeverityOverrides maps error type names to critical/high/medium/low
	SeverityOverrides map[string]string `yaml:"severity_overrides"`

	// IgnoredExceptions lists error types to drop. An entry ending in "*"
	// matches as a prefix; anything else matches exactly.
	IgnoredExceptions []string `yaml:"ignored_exceptions"`
}

var validSeverities = map[string]bool{
	"critical": true,
	"high":     true,
	"medium":   true,
	"low":      true,
}

// LoadRules reads and validates the rules file. An empty path yields empty
// rules so deployments without a rules file work unchanged.
func LoadRules(path string) (*Rules, error) {
	rules := &Rules{}
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// Validate checks that every override names a known severity level
func (r *Rules) Validate() error {
	for errorType, severity := range r.SeverityOverrides {
		if !validSeverities[severity] {
			return fmt.Errorf("invalid configuration: severity override for %s must be one of critical/high/medium/low, got %q", errorType, severity)
		}
	}
	return nil
}

// IsIgnored reports whether an error type matches an ignore entry
func (r *Rules) IsIgnored(errorType string) bool {
	for _, pattern := range r.IgnoredExceptions {
		if strings.HasSuffix(pattern, "*") {
			if strings.HasPrefix(errorType, strings.TrimSuffix(pattern, "*")) {
				return true
			}
		} else if errorType == pattern {
			return true
		}
	}
	return false
}
