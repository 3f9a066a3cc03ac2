package fingerprint

// Severity is the coarse priority classification of an error type
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// builtinSeverities maps well-known error type names to their classification.
// Unmatched types default to low.
var builtinSeverities = map[string]Severity{
	// Critical: data loss, security, or total unavailability
	"SecurityError":           SeverityCritical,
	"NoMemoryError":           SeverityCritical,
	"SystemStackError":        SeverityCritical,
	"SegmentationFault":       SeverityCritical,
	"DatabaseConnectionError": SeverityCritical,
	"ConnectionRefusedError":  SeverityCritical,
	"DataCorruptionError":     SeverityCritical,
	"OutOfMemoryError":        SeverityCritical,

	// High: persistence and integrity failures
	"ActiveRecord::StatementInvalid":       SeverityHigh,
	"ActiveRecord::RecordNotUnique":        SeverityHigh,
	"ActiveRecord::Deadlocked":             SeverityHigh,
	"ActiveRecord::ConnectionTimeoutError": SeverityHigh,
	"SQLException":                         SeverityHigh,
	"DeadlockError":                        SeverityHigh,
	"TimeoutError":                         SeverityHigh,
	"Net::ReadTimeout":                     SeverityHigh,
	"Net::OpenTimeout":                     SeverityHigh,
	"IOError":                              SeverityHigh,

	// Medium: routine application faults
	"NoMethodError":               SeverityMedium,
	"NameError":                   SeverityMedium,
	"TypeError":                   SeverityMedium,
	"ArgumentError":               SeverityMedium,
	"NilClassError":               SeverityMedium,
	"KeyError":                    SeverityMedium,
	"IndexError":                  SeverityMedium,
	"JSON::ParserError":           SeverityMedium,
	"ActiveRecord::RecordInvalid": SeverityMedium,

	// Low: expected-ish conditions
	"ActiveRecord::RecordNotFound":    SeverityLow,
	"ActionController::RoutingError":  SeverityLow,
	"ActionController::UnknownFormat": SeverityLow,
	"NotFoundError":                   SeverityLow,
}

// ClassifySeverity looks up the severity for an error type. A caller-supplied
// override table is merged on top of the builtin table before lookup; unknown
// types default to low.
func ClassifySeverity(errorType string, overrides map[string]Severity) Severity {
	if overrides != nil {
		if sev, ok := overrides[errorType]; ok {
			return sev
		}
	}
	if sev, ok := builtinSeverities[errorType]; ok {
		return sev
	}
	return SeverityLow
}
