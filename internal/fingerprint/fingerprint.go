// Package fingerprint turns a raw exception plus request context into a
// stable identity hash and a severity classification. The hash collapses
// incidental differences (record IDs, memory addresses, quoted values) so
// the same bug reported from different requests lands on the same issue.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	digitRunPattern    = regexp.MustCompile(`\d+`)
	doubleQuotePattern = regexp.MustCompile(`"[^"]*"`)
	singleQuotePattern = regexp.MustCompile(`'[^']*'`)
	hexAddressPattern  = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	objectInspection   = regexp.MustCompile(`#<[^>]*>`)
)

// Path segments that mark a backtrace line as vendored/library code rather
// than application code.
var vendorSegments = []string{
	"/vendor/", "/gems/", "/node_modules/", "/go/pkg/mod/", "/site-packages/",
	"/ruby/", "/python", "/.rvm/", "/.rbenv/",
}

// Path segments that positively mark a line as application code.
var appSegments = []string{"/app/", "/lib/", "/src/"}

// hexSentinel stands in for hex addresses until the digit pass is done,
// so the digit pass cannot mangle the final 0xADDR placeholder.
const hexSentinel = "\x00ADDR\x00"

// NormalizeMessage collapses volatile fragments of an error message so that
// two instances of the same bug produce identical text. Digit runs become
// "N", quoted substrings are emptied, hex addresses and inspected objects
// become placeholders.
func NormalizeMessage(message string) string {
	normalized := doubleQuotePattern.ReplaceAllString(message, `""`)
	normalized = singleQuotePattern.ReplaceAllString(normalized, `''`)
	normalized = objectInspection.ReplaceAllString(normalized, "#<OBJECT>")
	normalized = hexAddressPattern.ReplaceAllString(normalized, hexSentinel)
	normalized = digitRunPattern.ReplaceAllString(normalized, "N")
	normalized = strings.ReplaceAll(normalized, hexSentinel, "0xADDR")
	return strings.TrimSpace(normalized)
}

// FirstAppFrame returns the file path of the first backtrace line that looks
// like application code. The line number is discarded: it changes across
// trivial edits without changing the bug. Returns "" when no line qualifies.
func FirstAppFrame(backtrace []string) string {
	for _, line := range backtrace {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isAppLine(trimmed) {
			return stripLineNumber(trimmed)
		}
	}
	return ""
}

func isAppLine(line string) bool {
	for _, seg := range appSegments {
		if strings.Contains(line, seg) {
			return true
		}
	}
	for _, seg := range vendorSegments {
		if strings.Contains(line, seg) {
			return false
		}
	}
	// No vendor marker either: treat as application code
	return true
}

// stripLineNumber keeps only the file path portion of a frame like
// "app/models/user.rb:42:in `save'" or "app/models/user.rb:42".
func stripLineNumber(line string) string {
	if idx := strings.Index(line, ":"); idx > 0 {
		return line[:idx]
	}
	return line
}

// Fingerprint computes the stable identity hash and severity for an error.
// The hash is SHA-256 over "type|message|frame|controller|action" truncated
// to 16 hex characters; 64 bits of collision resistance is accepted for this
// domain and ties are treated as identical issues.
func Fingerprint(errorType, message string, backtrace []string, controller, action string) (string, Severity) {
	return FingerprintWithOverrides(errorType, message, backtrace, controller, action, nil)
}

// FingerprintWithOverrides is Fingerprint with a caller-supplied severity
// override table merged on top of the builtin table before lookup.
func FingerprintWithOverrides(errorType, message string, backtrace []string, controller, action string, overrides map[string]Severity) (string, Severity) {
	parts := []string{
		errorType,
		NormalizeMessage(message),
		FirstAppFrame(backtrace),
		controller,
		action,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	hash := hex.EncodeToString(sum[:])[:16]
	return hash, ClassifySeverity(errorType, overrides)
}

// Signature hashes a whole backtrace (paths only, line numbers stripped)
// into a 16-hex-char signature used for similarity candidate grouping.
func Signature(backtrace []string) string {
	if len(backtrace) == 0 {
		return ""
	}
	var b strings.Builder
	for _, line := range backtrace {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		b.WriteString(stripLineNumber(trimmed))
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}
