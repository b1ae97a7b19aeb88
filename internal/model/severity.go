package model

import (
	"fmt"
	"strings"
)

// Severity represents the impact of a Finding.
//
// Values are ordered so that they can be compared directly; the JSON form
// is the lowercase name ("low", "medium", "high").
type Severity int

const (
	// SeverityLow indicates a hygiene issue with limited direct impact.
	// Examples: missing advisory headers, weak header values.
	SeverityLow Severity = iota

	// SeverityMedium indicates an issue that weakens the page's protection.
	// Examples: cookies without the Secure flag, mixed content, soon-expiring certificates.
	SeverityMedium

	// SeverityHigh indicates an issue that exposes visitors directly.
	// Examples: invalid certificates, credential forms over plain HTTP, exposed admin ports.
	SeverityHigh
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a severity name (case-insensitive) to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	default:
		return SeverityLow, fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Finding is a single weakness detected by the security posture analyzer.
// Every Finding adds to the threat score, so analyzers only emit findings
// that are actionable for the site owner or relevant to a visitor.
type Finding struct {
	// Severity is the impact rating.
	Severity Severity `json:"severity"`

	// Title is a short, stable name for the weakness.
	Title string `json:"title"`

	// Description explains what was observed.
	Description string `json:"description"`
}
