package model

import (
	"fmt"
	"strings"
)

// Severity is the normalized importance of a matched log event.
// The integer order is the severity order: Critical is highest.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityFatal
	SeverityCritical
)

// Severities lists every level from highest to lowest.
var Severities = []Severity{
	SeverityCritical,
	SeverityFatal,
	SeverityError,
	SeverityWarning,
	SeverityInfo,
	SeverityDebug,
}

var severityNames = [...]string{
	SeverityDebug:    "DEBUG",
	SeverityInfo:     "INFO",
	SeverityWarning:  "WARNING",
	SeverityError:    "ERROR",
	SeverityFatal:    "FATAL",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if s < SeverityDebug || s > SeverityCritical {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// Valid reports whether s is one of the defined levels.
func (s Severity) Valid() bool {
	return s >= SeverityDebug && s <= SeverityCritical
}

// ParseSeverity converts a level name to a Severity. Matching is
// case-insensitive and accepts the common aliases "warn" and "crit".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return SeverityDebug, nil
	case "INFO":
		return SeverityInfo, nil
	case "WARNING", "WARN":
		return SeverityWarning, nil
	case "ERROR":
		return SeverityError, nil
	case "FATAL":
		return SeverityFatal, nil
	case "CRITICAL", "CRIT":
		return SeverityCritical, nil
	}
	return SeverityDebug, fmt.Errorf("unknown severity %q", s)
}

// MaxSeverity returns the higher of a and b.
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
