package model

import (
	"time"

	"github.com/goccy/go-json"
)

// MatchEvent is one detected occurrence of a catalog pattern in a file.
// Multi-line matches span LineStart..LineEnd; single-line matches have
// LineStart == LineEnd.
type MatchEvent struct {
	File      string    `json:"file"`
	Component string    `json:"component"`
	LineStart int       `json:"line_start"`
	LineEnd   int       `json:"line_end"`
	Text      string    `json:"text"`
	Severity  Severity  `json:"severity"`
	Category  string    `json:"category"`
	PatternID string    `json:"pattern_id"`
	Timestamp time.Time `json:"timestamp"`
	Keys      []string  `json:"keys,omitempty"` // correlation tokens, discovery order
}

// MarshalJSON leaves out the timestamp when none was extracted.
func (e MatchEvent) MarshalJSON() ([]byte, error) {
	type plain MatchEvent
	return json.Marshal(struct {
		plain
		Timestamp *time.Time `json:"timestamp,omitempty"`
	}{plain(e), optionalTime(e.Timestamp)})
}

// HasTimestamp reports whether a timestamp was extracted for the event.
func (e MatchEvent) HasTimestamp() bool {
	return !e.Timestamp.IsZero()
}

// Finding aggregates all events sharing a (category, severity) pair.
type Finding struct {
	Category   string       `json:"category"`
	Severity   Severity     `json:"severity"`
	Message    string       `json:"message"` // text of the first-seen event
	Count      int          `json:"count"`
	Components []string     `json:"components"`
	FirstSeen  time.Time    `json:"first_seen"`
	LastSeen   time.Time    `json:"last_seen"`
	Events     []MatchEvent `json:"events,omitempty"`
}

// MarshalJSON leaves out first_seen and last_seen for untimed findings.
func (f Finding) MarshalJSON() ([]byte, error) {
	type plain Finding
	return json.Marshal(struct {
		plain
		FirstSeen *time.Time `json:"first_seen,omitempty"`
		LastSeen  *time.Time `json:"last_seen,omitempty"`
	}{plain(f), optionalTime(f.FirstSeen), optionalTime(f.LastSeen)})
}

// CorrelationChain is a group of events from at least two files linked by
// shared keys or time proximity.
type CorrelationChain struct {
	Severity   Severity     `json:"severity"`
	Start      time.Time    `json:"start"`
	End        time.Time    `json:"end"`
	Files      []string     `json:"files"`
	Components []string     `json:"components"`
	Keys       []string     `json:"keys,omitempty"`
	Narrative  string       `json:"narrative"`
	Events     []MatchEvent `json:"events"`
}

// MarshalJSON leaves out start and end for chains linked by keys alone.
func (c CorrelationChain) MarshalJSON() ([]byte, error) {
	type plain CorrelationChain
	return json.Marshal(struct {
		plain
		Start *time.Time `json:"start,omitempty"`
		End   *time.Time `json:"end,omitempty"`
	}{plain(c), optionalTime(c.Start), optionalTime(c.End)})
}

// Size returns the number of member events.
func (c CorrelationChain) Size() int {
	return len(c.Events)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
