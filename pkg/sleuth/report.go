package sleuth

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/hejijunhao/sleuth/internal/model"
)

// Event is one detected occurrence of a catalog pattern.
// This is the stable public type; internal representations may evolve
// independently without breaking consumers.
type Event struct {
	File      string
	Component string
	LineStart int
	LineEnd   int
	Text      string
	Severity  string // CRITICAL, FATAL, ERROR, WARNING, INFO, DEBUG
	Category  string
	PatternID string
	Timestamp time.Time // zero when the line carried none
	Keys      []string  // correlation tokens
}

// Finding groups every event sharing a category and severity.
type Finding struct {
	Category   string
	Severity   string
	Message    string // text of the first event seen
	Count      int
	Components []string
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     []Event // sample, depending on verbosity
}

// Chain is a set of events from two or more files linked by a shared key
// or by time proximity.
type Chain struct {
	Severity   string
	Start      time.Time
	End        time.Time
	Files      []string
	Components []string
	Keys       []string
	Narrative  string
	Events     []Event
}

// FileStats describes the scan of one input file.
type FileStats struct {
	Path         string
	Component    string
	Basis        string // glob, content, or none
	Bytes        int64
	Lines        int
	Events       int
	Oversize     int
	DecodeErrors int
	Status       string // ok, failed, or truncated
	Reason       string
}

// Count is one row of a per-severity or per-component tally.
type Count struct {
	Name  string
	Count int
}

// Summary holds the run-level totals.
type Summary struct {
	TotalEvents  int
	Severities   []Count // CRITICAL first
	Components   []Count // most events first
	FilesScanned int
	FilesFailed  int
	Anomalies    int
	Chains       int
	Quick        bool
}

// Report is the result of one analysis run.
type Report struct {
	Summary   Summary
	Findings  []Finding
	Chains    []Chain
	Files     []FileStats
	Truncated bool // the run stopped before reading all input

	raw model.Report
}

// JSON encodes the report in the snake_case wire format shared with the
// command-line tool.
func (r Report) JSON() ([]byte, error) {
	return json.Marshal(r.raw)
}

func reportFromModel(m model.Report) Report {
	r := Report{
		Summary: Summary{
			TotalEvents:  m.Summary.TotalEvents,
			FilesScanned: m.Summary.FilesScanned,
			FilesFailed:  m.Summary.FilesFailed,
			Anomalies:    m.Summary.Anomalies,
			Chains:       m.Summary.Chains,
			Quick:        m.Summary.Quick,
		},
		Findings:  make([]Finding, len(m.Findings)),
		Chains:    make([]Chain, len(m.Chains)),
		Files:     make([]FileStats, len(m.Files)),
		Truncated: m.Truncated,
		raw:       m,
	}
	for _, c := range m.Summary.Severities {
		r.Summary.Severities = append(r.Summary.Severities, Count{Name: c.Severity.String(), Count: c.Count})
	}
	for _, c := range m.Summary.Components {
		r.Summary.Components = append(r.Summary.Components, Count{Name: c.Component, Count: c.Count})
	}
	for i, f := range m.Findings {
		r.Findings[i] = Finding{
			Category:   f.Category,
			Severity:   f.Severity.String(),
			Message:    f.Message,
			Count:      f.Count,
			Components: f.Components,
			FirstSeen:  f.FirstSeen,
			LastSeen:   f.LastSeen,
			Events:     eventsFromModel(f.Events),
		}
	}
	for i, ch := range m.Chains {
		r.Chains[i] = Chain{
			Severity:   ch.Severity.String(),
			Start:      ch.Start,
			End:        ch.End,
			Files:      ch.Files,
			Components: ch.Components,
			Keys:       ch.Keys,
			Narrative:  ch.Narrative,
			Events:     eventsFromModel(ch.Events),
		}
	}
	for i, fs := range m.Files {
		r.Files[i] = FileStats{
			Path:         fs.Path,
			Component:    fs.LogType.Component,
			Basis:        string(fs.LogType.Basis),
			Bytes:        fs.Bytes,
			Lines:        fs.Lines,
			Events:       fs.Events,
			Oversize:     fs.Anomalies.Oversize,
			DecodeErrors: fs.Anomalies.Decode,
			Status:       string(fs.Status),
			Reason:       fs.Reason,
		}
	}
	return r
}

func eventsFromModel(evs []model.MatchEvent) []Event {
	if len(evs) == 0 {
		return nil
	}
	out := make([]Event, len(evs))
	for i, e := range evs {
		out[i] = Event{
			File:      e.File,
			Component: e.Component,
			LineStart: e.LineStart,
			LineEnd:   e.LineEnd,
			Text:      e.Text,
			Severity:  e.Severity.String(),
			Category:  e.Category,
			PatternID: e.PatternID,
			Timestamp: e.Timestamp,
			Keys:      e.Keys,
		}
	}
	return out
}
