// Package aggregate groups match events into findings and computes the
// per-run counts that feed the report.
package aggregate

import (
	"cmp"
	"slices"

	"github.com/hejijunhao/sleuth/internal/model"
)

// Key identifies a finding.
type Key struct {
	Category string
	Severity model.Severity
}

// KeyOf returns the grouping key of f.
func KeyOf(f model.Finding) Key {
	return Key{Category: f.Category, Severity: f.Severity}
}

// Dedup drops events that repeat an earlier event's file and start line,
// keeping the first occurrence. Input order is preserved.
func Dedup(events []model.MatchEvent) []model.MatchEvent {
	if len(events) == 0 {
		return nil
	}
	type loc struct {
		file string
		line int
	}
	seen := make(map[loc]struct{}, len(events))
	out := make([]model.MatchEvent, 0, len(events))
	for _, e := range events {
		k := loc{e.File, e.LineStart}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Aggregate collapses events with identical category and severity into
// findings. Findings come back in first-occurrence order; each carries the
// text of its first event as its message and every event in input order.
func Aggregate(events []model.MatchEvent) []model.Finding {
	events = Dedup(events)
	if len(events) == 0 {
		return nil
	}

	// Ordered map: preserve first-occurrence order.
	var order []*model.Finding
	groups := make(map[Key]*model.Finding)
	seenComponent := make(map[Key]map[string]struct{})

	for _, e := range events {
		k := Key{Category: e.Category, Severity: e.Severity}
		f, ok := groups[k]
		if !ok {
			f = &model.Finding{
				Category: e.Category,
				Severity: e.Severity,
				Message:  e.Text,
			}
			groups[k] = f
			seenComponent[k] = make(map[string]struct{})
			order = append(order, f)
		}

		f.Count++
		f.Events = append(f.Events, e)
		if _, ok := seenComponent[k][e.Component]; !ok {
			seenComponent[k][e.Component] = struct{}{}
			f.Components = append(f.Components, e.Component)
		}
		if e.HasTimestamp() {
			if f.FirstSeen.IsZero() || e.Timestamp.Before(f.FirstSeen) {
				f.FirstSeen = e.Timestamp
			}
			if e.Timestamp.After(f.LastSeen) {
				f.LastSeen = e.Timestamp
			}
		}
	}

	result := make([]model.Finding, len(order))
	for i, f := range order {
		result[i] = *f
	}
	return result
}

// Index maps findings by key. Aggregate never produces two findings with the
// same key, so the map holds every finding.
func Index(findings []model.Finding) map[Key]model.Finding {
	m := make(map[Key]model.Finding, len(findings))
	for _, f := range findings {
		m[KeyOf(f)] = f
	}
	return m
}

// CountBySeverity counts events per severity, highest severity first.
// Severities with no events are omitted.
func CountBySeverity(events []model.MatchEvent) []model.SeverityCount {
	counts := make([]int, len(model.Severities))
	for _, e := range events {
		if e.Severity.Valid() {
			counts[e.Severity]++
		}
	}
	var out []model.SeverityCount
	for _, s := range model.Severities {
		if counts[s] > 0 {
			out = append(out, model.SeverityCount{Severity: s, Count: counts[s]})
		}
	}
	return out
}

// CountByComponent counts events per component, most events first, ties
// broken by name.
func CountByComponent(events []model.MatchEvent) []model.ComponentCount {
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.Component]++
	}
	out := make([]model.ComponentCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, model.ComponentCount{Component: c, Count: n})
	}
	slices.SortFunc(out, func(a, b model.ComponentCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Component, b.Component)
	})
	return out
}

// Timeline returns a copy of events stably ordered by timestamp. Events
// without a timestamp keep their relative order and sort last.
func Timeline(events []model.MatchEvent) []model.MatchEvent {
	out := slices.Clone(events)
	slices.SortStableFunc(out, CompareTime)
	return out
}

// CompareTime orders events by timestamp with untimed events last.
func CompareTime(a, b model.MatchEvent) int {
	switch at, bt := a.HasTimestamp(), b.HasTimestamp(); {
	case at && bt:
		return a.Timestamp.Compare(b.Timestamp)
	case at:
		return -1
	case bt:
		return 1
	}
	return 0
}
