// Package correlate links match events from different files into incident
// chains by shared correlation keys and timestamp proximity.
package correlate

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hejijunhao/sleuth/internal/engine/aggregate"
	"github.com/hejijunhao/sleuth/internal/model"
)

// DefaultWindow is the proximity window used when Config.Window is zero.
const DefaultWindow = 5 * time.Second

// Config controls correlation.
type Config struct {
	Window time.Duration // proximity window (default 5s)
}

// Correlator groups events into chains.
type Correlator struct {
	cfg Config
}

// New creates a Correlator with the given config.
func New(cfg Config) *Correlator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Correlator{cfg: cfg}
}

// Window returns the effective proximity window.
func (c *Correlator) Window() time.Duration {
	return c.cfg.Window
}

// checkEvery is how many events are processed between context checks.
const checkEvery = 4096

// Correlate links events that share a key, and events from different files
// whose timestamps lie within the window. Links are transitive. Every
// connected group with at least two members from at least two files becomes
// a chain. Chains are ordered by severity (highest first), then start time
// (untimed last), then size (largest first).
//
// A done ctx stops correlation; no chains are returned with ctx.Err().
func (c *Correlator) Correlate(ctx context.Context, events []model.MatchEvent) ([]model.CorrelationChain, error) {
	n := len(events)
	if n < 2 {
		return nil, nil
	}
	d := newDSU(n)

	// Key links: every event joins the first event that carried the key.
	firstWithKey := make(map[string]int)
	for i, e := range events {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for _, k := range e.Keys {
			if j, ok := firstWithKey[k]; ok {
				d.union(i, j)
				continue
			}
			firstWithKey[k] = i
		}
	}

	if err := c.linkProximity(ctx, events, d); err != nil {
		return nil, err
	}

	groups := make(map[int][]int)
	var roots []int
	for i := range events {
		r := d.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	var chains []model.CorrelationChain
	for _, r := range roots {
		members := groups[r]
		if len(members) < 2 {
			continue
		}
		ch := buildChain(events, members)
		if len(ch.Files) < 2 {
			continue
		}
		chains = append(chains, ch)
	}

	slices.SortStableFunc(chains, compareChains)
	return chains, nil
}

// linkProximity unions timed events from different files that lie within
// the window of each other.
//
// Events are swept in time order with a sliding window ending at the current
// event. Any two window members are within the window of each other, so a
// window holding two or more files is one component; a window holding a
// single file adds no link. Window members merged by an earlier step stay
// merged, so the sweep unions each event at most once and stays near linear
// however dense the window.
func (c *Correlator) linkProximity(ctx context.Context, events []model.MatchEvent, d *dsu) error {
	timed := make([]int, 0, len(events))
	for i, e := range events {
		if e.HasTimestamp() {
			timed = append(timed, i)
		}
	}
	slices.SortFunc(timed, func(a, b int) int {
		return compareEvents(events[a], events[b])
	})

	inWindow := make(map[string]int) // file -> members in window
	lo := 0                          // first window position
	merged := 0                      // positions [lo, merged) are one component
	for x, i := range timed {
		if x%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for events[i].Timestamp.Sub(events[timed[lo]].Timestamp) > c.cfg.Window {
			f := events[timed[lo]].File
			if inWindow[f]--; inWindow[f] == 0 {
				delete(inWindow, f)
			}
			lo++
		}
		inWindow[events[i].File]++
		if len(inWindow) < 2 {
			continue
		}
		from := max(lo, merged)
		if merged > lo {
			d.union(i, timed[merged-1])
		}
		for y := from; y < x; y++ {
			d.union(i, timed[y])
		}
		merged = x + 1
	}
	return nil
}

func buildChain(events []model.MatchEvent, members []int) model.CorrelationChain {
	evs := make([]model.MatchEvent, len(members))
	for i, m := range members {
		evs[i] = events[m]
	}
	slices.SortStableFunc(evs, compareEvents)

	ch := model.CorrelationChain{Events: evs}
	seenFile := make(map[string]struct{})
	seenComponent := make(map[string]struct{})
	keyCount := make(map[string]int)
	var keyOrder []string

	for _, e := range evs {
		ch.Severity = model.MaxSeverity(ch.Severity, e.Severity)
		if e.HasTimestamp() {
			if ch.Start.IsZero() || e.Timestamp.Before(ch.Start) {
				ch.Start = e.Timestamp
			}
			if e.Timestamp.After(ch.End) {
				ch.End = e.Timestamp
			}
		}
		if _, ok := seenFile[e.File]; !ok {
			seenFile[e.File] = struct{}{}
			ch.Files = append(ch.Files, e.File)
		}
		if _, ok := seenComponent[e.Component]; !ok {
			seenComponent[e.Component] = struct{}{}
			ch.Components = append(ch.Components, e.Component)
		}
		for _, k := range e.Keys {
			if keyCount[k] == 0 {
				keyOrder = append(keyOrder, k)
			}
			keyCount[k]++
		}
	}
	for _, k := range keyOrder {
		if keyCount[k] > 1 {
			ch.Keys = append(ch.Keys, k)
		}
	}
	ch.Narrative = narrative(ch)
	return ch
}

// compareEvents orders events by timestamp (untimed last), then file, then
// line.
func compareEvents(a, b model.MatchEvent) int {
	if c := aggregate.CompareTime(a, b); c != 0 {
		return c
	}
	if c := cmp.Compare(a.File, b.File); c != 0 {
		return c
	}
	return cmp.Compare(a.LineStart, b.LineStart)
}

func compareChains(a, b model.CorrelationChain) int {
	if c := cmp.Compare(b.Severity, a.Severity); c != 0 {
		return c
	}
	switch as, bs := !a.Start.IsZero(), !b.Start.IsZero(); {
	case as && bs:
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
	case as:
		return -1
	case bs:
		return 1
	}
	if c := cmp.Compare(b.Size(), a.Size()); c != 0 {
		return c
	}
	return compareEvents(a.Events[0], b.Events[0])
}

// narrative renders a one-line human summary, for example:
//
//	FATAL across 2 files (etcd, kubelet) within 3s: etcd ERROR disk -> kubelet FATAL network [keys: abc123]
func narrative(ch model.CorrelationChain) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s across %d files (%s)", ch.Severity, len(ch.Files), strings.Join(ch.Components, ", "))
	if !ch.Start.IsZero() {
		fmt.Fprintf(&b, " within %s", formatDuration(ch.End.Sub(ch.Start)))
	}
	b.WriteString(": ")

	const maxSteps = 5
	for i, e := range ch.Events {
		if i == maxSteps {
			fmt.Fprintf(&b, " -> ... %d more", len(ch.Events)-maxSteps)
			break
		}
		if i > 0 {
			b.WriteString(" -> ")
		}
		fmt.Fprintf(&b, "%s %s %s", e.Component, e.Severity, e.Category)
	}
	if len(ch.Keys) > 0 {
		fmt.Fprintf(&b, " [keys: %s]", strings.Join(ch.Keys, ", "))
	}
	return b.String()
}

// formatDuration produces a human-readable short duration string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
