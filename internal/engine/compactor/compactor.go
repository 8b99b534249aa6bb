// Package compactor trims event text and finding samples to the requested
// report verbosity.
package compactor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hejijunhao/sleuth/internal/model"
)

// Verbosity controls how much detail is retained after compaction.
type Verbosity int

const (
	Minimal  Verbosity = iota // no sample events, short messages
	Standard                  // a few samples, bounded text
	Full                      // retain everything
)

// Limits per verbosity.
const (
	MinimalTextRunes  = 200
	StandardTextRunes = 2000
	StandardSamples   = 5
	summaryRunes      = 120
	minimalFrames     = 2
	standardFrames    = 10
	stackTailFrames   = 2
)

var verbosityNames = map[Verbosity]string{
	Minimal:  "minimal",
	Standard: "standard",
	Full:     "full",
}

func (v Verbosity) String() string {
	if s, ok := verbosityNames[v]; ok {
		return s
	}
	return fmt.Sprintf("Verbosity(%d)", int(v))
}

// ParseVerbosity converts a name to a Verbosity.
func ParseVerbosity(s string) (Verbosity, error) {
	for v, name := range verbosityNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return v, nil
		}
	}
	return Standard, fmt.Errorf("unknown verbosity %q (want minimal, standard or full)", s)
}

// Compactor applies a verbosity level to report content.
type Compactor struct {
	Verbosity Verbosity
}

// New creates a Compactor with the given verbosity level.
func New(v Verbosity) *Compactor {
	return &Compactor{Verbosity: v}
}

// Compact trims stack traces and truncates raw to the verbosity's length
// limit. It also returns a one-line summary of raw.
func (c *Compactor) Compact(raw string) (compacted string, summary string) {
	switch c.Verbosity {
	case Minimal:
		return truncate(truncateStackTrace(raw, minimalFrames), MinimalTextRunes), summarize(raw)
	case Standard:
		return truncate(truncateStackTrace(raw, standardFrames), StandardTextRunes), summarize(raw)
	default:
		return raw, summarize(raw)
	}
}

// Finding returns f with its message and samples reduced. Minimal drops
// every sample event, Standard keeps the first StandardSamples, Full keeps
// all. f is not modified.
func (c *Compactor) Finding(f model.Finding) model.Finding {
	switch c.Verbosity {
	case Minimal:
		f.Message, _ = c.Compact(f.Message)
		f.Events = nil
	case Standard:
		f.Message, _ = c.Compact(f.Message)
		samples := f.Events
		if len(samples) > StandardSamples {
			samples = samples[:StandardSamples]
		}
		f.Events = c.events(samples)
	}
	return f
}

// Chain returns ch with member event text compacted. Members are never
// dropped; they are the chain.
func (c *Compactor) Chain(ch model.CorrelationChain) model.CorrelationChain {
	if c.Verbosity != Full {
		ch.Events = c.events(ch.Events)
	}
	return ch
}

func (c *Compactor) events(in []model.MatchEvent) []model.MatchEvent {
	if in == nil {
		return nil
	}
	out := make([]model.MatchEvent, len(in))
	for i, e := range in {
		e.Text, _ = c.Compact(e.Text)
		out[i] = e
	}
	return out
}

// truncate cuts s to maxRunes runes, appending "..." when anything was
// removed. Multi-byte characters are never split.
func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

// summarize returns the first line of raw, cut at a word boundary when it
// is longer than summaryRunes.
func summarize(raw string) string {
	line, _, _ := strings.Cut(raw, "\n")
	line = strings.TrimRight(line, "\r")
	if utf8.RuneCountInString(line) <= summaryRunes {
		return line
	}
	cut := truncate(line, summaryRunes)
	cut = strings.TrimSuffix(cut, "...")
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ") + "..."
}

// isFrame reports whether line is a stack frame of a JVM, Python or Go
// trace.
func isFrame(line string) bool {
	t := strings.TrimLeft(line, " \t")
	switch {
	case strings.HasPrefix(t, "at "):
		return true
	case strings.HasPrefix(t, "File \""):
		return true
	case strings.HasPrefix(line, "\t") && strings.HasPrefix(t, "/"):
		return true
	case strings.HasSuffix(t, ")") && strings.Contains(t, "(") && !strings.Contains(t, " "):
		return true
	}
	return false
}

// truncateStackTrace keeps the lines before the first frame, the first
// maxFrames frames and the last stackTailFrames frames, and replaces the
// rest with an omission note. Text without enough frames is unchanged.
func truncateStackTrace(s string, maxFrames int) string {
	lines := strings.Split(s, "\n")
	first := -1
	frames := 0
	for i, l := range lines {
		if isFrame(l) {
			if first < 0 {
				first = i
			}
			frames++
		}
	}
	if first < 0 || frames <= maxFrames+stackTailFrames {
		return s
	}

	var out []string
	out = append(out, lines[:first]...)
	kept := 0
	omitted := 0
	tailStart := len(lines)
	for seen := 0; tailStart > first && seen < stackTailFrames; {
		tailStart--
		if isFrame(lines[tailStart]) {
			seen++
		}
	}
	for _, l := range lines[first:tailStart] {
		if kept < maxFrames {
			out = append(out, l)
			if isFrame(l) {
				kept++
			}
			continue
		}
		if isFrame(l) {
			omitted++
		}
	}
	out = append(out, fmt.Sprintf("\t... (%d frames omitted)", omitted))
	out = append(out, lines[tailStart:]...)
	return strings.Join(out, "\n")
}
