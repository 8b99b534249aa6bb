// Package scanner turns a log file into a sequence of match events using the
// patterns of the file's component.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/hejijunhao/sleuth/internal/engine/catalog"
	"github.com/hejijunhao/sleuth/internal/engine/extract"
	"github.com/hejijunhao/sleuth/internal/model"
)

const (
	DefaultMaxLineLength = 64 * 1024
	DefaultCheckEvery    = 1024
)

// Config controls a Scanner. Zero values select the defaults.
type Config struct {
	// MaxLineLength is the longest line, in bytes, that is matched. Longer
	// lines are skipped and counted as oversize anomalies.
	MaxLineLength int
	// MaxBlockLines bounds a multi-line block. Zero uses the catalog's
	// block policy.
	MaxBlockLines int
	// Quick restricts matching to the catalog's fast-path patterns.
	Quick bool
	// CheckEvery is how many lines are read between context checks.
	CheckEvery int
}

// Opener opens a file for scanning. The engine supplies one that decompresses
// and decodes; os.Open is used when nil.
type Opener func(path string) (io.ReadCloser, error)

// Result is everything a scan of one file produced.
type Result struct {
	Events []model.MatchEvent
	Stats  model.FileStats
}

// Scanner matches lines against a catalog. It holds no per-scan state and is
// safe for concurrent use.
type Scanner struct {
	cfg       Config
	block     catalog.BlockPolicy
	fallback  catalog.Pattern
	fastPath  []catalog.Pattern
	byProfile map[string][]catalog.Pattern
}

// New creates a Scanner over cat.
func New(cat *catalog.Catalog, cfg Config) *Scanner {
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = DefaultMaxLineLength
	}
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = DefaultCheckEvery
	}
	block := cat.Block()
	if cfg.MaxBlockLines > 0 {
		block.MaxLines = cfg.MaxBlockLines
	}
	if block.MaxLines <= 0 {
		block.MaxLines = catalog.DefaultMaxBlockLines
	}

	s := &Scanner{
		cfg:       cfg,
		block:     block,
		fallback:  cat.Fallback(),
		fastPath:  cat.FastPath(),
		byProfile: make(map[string][]catalog.Pattern),
	}
	for _, p := range cat.Profiles() {
		s.byProfile[p.Name] = p.Patterns
	}
	return s
}

// Config returns the effective configuration after defaults.
func (s *Scanner) Config() Config {
	cfg := s.cfg
	cfg.MaxBlockLines = s.block.MaxLines
	return cfg
}

// patternsFor returns the ordered rules applied to component. Components
// without rules of their own, and every component in quick mode, use the
// fast path.
func (s *Scanner) patternsFor(component string) []catalog.Pattern {
	if s.cfg.Quick {
		return s.fastPath
	}
	if ps := s.byProfile[component]; len(ps) > 0 {
		return ps
	}
	return s.fastPath
}

// Scan opens path and collects every event. A file that cannot be opened or
// read returns its partial result, status failed, and the error.
// Cancellation is not an error: the partial result comes back with status
// truncated.
func (s *Scanner) Scan(ctx context.Context, path string, open Opener, lt model.LogType) (Result, error) {
	if open == nil {
		open = func(p string) (io.ReadCloser, error) { return os.Open(p) }
	}
	res := Result{Stats: model.FileStats{Path: path, LogType: lt, Status: model.FileOK}}

	f, err := open(path)
	if err != nil {
		res.Stats.Status = model.FileFailed
		res.Stats.Reason = err.Error()
		return res, fmt.Errorf("scanner: open %s: %w", path, err)
	}
	defer f.Close()

	err = s.run(ctx, path, f, lt, &res.Stats, func(ev model.MatchEvent) bool {
		res.Events = append(res.Events, ev)
		return true
	})
	if err != nil {
		return res, fmt.Errorf("scanner: read %s: %w", path, err)
	}
	return res, nil
}

// Events returns the lazy event sequence for r. Every iteration reads r
// afresh, so a sequence over a consumed reader is empty. stats, when not nil,
// is updated as lines are read; a read error is recorded there as status
// failed.
func (s *Scanner) Events(ctx context.Context, path string, r io.Reader, lt model.LogType, stats *model.FileStats) iter.Seq[model.MatchEvent] {
	return func(yield func(model.MatchEvent) bool) {
		st := stats
		if st == nil {
			st = &model.FileStats{}
		}
		*st = model.FileStats{Path: path, LogType: lt, Status: model.FileOK}
		_ = s.run(ctx, path, r, lt, st, yield)
	}
}

// block is a multi-line event under construction.
type block struct {
	pattern catalog.Pattern
	start   int
	end     int
	lines   []string
}

func (s *Scanner) run(ctx context.Context, path string, r io.Reader, lt model.LogType, st *model.FileStats, yield func(model.MatchEvent) bool) error {
	patterns := s.patternsFor(lt.Component)
	lr := newLineReader(r, s.cfg.MaxLineLength)
	defer func() { st.Bytes = lr.bytes }()

	var open *block
	emit := func(b *block) bool {
		st.Events++
		return yield(s.event(path, lt.Component, b))
	}
	flush := func() bool {
		if open == nil {
			return true
		}
		b := open
		open = nil
		return emit(b)
	}

	for n := 0; ; n++ {
		if n%s.cfg.CheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				st.Status = model.FileTruncated
				st.Reason = err.Error()
				flush()
				return nil
			}
		}

		raw, oversize, err := lr.next()
		if errors.Is(err, io.EOF) {
			flush()
			return nil
		}
		if err != nil {
			st.Status = model.FileFailed
			st.Reason = err.Error()
			flush()
			return err
		}

		st.Lines++
		lineNo := st.Lines
		if oversize {
			st.Anomalies.Oversize++
			if !flush() {
				return nil
			}
			continue
		}

		text := string(raw)
		if !utf8.Valid(raw) {
			st.Anomalies.Decode++
			text = strings.ToValidUTF8(text, string(utf8.RuneError))
		}

		if open != nil {
			if len(open.lines) < s.block.MaxLines && s.block.Continues(text) {
				open.lines = append(open.lines, text)
				open.end = lineNo
				continue
			}
			if !flush() {
				return nil
			}
		}

		p, ok := s.match(patterns, catalog.NewLine(text))
		if !ok {
			continue
		}
		b := &block{pattern: p, start: lineNo, end: lineNo, lines: []string{text}}
		if p.Multiline {
			open = b
			continue
		}
		if !emit(b) {
			return nil
		}
	}
}

// match returns the first pattern matching l, or the fallback.
func (s *Scanner) match(patterns []catalog.Pattern, l catalog.Line) (catalog.Pattern, bool) {
	for _, p := range patterns {
		if p.Match(l) {
			return p, true
		}
	}
	if s.fallback.Matcher != nil && s.fallback.Match(l) {
		return s.fallback, true
	}
	return catalog.Pattern{}, false
}

func (s *Scanner) event(path, component string, b *block) model.MatchEvent {
	text := strings.Join(b.lines, "\n")
	ev := model.MatchEvent{
		File:      path,
		Component: component,
		LineStart: b.start,
		LineEnd:   b.end,
		Text:      text,
		Severity:  b.pattern.Severity,
		Category:  b.pattern.Category,
		PatternID: b.pattern.ID,
		Keys:      extract.Keys(text),
	}
	if ts, _, ok := extract.Timestamp(b.lines[0]); ok {
		ev.Timestamp = ts
	}
	return ev
}
