// Package report assembles findings, chains and per-file statistics into
// the final Report.
package report

import (
	"cmp"
	"slices"

	"github.com/hejijunhao/sleuth/internal/engine/aggregate"
	"github.com/hejijunhao/sleuth/internal/engine/compactor"
	"github.com/hejijunhao/sleuth/internal/model"
)

// DefaultTopN is the findings cutoff used when Options.TopN is zero.
const DefaultTopN = 10

// Options controls assembly. The zero Verbosity is compactor.Minimal.
type Options struct {
	TopN      int
	Verbosity compactor.Verbosity
	Quick     bool
}

// Assemble builds the Report. It is a pure function of its inputs, which it
// does not modify, so equal inputs always encode to identical bytes.
//
// Findings are ranked by count, then severity, then their position in
// findings; the top TopN are kept. Chains keep their given order. Files are
// sorted by path.
func Assemble(findings []model.Finding, chains []model.CorrelationChain, stats []model.FileStats, opts Options) model.Report {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	cmpr := compactor.New(opts.Verbosity)

	var r model.Report
	r.Summary = summarize(findings, chains, stats)
	r.Summary.Quick = opts.Quick

	ranked := make([]int, len(findings))
	for i := range ranked {
		ranked[i] = i
	}
	slices.SortStableFunc(ranked, func(a, b int) int {
		fa, fb := findings[a], findings[b]
		if c := cmp.Compare(fb.Count, fa.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(fb.Severity, fa.Severity); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(ranked) > opts.TopN {
		ranked = ranked[:opts.TopN]
	}
	r.Findings = make([]model.Finding, 0, len(ranked))
	for _, i := range ranked {
		f := findings[i]
		f.Components = slices.Clone(f.Components)
		r.Findings = append(r.Findings, cmpr.Finding(f))
	}

	r.Chains = make([]model.CorrelationChain, 0, len(chains))
	for _, ch := range chains {
		r.Chains = append(r.Chains, cmpr.Chain(ch))
	}

	r.Files = slices.Clone(stats)
	if r.Files == nil {
		r.Files = []model.FileStats{}
	}
	slices.SortStableFunc(r.Files, func(a, b model.FileStats) int {
		return cmp.Compare(a.Path, b.Path)
	})
	for _, st := range r.Files {
		if st.Status == model.FileTruncated {
			r.Truncated = true
		}
	}
	return r
}

func summarize(findings []model.Finding, chains []model.CorrelationChain, stats []model.FileStats) model.Summary {
	var s model.Summary
	var events []model.MatchEvent
	sevCount := make(map[model.Severity]int)
	for _, f := range findings {
		s.TotalEvents += f.Count
		sevCount[f.Severity] += f.Count
		events = append(events, f.Events...)
	}

	// One row per level, zero counts included.
	s.Severities = make([]model.SeverityCount, 0, len(model.Severities))
	for _, sev := range model.Severities {
		s.Severities = append(s.Severities, model.SeverityCount{Severity: sev, Count: sevCount[sev]})
	}
	s.Components = aggregate.CountByComponent(events)

	for _, st := range stats {
		if st.Status == model.FileFailed {
			s.FilesFailed++
		} else {
			s.FilesScanned++
		}
		s.Anomalies += st.Anomalies.Total()
	}
	s.Chains = len(chains)
	return s
}
