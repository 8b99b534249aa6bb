package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/goccy/go-json"

	"github.com/hejijunhao/sleuth/internal/model"
)

// Format selects how a report is rendered.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat converts a format name. The empty string selects JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// EncodeJSON writes r as a single JSON document followed by a newline.
func EncodeJSON(w io.Writer, r model.Report, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(r)
}

// Render writes r to w in format f.
func Render(w io.Writer, r model.Report, f Format, pretty bool) error {
	if f == FormatText {
		return RenderText(w, r)
	}
	return EncodeJSON(w, r, pretty)
}

// RenderText writes a human-readable summary of r.
func RenderText(w io.Writer, r model.Report) error {
	tw := &textWriter{w: w}
	s := r.Summary

	tw.printf("Summary\n")
	tw.printf("  events     %s", humanize.Comma(int64(s.TotalEvents)))
	if levels := severityList(s.Severities); levels != "" {
		tw.printf(" (%s)", levels)
	}
	tw.printf("\n")
	tw.printf("  files      %s scanned, %s failed\n",
		humanize.Comma(int64(s.FilesScanned)), humanize.Comma(int64(s.FilesFailed)))
	tw.printf("  anomalies  %s\n", humanize.Comma(int64(s.Anomalies)))
	tw.printf("  chains     %s\n", humanize.Comma(int64(s.Chains)))
	if s.Quick {
		tw.printf("  mode       quick\n")
	}
	if r.Truncated {
		tw.printf("  PARTIAL: analysis stopped before all input was read\n")
	}

	if len(r.Findings) > 0 {
		tw.printf("\nFindings\n")
		for i, f := range r.Findings {
			tw.printf("  #%d  %-8s  %s  x%s  [%s]\n", i+1, f.Severity, f.Category,
				humanize.Comma(int64(f.Count)), strings.Join(f.Components, ", "))
			if !f.FirstSeen.IsZero() {
				tw.printf("      first %s  last %s\n", stamp(f.FirstSeen), stamp(f.LastSeen))
			}
			tw.printf("      > %s\n", firstLine(f.Message))
		}
	}

	if len(r.Chains) > 0 {
		tw.printf("\nChains\n")
		for i, ch := range r.Chains {
			tw.printf("  #%d  %-8s  %s across %s\n", i+1, ch.Severity,
				english.Plural(ch.Size(), "event", ""), english.Plural(len(ch.Files), "file", ""))
			tw.printf("      %s\n", ch.Narrative)
		}
	}

	if len(r.Files) > 0 {
		tw.printf("\nFiles\n")
		for _, fs := range r.Files {
			tw.printf("  %-9s  %s  %s (%s)  %s  %s lines  %s",
				fs.Status, fs.Path, fs.LogType.Component, fs.LogType.Basis,
				humanize.Bytes(uint64(max(fs.Bytes, 0))), humanize.Comma(int64(fs.Lines)),
				english.Plural(fs.Events, "event", ""))
			if n := fs.Anomalies.Total(); n > 0 {
				tw.printf("  %s", english.Plural(n, "anomaly", "anomalies"))
			}
			if fs.Reason != "" {
				tw.printf("  (%s)", fs.Reason)
			}
			tw.printf("\n")
		}
	}
	return tw.err
}

// severityList renders the non-zero severity counts, highest first.
func severityList(counts []model.SeverityCount) string {
	var parts []string
	for _, c := range counts {
		if c.Count > 0 {
			parts = append(parts, fmt.Sprintf("%s %s", c.Severity, humanize.Comma(int64(c.Count))))
		}
	}
	return strings.Join(parts, ", ")
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// textWriter keeps the first write error so rendering code can ignore it.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}
