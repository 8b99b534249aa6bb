package classifier

import (
	"bufio"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/hejijunhao/sleuth/internal/engine/catalog"
	"github.com/hejijunhao/sleuth/internal/engine/extract"
	"github.com/hejijunhao/sleuth/internal/model"
)

// DefaultSampleLines is how many leading lines are sniffed when no file
// name glob matches.
const DefaultSampleLines = 20

// maxSampleLine caps a single sampled line so a binary file cannot make
// Sample buffer without bound.
const maxSampleLine = 4096

// Classifier assigns files to catalog components.
type Classifier struct {
	profiles    []catalog.Profile
	SampleLines int
}

// New creates a Classifier over the profiles of cat. sampleLines <= 0 uses
// DefaultSampleLines.
func New(cat *catalog.Catalog, sampleLines int) *Classifier {
	if sampleLines <= 0 {
		sampleLines = DefaultSampleLines
	}
	return &Classifier{profiles: cat.Profiles(), SampleLines: sampleLines}
}

// Classify determines which component path belongs to. Globs are tried
// first in profile registration order against the lower-cased base name
// and every trailing sub-path, then signature substrings against
// the first SampleLines lines of sample. It never fails; unmatched files
// are "unknown".
func (c *Classifier) Classify(p string, sample string) model.LogType {
	lines := firstLines(sample, c.SampleLines)
	hint := extract.FormatOf(lines)

	names := suffixes(strings.ToLower(filepath.ToSlash(p)))
	for _, prof := range c.profiles {
		for _, g := range prof.Globs {
			for _, name := range names {
				if globMatch(g, name) {
					return model.LogType{Component: prof.Name, Basis: model.BasisGlob, TimestampHint: hint}
				}
			}
		}
	}

	for _, prof := range c.profiles {
		for _, sig := range prof.Signatures {
			for _, l := range lines {
				if strings.Contains(l, sig) {
					return model.LogType{Component: prof.Name, Basis: model.BasisContent, TimestampHint: hint}
				}
			}
		}
	}

	lt := model.Unknown()
	lt.TimestampHint = hint
	return lt
}

// Sample reads up to SampleLines lines from r for content sniffing.
func (c *Classifier) Sample(r io.Reader) string {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024), maxSampleLine)
	var b strings.Builder
	for n := 0; n < c.SampleLines && sc.Scan(); n++ {
		b.WriteString(sc.Text())
		b.WriteByte('\n')
	}
	return b.String()
}

func globMatch(glob, name string) bool {
	ok, err := path.Match(glob, name)
	return err == nil && ok
}

// suffixes returns the base name followed by each longer trailing run of
// path elements, so "nginx/*" matches ".../nginx/error.log".
func suffixes(p string) []string {
	p = strings.TrimPrefix(p, "/")
	out := []string{path.Base(p)}
	for i := len(p) - len(out[0]) - 2; i >= 0; i-- {
		if p[i] == '/' {
			out = append(out, p[i+1:])
		}
	}
	if p != out[len(out)-1] {
		out = append(out, p)
	}
	return out
}

func firstLines(s string, n int) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitN(s, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines
}
