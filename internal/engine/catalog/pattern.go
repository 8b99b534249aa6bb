package catalog

import (
	"regexp"
	"strings"

	"github.com/hejijunhao/sleuth/internal/model"
)

// Line is a log line prepared for matching. The lower-cased form is computed
// once per line and shared by every case-insensitive literal.
type Line struct {
	Text  string
	lower string
}

// NewLine prepares text for matching.
func NewLine(text string) Line {
	return Line{Text: text, lower: strings.ToLower(text)}
}

// Matcher tests a line against one rule. The only implementations are
// Literal and Regex.
type Matcher interface {
	Match(l Line) bool
	String() string
	sealed()
}

// Literal is a plain substring rule.
type Literal struct {
	text          string
	caseSensitive bool
}

// NewLiteral returns a substring matcher. Case-insensitive literals are
// stored lower-cased.
func NewLiteral(text string, caseSensitive bool) Literal {
	if !caseSensitive {
		text = strings.ToLower(text)
	}
	return Literal{text: text, caseSensitive: caseSensitive}
}

func (m Literal) Match(l Line) bool {
	if m.caseSensitive {
		return strings.Contains(l.Text, m.text)
	}
	if l.lower == "" && l.Text != "" {
		return strings.Contains(strings.ToLower(l.Text), m.text)
	}
	return strings.Contains(l.lower, m.text)
}

func (m Literal) String() string { return m.text }
func (Literal) sealed()          {}

// Regex is a compiled regular expression rule.
type Regex struct {
	re *regexp.Regexp
}

// NewRegex compiles expr. Case-insensitive rules get the (?i) flag.
func NewRegex(expr string, caseSensitive bool) (Regex, error) {
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Regex{}, err
	}
	return Regex{re: re}, nil
}

func (m Regex) Match(l Line) bool { return m.re.MatchString(l.Text) }
func (m Regex) String() string    { return m.re.String() }
func (Regex) sealed()             {}

// Pattern is a compiled, immutable error-detection rule.
type Pattern struct {
	ID          string
	Matcher     Matcher
	Severity    model.Severity
	Category    string
	Description string
	Multiline   bool // may open a multi-line block (stack traces)
}

// Match reports whether the pattern matches l.
func (p Pattern) Match(l Line) bool {
	return p.Matcher.Match(l)
}

// BlockPolicy decides which lines continue a multi-line block opened by a
// Multiline pattern.
type BlockPolicy struct {
	Continuation *regexp.Regexp
	MaxLines     int
}

// Continues reports whether line belongs to the currently open block.
func (b BlockPolicy) Continues(line string) bool {
	return b.Continuation != nil && b.Continuation.MatchString(line)
}
