package catalog

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/hejijunhao/sleuth/internal/model"
)

// ErrInvalidCatalog is returned when any rule in a catalog definition is
// malformed. No partial catalog is ever built.
var ErrInvalidCatalog = errors.New("invalid pattern catalog")

// DefaultMaxBlockLines bounds multi-line blocks when a definition omits it.
const DefaultMaxBlockLines = 50

// PatternSpec is the uncompiled form of a Pattern.
type PatternSpec struct {
	ID            string `yaml:"id"`
	Pattern       string `yaml:"pattern"`
	Regex         bool   `yaml:"regex"`
	CaseSensitive bool   `yaml:"case_sensitive"`
	Severity      string `yaml:"severity"`
	Category      string `yaml:"category"`
	Description   string `yaml:"description"`
	Multiline     bool   `yaml:"multiline"`
}

// ProfileSpec describes one platform component.
type ProfileSpec struct {
	Name       string        `yaml:"name"`
	Globs      []string      `yaml:"globs"`
	Signatures []string      `yaml:"signatures"`
	Patterns   []PatternSpec `yaml:"patterns"`
}

// BlockSpec is the uncompiled multi-line policy.
type BlockSpec struct {
	Continuation string `yaml:"continuation"`
	MaxLines     int    `yaml:"max_lines"`
}

// Spec is a full catalog definition. Shared patterns are appended to every
// profile after its own patterns. Profiles are registered in order; earlier
// profiles win classification ties.
type Spec struct {
	Version  string        `yaml:"version"`
	Profiles []ProfileSpec `yaml:"profiles"`
	Shared   []PatternSpec `yaml:"shared"`
	FastPath []PatternSpec `yaml:"fast_path"`
	Fallback *PatternSpec  `yaml:"fallback"`
	Block    *BlockSpec    `yaml:"block"`
}

// Profile is a compiled component profile.
type Profile struct {
	Name       string
	Globs      []string // lower-cased
	Signatures []string
	Patterns   []Pattern
}

// Catalog is the immutable, validated set of detection rules. It is safe
// for concurrent use without locking.
type Catalog struct {
	version  string
	profiles []Profile
	byName   map[string]int
	fastPath []Pattern
	fallback Pattern
	block    BlockPolicy
}

// New compiles spec. Every problem found is reported, and any problem at
// all rejects the whole catalog.
func New(spec Spec) (*Catalog, error) {
	var errs []error
	c := &Catalog{
		version: spec.Version,
		byName:  make(map[string]int, len(spec.Profiles)),
	}

	shared := compileAll("shared", spec.Shared, &errs)

	for i, ps := range spec.Profiles {
		name := strings.TrimSpace(ps.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("profile %d: empty name", i))
			continue
		}
		if name == model.UnknownComponent {
			errs = append(errs, fmt.Errorf("profile %q: name is reserved", name))
			continue
		}
		if _, dup := c.byName[name]; dup {
			errs = append(errs, fmt.Errorf("profile %q: duplicate name", name))
			continue
		}
		if len(ps.Globs) == 0 {
			errs = append(errs, fmt.Errorf("profile %q: at least one glob is required", name))
		}
		globs := make([]string, 0, len(ps.Globs))
		for _, g := range ps.Globs {
			g = strings.ToLower(strings.TrimSpace(g))
			if _, err := path.Match(g, ""); g == "" || err != nil {
				errs = append(errs, fmt.Errorf("profile %q: bad glob %q", name, g))
				continue
			}
			globs = append(globs, g)
		}
		var sigs []string
		for _, s := range ps.Signatures {
			if s != "" {
				sigs = append(sigs, s)
			}
		}

		patterns := compileAll(name, ps.Patterns, &errs)
		patterns = append(patterns, shared...)

		c.byName[name] = len(c.profiles)
		c.profiles = append(c.profiles, Profile{
			Name:       name,
			Globs:      globs,
			Signatures: sigs,
			Patterns:   patterns,
		})
	}

	c.fastPath = compileAll("fast_path", spec.FastPath, &errs)

	fb := DefaultFallback()
	if spec.Fallback != nil {
		fb = *spec.Fallback
	}
	if p, err := compile(fb); err != nil {
		errs = append(errs, fmt.Errorf("fallback: %w", err))
	} else {
		c.fallback = p
	}

	block := DefaultBlock()
	if spec.Block != nil {
		block = *spec.Block
	}
	if block.MaxLines <= 0 {
		block.MaxLines = DefaultMaxBlockLines
	}
	re, err := regexp.Compile(block.Continuation)
	if err != nil || block.Continuation == "" {
		errs = append(errs, fmt.Errorf("block: bad continuation %q", block.Continuation))
	} else {
		c.block = BlockPolicy{Continuation: re, MaxLines: block.MaxLines}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}
	return c, nil
}

func compileAll(scope string, specs []PatternSpec, errs *[]error) []Pattern {
	out := make([]Pattern, 0, len(specs))
	for i, ps := range specs {
		if ps.ID == "" {
			ps.ID = fmt.Sprintf("%s.%d", scope, i)
		}
		p, err := compile(ps)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: pattern %q: %w", scope, ps.ID, err))
			continue
		}
		out = append(out, p)
	}
	return out
}

func compile(ps PatternSpec) (Pattern, error) {
	if ps.Pattern == "" {
		return Pattern{}, errors.New("empty pattern")
	}
	sev, err := model.ParseSeverity(ps.Severity)
	if err != nil {
		return Pattern{}, err
	}
	category := strings.TrimSpace(ps.Category)
	if category == "" {
		return Pattern{}, errors.New("empty category")
	}

	var m Matcher
	if ps.Regex {
		re, err := NewRegex(ps.Pattern, ps.CaseSensitive)
		if err != nil {
			return Pattern{}, err
		}
		m = re
	} else {
		m = NewLiteral(ps.Pattern, ps.CaseSensitive)
	}

	return Pattern{
		ID:          ps.ID,
		Matcher:     m,
		Severity:    sev,
		Category:    category,
		Description: ps.Description,
		Multiline:   ps.Multiline,
	}, nil
}

// Version returns the catalog's declared version string.
func (c *Catalog) Version() string {
	return c.version
}

// Profiles returns the component profiles in registration order.
func (c *Catalog) Profiles() []Profile {
	return slices.Clone(c.profiles)
}

// PatternsFor returns the ordered patterns for component, most specific
// first. Unknown components have no patterns.
func (c *Catalog) PatternsFor(component string) []Pattern {
	i, ok := c.byName[component]
	if !ok {
		return nil
	}
	return slices.Clone(c.profiles[i].Patterns)
}

// FastPath returns the high-precision subset used for quick scans and for
// components without patterns of their own.
func (c *Catalog) FastPath() []Pattern {
	return slices.Clone(c.fastPath)
}

// Fallback returns the broad catch-all applied when nothing else matches.
func (c *Catalog) Fallback() Pattern {
	return c.fallback
}

// Block returns the multi-line block policy.
func (c *Catalog) Block() BlockPolicy {
	return c.block
}
