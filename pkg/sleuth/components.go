package sleuth

// Component describes one platform component the catalog knows.
type Component struct {
	Name     string
	Globs    []string
	Patterns []Pattern
}

// Pattern is a single detection rule.
type Pattern struct {
	ID          string
	Severity    string
	Category    string
	Description string
	Multiline   bool
}

// CatalogVersion returns the version string of the loaded catalog.
func (a *Analyzer) CatalogVersion() string {
	return a.engine.Catalog().Version()
}

// Components returns the catalog's component profiles in classification
// order. This is read-only; consumers can inspect the rules but not modify
// them.
func (a *Analyzer) Components() []Component {
	profiles := a.engine.Catalog().Profiles()
	out := make([]Component, len(profiles))
	for i, p := range profiles {
		patterns := make([]Pattern, len(p.Patterns))
		for j, pt := range p.Patterns {
			patterns[j] = Pattern{
				ID:          pt.ID,
				Severity:    pt.Severity.String(),
				Category:    pt.Category,
				Description: pt.Description,
				Multiline:   pt.Multiline,
			}
		}
		out[i] = Component{
			Name:     p.Name,
			Globs:    append([]string(nil), p.Globs...),
			Patterns: patterns,
		}
	}
	return out
}
