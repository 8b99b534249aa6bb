// Package source discovers the files of a support bundle and opens them for
// scanning.
package source

import (
	"context"
	"fmt"
	"slices"
)

// Source lists the files that make up one analysis input.
type Source interface {
	// Discover returns file paths in a stable order.
	Discover(ctx context.Context, cfg Config) ([]string, error)
}

// Config holds source-specific settings.
type Config struct {
	Provider string
	Root     string   // dir: directory to walk
	Files    []string // files: explicit list
	Hidden   bool     // dir: include dot files and directories
}

// Constructor is a function that creates a new Source instance.
type Constructor func() Source

var registry = map[string]Constructor{}

// Register adds a source constructor under the given provider name.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Get returns the source constructor for the given provider name.
func Get(name string) (Constructor, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown source provider: %s", name)
	}
	return ctor, nil
}

// Providers returns the names of all registered source providers, sorted.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
