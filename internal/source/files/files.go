// Package files uses an explicit list of paths as the bundle.
package files

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/hejijunhao/sleuth/internal/source"
)

func init() {
	source.Register("files", func() source.Source {
		return &Source{}
	})
}

// Source returns Config.Files.
type Source struct{}

// Discover returns the cleaned, de-duplicated paths of cfg.Files in their
// given order. Every path must exist and be a regular file.
func (s *Source) Discover(_ context.Context, cfg source.Config) ([]string, error) {
	if len(cfg.Files) == 0 {
		return nil, errors.New("files: at least one file is required")
	}
	var paths []string
	var errs []error
	for _, p := range cfg.Files {
		p = filepath.Clean(p)
		if slices.Contains(paths, p) {
			continue
		}
		fi, err := os.Stat(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !fi.Mode().IsRegular() {
			errs = append(errs, fmt.Errorf("%s: not a regular file", p))
			continue
		}
		paths = append(paths, p)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("files: %w", errors.Join(errs...))
	}
	return paths, nil
}
