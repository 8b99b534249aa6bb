// Package dir discovers every regular file under a bundle directory.
package dir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hejijunhao/sleuth/internal/source"
)

func init() {
	source.Register("dir", func() source.Source {
		return &Source{}
	})
}

// Source walks Config.Root.
type Source struct{}

// Discover returns the regular files under cfg.Root sorted by path. Dot
// files and directories are skipped unless cfg.Hidden is set. Symlinks are
// not followed.
func (s *Source) Discover(ctx context.Context, cfg source.Config) ([]string, error) {
	if cfg.Root == "" {
		return nil, errors.New("dir: root directory is required")
	}

	var paths []string
	err := filepath.WalkDir(cfg.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p != cfg.Root && !cfg.Hidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dir: walk %s: %w", cfg.Root, err)
	}
	slices.Sort(paths)
	return paths, nil
}
