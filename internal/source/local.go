package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tierdoc/internal/config"
	appErr "github.com/xxxsen/tierdoc/internal/pkg/errors"
)

type localSource struct {
	dir string
}

func init() {
	Register("local", createLocalSource)
}

func createLocalSource(cfg config.SourceConfig) (Source, error) {
	return &localSource{dir: cfg.Dir}, nil
}

// Walk visits files under root recursively in lexical order. Symlinks are
// not followed.
func (s *localSource) Walk(ctx context.Context, root string, fn WalkFunc) error {
	if root == "" {
		root = s.dir
	}
	if root == "" {
		return fmt.Errorf("source directory is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("open source dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			logutil.GetLogger(ctx).Debug("skip symlink", zap.String("file", path))
			return nil
		}
		if !Supported(path) {
			logutil.GetLogger(ctx).Debug("skip unsupported file", zap.String("file", path))
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		name, err := filepath.Rel(root, path)
		if err != nil {
			name = path
		}
		doc, err := Parse(filepath.ToSlash(name), data)
		if err != nil {
			return err
		}
		return fn(ctx, doc)
	})
}

// Confine resolves root under the configured directory. Relative roots are
// joined to it; absolute roots must already lie inside it.
func (s *localSource) Confine(root string) (string, error) {
	if s.dir == "" {
		return "", fmt.Errorf("source.dir is not configured: %w", appErr.ErrInvalid)
	}
	base, err := filepath.Abs(s.dir)
	if err != nil {
		return "", fmt.Errorf("resolve source dir: %w", err)
	}
	base = resolveLinks(base)
	if root == "" {
		return base, nil
	}
	target := root
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	target = resolveLinks(filepath.Clean(target))
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("root %q is outside the source directory: %w", root, appErr.ErrInvalid)
	}
	return target, nil
}

// resolveLinks follows symlinks when path exists and returns it unchanged
// otherwise.
func resolveLinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}
