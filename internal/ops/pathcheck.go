package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/hpungsan/smartqr/internal/config"
	"github.com/hpungsan/smartqr/internal/db"
	"github.com/hpungsan/smartqr/internal/errors"
)

// ExportExt is the only extension accepted for import/export files.
const ExportExt = ".jsonl"

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // import
	PathCheckWrite                      // export
)

// ValidatePath checks an import/export path.
//
// Always: no ".." components, a .jsonl extension, and the file itself is not
// a symlink. Unless cfg.AllowUnsafePaths is set, the file must also sit
// directly in ~/.smartqr/exports or an allowed_paths entry, and that parent
// must not be a symlink. Read mode additionally requires the file to exist.
func ValidatePath(path string, mode PathCheckMode, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ExportExt {
		return errors.NewInvalidRequest("path must have " + ExportExt + " extension")
	}
	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		if err := checkParentDir(filepath.Dir(absPath), cfg); err != nil {
			return err
		}
	}

	info, statErr := os.Lstat(absPath)
	if mode == PathCheckRead && os.IsNotExist(statErr) {
		return errors.NewFileNotFound(path)
	}
	if statErr == nil && isSymlink(info) {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// checkParentDir requires dir to be exactly one of the allowed directories.
// Subdirectories are refused so no intermediate component can be swapped.
func checkParentDir(dir string, cfg *config.Config) error {
	allowed, err := allowedDirs(cfg)
	if err != nil {
		return err
	}
	if !lo.Contains(allowed, filepath.Clean(dir)) {
		return errors.NewInvalidRequest(fmt.Sprintf(
			"file must be directly in an allowed directory (no subdirectories); allowed: %v", allowed))
	}
	if info, err := os.Lstat(dir); err == nil && isSymlink(info) {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	return nil
}

// allowedDirs returns the exports directory plus the absolute allowed_paths
// entries. Entries that are symlinks are resolved to their target.
func allowedDirs(cfg *config.Config) ([]string, error) {
	exports, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}

	dirs := []string{exports}
	if cfg != nil {
		dirs = append(dirs, lo.Filter(cfg.AllowedPaths, func(p string, _ int) bool {
			return filepath.IsAbs(p)
		})...)
	}

	resolved := make([]string, 0, len(dirs))
	for _, d := range dirs {
		d = filepath.Clean(d)
		if info, err := os.Lstat(d); err == nil && isSymlink(info) {
			target, err := filepath.EvalSymlinks(d)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			d = target
		}
		resolved = append(resolved, d)
	}
	return resolved, nil
}

func isSymlink(info os.FileInfo) bool {
	return info.Mode()&os.ModeSymlink != 0
}

// DefaultExportsDir returns the default exports directory (~/.smartqr/exports).
func DefaultExportsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(homeDir, config.DirName, db.ExportsDirName), nil
}

// containsTraversal reports a ".." component, splitting on both the OS
// separator and '/'.
func containsTraversal(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	return lo.Contains(parts, "..")
}

var dashRun = regexp.MustCompile(`-{2,}`)

// SanitizeForFilename makes s safe as a filename stem: separators and ".."
// become dashes, control characters are dropped, dash runs collapse.
// An empty result becomes "unnamed".
func SanitizeForFilename(s string) string {
	s = strings.NewReplacer("/", "-", `\`, "-", "..", "-").Replace(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	s = strings.Trim(dashRun.ReplaceAllString(s, "-"), "-")
	return lo.Ternary(s == "", "unnamed", s)
}
