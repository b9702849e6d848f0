// Package fsutil provides file system utility functions shared by the
// resolution layer.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Within reports whether target is base itself or lies beneath it.
// Both paths must be absolute; they are compared lexically after cleaning.
func Within(base, target string) bool {
	base = filepath.Clean(base)
	target = filepath.Clean(target)
	if base == target {
		return true
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// RealWithin resolves symlinks in both paths and reports whether target's
// real location lies under base's real location. A target that does not
// exist yields fs.ErrNotExist.
func RealWithin(base, target string) (string, bool, error) {
	realBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		return "", false, err
	}
	realTarget, err := filepath.EvalSymlinks(target)
	if err != nil {
		return "", false, err
	}
	return realTarget, Within(realBase, realTarget), nil
}

// IsSymlink reports whether path itself is a symbolic link.
func IsSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&fs.ModeSymlink != 0
}

// IsNotExist reports whether err means the path is absent. A path component
// that is a regular file (ENOTDIR) counts as absent.
func IsNotExist(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	var pe *fs.PathError
	if errors.As(err, &pe) && isNotDir(pe.Err) {
		return true
	}
	return false
}
