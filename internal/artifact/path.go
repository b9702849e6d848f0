package artifact

import (
	"path"
	"path/filepath"
	"strings"

	rerrors "github.com/meow-stack/runscope/internal/errors"
)

// CleanRelPath validates rel as a path relative to a run directory and
// returns it in forward-slash form. The run directory itself is "". Paths
// are rejected, never clamped: any ".." segment, absolute or volume
// prefix, or NUL byte fails with PathTraversalRejected before the
// filesystem is consulted.
func CleanRelPath(runID, rel string) (string, error) {
	reject := func(reason string) (string, error) {
		return "", rerrors.PathTraversal(runID, rel, reason)
	}

	if strings.ContainsRune(rel, 0) {
		return reject("path contains a NUL byte")
	}

	slashed := strings.ReplaceAll(rel, `\`, "/")
	switch {
	case strings.HasPrefix(slashed, "/"):
		return reject("absolute paths are not allowed")
	case hasDrivePrefix(slashed):
		return reject("volume prefixes are not allowed")
	case filepath.IsAbs(rel) || filepath.VolumeName(rel) != "":
		return reject("absolute paths are not allowed")
	}

	var parts []string
	for _, seg := range strings.Split(slashed, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return reject("parent directory segments are not allowed")
		}
		parts = append(parts, seg)
	}
	return path.Join(parts...), nil
}

// hasDrivePrefix reports a Windows drive letter such as "C:".
func hasDrivePrefix(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
