//go:build windows

package fsutil

func isNotDir(err error) bool {
	return false
}
