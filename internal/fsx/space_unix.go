//go:build unix

package fsx

import "golang.org/x/sys/unix"

// availableSpace returns the bytes available to unprivileged users on dir's
// filesystem, or 0 if unknown.
func availableSpace(dir string) int64 {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0
	}
	return int64(stat.Bavail) * int64(stat.Bsize)
}
