//go:build windows

package fsx

import "golang.org/x/sys/windows"

// availableSpace returns the bytes available to the caller on dir's volume,
// or 0 if unknown.
func availableSpace(dir string) int64 {
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0
	}
	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return 0
	}
	return int64(free)
}
