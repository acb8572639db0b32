//go:build !unix && !windows

package fsx

func isEXDEV(error) bool { return false }

func availableSpace(string) int64 { return 0 }
