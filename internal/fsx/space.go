package fsx

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// spaceSafetyMargin pads the space required for a cross-device copy.
const spaceSafetyMargin = 1.05

// Replaceable so tests can simulate a full disk.
var availableSpaceFunc = availableSpace

// InsufficientSpaceError indicates that a cross-device copy would not fit.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %s, have %s available",
		e.Path, humanize.IBytes(uint64(e.RequiredBytes)), humanize.IBytes(uint64(e.AvailableBytes)))
}

// IsInsufficientSpace reports whether err is an InsufficientSpaceError.
func IsInsufficientSpace(err error) bool {
	var e *InsufficientSpaceError
	return errors.As(err, &e)
}

// checkSpace returns an InsufficientSpaceError when dir's filesystem has
// less than size (plus margin) available. An unknown free size passes.
func checkSpace(dir string, size int64) error {
	available := availableSpaceFunc(dir)
	if available <= 0 {
		return nil
	}
	required := int64(float64(size) * spaceSafetyMargin)
	if available < required {
		return &InsufficientSpaceError{Path: dir, RequiredBytes: required, AvailableBytes: available}
	}
	return nil
}
