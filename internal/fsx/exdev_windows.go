//go:build windows

package fsx

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

func isEXDEV(err error) bool {
	if errors.Is(err, windows.ERROR_NOT_SAME_DEVICE) {
		return true
	}
	var le *os.LinkError
	return errors.As(err, &le) && errors.Is(le.Err, windows.ERROR_NOT_SAME_DEVICE)
}
