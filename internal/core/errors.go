package core

import (
	"errors"
	"fmt"
)

// Run-level errors. Both abort ProcessDirectory before any file is touched.
var (
	// ErrNotFound means the directory to upload does not exist.
	ErrNotFound = errors.New("upload directory not found")

	// ErrScanIO means the directory could not be enumerated.
	ErrScanIO = errors.New("failed to scan upload directory")
)

// UploadError is a per-file upload failure: a transport or auth error from
// the client, a rejected response, or no response at all.
type UploadError struct {
	Path       string
	Identifier string
	StatusCode int    // 0 when no response arrived
	Detail     string // "HTTP status N", "no valid response", ...
	Err        error  // underlying client error, if any
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload of %s failed: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("upload of %s failed: %s", e.Path, e.Detail)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Reason is the text stored in the progress ledger.
func (e *UploadError) Reason() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Detail
}

// RelocationError is a failure to move an uploaded file into the processed
// folder. The upload itself still counts as successful.
type RelocationError struct {
	Path string
	Err  error
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("failed to move %s to processed folder: %v", e.Path, e.Err)
}

func (e *RelocationError) Unwrap() error { return e.Err }
