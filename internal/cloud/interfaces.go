// Package cloud defines the upload client collaborator and the list
// registrar used by the upload orchestrator. Concrete backends live under
// providers/.
package cloud

import (
	"context"
	"path/filepath"

	"github.com/rescale/archive-uploader/internal/logging"
	"github.com/rescale/archive-uploader/internal/media"
)

// Response is the outcome of one upload call that reached the remote side.
type Response struct {
	// OK is true for a 2xx answer.
	OK bool

	// StatusCode is the HTTP status, or 0 if the backend did not report one.
	StatusCode int

	// Detail carries the remote error code/message for non-OK responses.
	Detail string
}

// Client uploads one file as one remote item.
//
// A transport or authentication failure before any response is returned as
// an error. A response that arrived but was not successful is returned as a
// Response with OK=false. Implementations must be safe for concurrent use.
type Client interface {
	// Upload sends filePath as item identifier with the given metadata.
	Upload(ctx context.Context, identifier, filePath string, md media.Metadata) (*Response, error)

	// Check verifies that the backend is reachable and the credentials work.
	Check(ctx context.Context) error

	// Name identifies the backend in logs ("archive", "s3", ...).
	Name() string
}

// ListRegistrar adds an uploaded item to a named list on the remote side.
type ListRegistrar interface {
	Register(ctx context.Context, list, identifier string) error
}

// NoopRegistrar only logs the registration it would perform.
type NoopRegistrar struct {
	Logger *logging.Logger
}

// Register logs the intent and returns nil.
func (r NoopRegistrar) Register(_ context.Context, list, identifier string) error {
	if r.Logger != nil {
		r.Logger.Info().Str("list", list).Str("identifier", identifier).Msg("Item would be added to list (registration is not performed)")
	}
	return nil
}

// ObjectKey is the storage key used by blob-store backends: "{identifier}/{file name}".
func ObjectKey(identifier, filePath string) string {
	return identifier + "/" + filepath.Base(filePath)
}
