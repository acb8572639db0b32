// Package providers creates the upload client selected by configuration.
package providers

import (
	"context"
	"fmt"

	"github.com/rescale/archive-uploader/internal/cloud"
	"github.com/rescale/archive-uploader/internal/cloud/providers/archive"
	"github.com/rescale/archive-uploader/internal/cloud/providers/azure"
	"github.com/rescale/archive-uploader/internal/cloud/providers/gcs"
	"github.com/rescale/archive-uploader/internal/cloud/providers/s3"
	"github.com/rescale/archive-uploader/internal/config"
	internalhttp "github.com/rescale/archive-uploader/internal/http"
	"github.com/rescale/archive-uploader/internal/logging"
)

// New creates the cloud.Client for cfg.Backend.Type. All HTTP-based
// backends share one client built from the proxy settings.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (cloud.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.ValidateBackend(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	httpClient, err := internalhttp.CreateOptimizedClient(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	backend := cfg.Backend.Type
	if backend == "" {
		backend = config.BackendArchive
	}
	logger.Debug().Str("backend", backend).Str("proxy_mode", cfg.Proxy.Mode).Msg("Creating upload client")

	switch backend {
	case config.BackendArchive:
		return archive.New(cfg.Archive, httpClient, logger)
	case config.BackendS3:
		return s3.New(ctx, cfg.S3, httpClient, logger)
	case config.BackendAzure:
		return azure.New(cfg.Azure, httpClient, logger)
	case config.BackendGCS:
		return gcs.New(ctx, cfg.GCS, logger)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, backend)
	}
}
