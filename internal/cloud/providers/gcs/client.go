// Package gcs stores items in a Google Cloud Storage bucket under
// "{identifier}/{file name}".
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/rescale/archive-uploader/internal/cloud"
	"github.com/rescale/archive-uploader/internal/config"
	"github.com/rescale/archive-uploader/internal/constants"
	"github.com/rescale/archive-uploader/internal/logging"
	"github.com/rescale/archive-uploader/internal/media"
)

// Client is the GCS backend.
type Client struct {
	bucket string
	client *storage.Client
	logger *logging.Logger
}

// New creates a GCS client. Without a credentials file, Application
// Default Credentials are used.
func New(ctx context.Context, cfg config.GCSConfig, logger *logging.Logger) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, config.ErrMissingGCSBucket
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.ExpandPath(cfg.CredentialsFile)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &Client{bucket: cfg.Bucket, client: client, logger: logger}, nil
}

// Name returns "gcs".
func (c *Client) Name() string { return config.BackendGCS }

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Upload streams filePath to {identifier}/{base name} and verifies the stored size.
func (c *Client) Upload(ctx context.Context, identifier, filePath string, md media.Metadata) (*cloud.Response, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	key := cloud.ObjectKey(identifier, filePath)
	obj := c.client.Bucket(c.bucket).Object(key)

	// Cancelling the context aborts the write; Close reports the outcome
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := obj.NewWriter(wctx)
	w.Metadata = md.Map()
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath))); ct != "" {
		w.ContentType = ct
	}

	timer := cloud.StartTimer(nil, "gcs upload "+key)
	if _, err := io.Copy(w, f); err != nil {
		cancel()
		_ = w.Close()
		return c.result(key, err)
	}
	if err := w.Close(); err != nil {
		return c.result(key, err)
	}
	timer.StopWithThroughput(info.Size())

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return c.result(key, err)
	}
	if attrs.Size != info.Size() {
		return &cloud.Response{
			OK:     false,
			Detail: fmt.Sprintf("size mismatch: local=%d remote=%d", info.Size(), attrs.Size),
		}, nil
	}
	return &cloud.Response{OK: true, StatusCode: nethttp.StatusOK}, nil
}

func (c *Client) result(key string, err error) (*cloud.Response, error) {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &cloud.Response{OK: false, StatusCode: apiErr.Code, Detail: apiErr.Message}, nil
	}
	return nil, fmt.Errorf("gcs upload of %s failed: %w", key, err)
}

// Check reads the bucket attributes.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.HTTPCheckTimeout)
	defer cancel()

	if _, err := c.client.Bucket(c.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("cannot access bucket %s: %w", c.bucket, err)
	}
	return nil
}

var _ cloud.Client = (*Client)(nil)
