// Package azure stores items as block blobs in an Azure container
// addressed by a SAS URL.
package azure

import (
	"context"
	"errors"
	"fmt"
	"mime"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/rescale/archive-uploader/internal/cloud"
	"github.com/rescale/archive-uploader/internal/config"
	"github.com/rescale/archive-uploader/internal/constants"
	"github.com/rescale/archive-uploader/internal/logging"
	"github.com/rescale/archive-uploader/internal/media"
)

// Client is the Azure Blob backend.
type Client struct {
	container *container.Client
	logger    *logging.Logger
}

// New creates a container client from a SAS URL.
func New(cfg config.AzureConfig, httpClient *nethttp.Client, logger *logging.Logger) (*Client, error) {
	if cfg.ContainerURL == "" {
		return nil, config.ErrMissingAzureContainer
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	opts := &container.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    constants.MaxRetries,
				RetryDelay:    constants.RetryInitialDelay,
				MaxRetryDelay: constants.RetryMaxDelay,
			},
		},
	}
	if httpClient != nil {
		opts.Transport = httpClient
	}

	client, err := container.NewClientWithNoCredential(cfg.ContainerURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure container client: %w", err)
	}
	return &Client{container: client, logger: logger}, nil
}

// Name returns "azure".
func (c *Client) Name() string { return config.BackendAzure }

// Upload stores filePath as the block blob {identifier}/{base name}.
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
	opts := &blockblob.UploadFileOptions{
		Metadata: blobMetadata(md),
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath))); ct != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &ct}
	}

	timer := cloud.StartTimer(nil, "azure upload "+key)
	_, err = c.container.NewBlockBlobClient(key).UploadFile(ctx, f, opts)
	timer.StopWithThroughput(info.Size())

	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			return &cloud.Response{OK: false, StatusCode: respErr.StatusCode, Detail: respErr.ErrorCode}, nil
		}
		return nil, fmt.Errorf("azure upload of %s failed: %w", key, err)
	}
	return &cloud.Response{OK: true, StatusCode: nethttp.StatusCreated}, nil
}

// Check reads the container properties.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.HTTPCheckTimeout)
	defer cancel()

	if _, err := c.container.GetProperties(ctx, nil); err != nil {
		return fmt.Errorf("cannot access container: %w", err)
	}
	return nil
}

// blobMetadata converts item metadata to Azure's pointer map. Azure
// metadata names must be C# identifiers, which all our keys already are.
func blobMetadata(md media.Metadata) map[string]*string {
	m := md.Map()
	out := make(map[string]*string, len(m))
	for k, v := range m {
		v := v
		out[k] = &v
	}
	return out
}

var _ cloud.Client = (*Client)(nil)
