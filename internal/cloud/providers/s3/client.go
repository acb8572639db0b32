// Package s3 stores items in an S3 (or S3-compatible) bucket under
// "{identifier}/{file name}", with item metadata as object user metadata.
package s3

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rescale/archive-uploader/internal/cloud"
	"github.com/rescale/archive-uploader/internal/config"
	"github.com/rescale/archive-uploader/internal/constants"
	internalhttp "github.com/rescale/archive-uploader/internal/http"
	"github.com/rescale/archive-uploader/internal/logging"
	"github.com/rescale/archive-uploader/internal/media"
)

// Client is the S3 backend.
type Client struct {
	bucket string
	s3     *s3.Client
	retry  internalhttp.RetryConfig
	logger *logging.Logger
}

// New creates an S3 client. Static keys are used when configured; otherwise
// the default AWS credential chain applies.
func New(ctx context.Context, cfg config.S3Config, httpClient *nethttp.Client, logger *logging.Logger) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, config.ErrMissingS3Bucket
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if httpClient != nil {
		if hc := sdkHTTPClient(httpClient); hc != nil {
			opts = append(opts, awsconfig.WithHTTPClient(hc))
		} else {
			logger.Warn().Msg("AWS_CA_BUNDLE is set; S3 requests bypass the NTLM proxy")
		}
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	// Our own retry loop owns backoff; the SDK should fail fast
	awsCfg.RetryMaxAttempts = 1

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	retry := internalhttp.DefaultRetryConfig()
	retry.OnRetry = func(attempt int, err error, errType internalhttp.ErrorType) {
		logger.Warn().Int("attempt", attempt).Str("type", internalhttp.ErrorTypeName(errType)).Err(err).Msg("Retrying S3 request")
	}

	return &Client{bucket: cfg.Bucket, s3: client, retry: retry, logger: logger}, nil
}

// sdkHTTPClient carries the shared transport settings into a BuildableClient
// so the SDK can still layer AWS_CA_BUNDLE onto it. A transport that is not
// an *http.Transport (the NTLM negotiator) is passed through unless a CA
// bundle is configured, in which case nil is returned and the SDK default
// client is used.
func sdkHTTPClient(c *nethttp.Client) awsconfig.HTTPClient {
	shared, ok := c.Transport.(*nethttp.Transport)
	if !ok {
		if c.Transport != nil && os.Getenv("AWS_CA_BUNDLE") != "" {
			return nil
		}
		if c.Transport != nil {
			return c
		}
		return awshttp.NewBuildableClient()
	}
	return awshttp.NewBuildableClient().WithTransportOptions(func(tr *nethttp.Transport) {
		tr.Proxy = shared.Proxy
		tr.MaxIdleConns = shared.MaxIdleConns
		tr.MaxIdleConnsPerHost = shared.MaxIdleConnsPerHost
		tr.MaxConnsPerHost = shared.MaxConnsPerHost
		tr.IdleConnTimeout = shared.IdleConnTimeout
		tr.TLSHandshakeTimeout = shared.TLSHandshakeTimeout
		tr.ExpectContinueTimeout = shared.ExpectContinueTimeout
		tr.DisableCompression = shared.DisableCompression
		tr.ForceAttemptHTTP2 = shared.ForceAttemptHTTP2
		if !shared.ForceAttemptHTTP2 {
			tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
		}
		if shared.TLSClientConfig != nil {
			tlsCfg := shared.TLSClientConfig.Clone()
			tlsCfg.NextProtos = nil
			tr.TLSClientConfig = tlsCfg
		}
	})
}

// Name returns "s3".
func (c *Client) Name() string { return config.BackendS3 }

// Upload stores filePath as {identifier}/{base name}.
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
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		ContentLength: aws.Int64(info.Size()),
		Metadata:      md.Map(),
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath))); ct != "" {
		input.ContentType = aws.String(ct)
	}

	timer := cloud.StartTimer(nil, "s3 upload "+key)
	err = internalhttp.ExecuteWithRetry(ctx, c.retry, func(ctx context.Context) error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to rewind %s: %w", filePath, err)
		}
		input.Body = f
		_, err := c.s3.PutObject(ctx, input)
		return err
	})
	timer.StopWithThroughput(info.Size())

	if err != nil {
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			return &cloud.Response{OK: false, StatusCode: respErr.HTTPStatusCode(), Detail: respErr.Err.Error()}, nil
		}
		return nil, fmt.Errorf("s3 upload of %s failed: %w", key, err)
	}
	return &cloud.Response{OK: true, StatusCode: nethttp.StatusOK}, nil
}

// Check issues HeadBucket against the configured bucket.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.HTTPCheckTimeout)
	defer cancel()

	if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("cannot access bucket %s: %w", c.bucket, err)
	}
	return nil
}

var _ cloud.Client = (*Client)(nil)
