// Package archive uploads items to the Internet Archive through its
// S3-like API: one PUT per file to {endpoint}/{identifier}/{filename}, with
// item metadata carried in x-archive-meta-* headers.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	nethttp "net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/rescale/archive-uploader/internal/cloud"
	"github.com/rescale/archive-uploader/internal/config"
	"github.com/rescale/archive-uploader/internal/constants"
	"github.com/rescale/archive-uploader/internal/logging"
	"github.com/rescale/archive-uploader/internal/media"
)

// ErrMissingCredentials is returned when access or secret key is empty.
var ErrMissingCredentials = errors.New("archive access key and secret key are required")

// ErrUnauthorized is returned by Check when the keys are rejected.
var ErrUnauthorized = errors.New("archive credentials rejected")

// maxErrorBody bounds how much of an error response is read for diagnostics.
const maxErrorBody = 64 * 1024

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client is the Internet Archive backend.
type Client struct {
	endpoint   string
	accessKey  string
	secretKey  string
	httpClient *retryablehttp.Client
	logger     *logging.Logger
}

// New creates an archive client on top of httpClient.
func New(cfg config.ArchiveConfig, httpClient *nethttp.Client, logger *logging.Logger) (*Client, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrMissingCredentials
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = config.DefaultArchiveEndpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid archive endpoint %q: %w", endpoint, err)
	}

	retryClient := retryablehttp.NewClient()
	if httpClient != nil {
		retryClient.HTTPClient = httpClient
	}
	retryClient.RetryMax = constants.MaxRetries
	retryClient.RetryWaitMin = constants.RetryInitialDelay
	retryClient.RetryWaitMax = constants.RetryMaxDelay
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand the final response back instead of a generic "giving up" error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		endpoint:   endpoint,
		accessKey:  cfg.AccessKey,
		secretKey:  cfg.SecretKey,
		httpClient: retryClient,
		logger:     logger,
	}, nil
}

// Name returns "archive".
func (c *Client) Name() string { return config.BackendArchive }

func (c *Client) itemURL(identifier, filePath string) string {
	return c.endpoint + "/" + url.PathEscape(identifier) + "/" + url.PathEscape(filepath.Base(filePath))
}

func (c *Client) authorize(req *retryablehttp.Request) {
	req.Header.Set("Authorization", "LOW "+c.accessKey+":"+c.secretKey)
}

// Upload PUTs filePath as a new item named identifier.
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

	// *os.File is an io.ReadSeeker, so retries rewind instead of buffering
	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodPut, c.itemURL(identifier, filePath), f)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.ContentLength = info.Size()

	c.authorize(req)
	req.Header.Set("x-amz-auto-make-bucket", "1")
	req.Header.Set("x-archive-size-hint", strconv.FormatInt(info.Size(), 10))
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath))); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	for k, v := range md.Headers() {
		req.Header.Set(k, v)
	}

	timer := cloud.StartTimer(nil, "archive upload "+filepath.Base(filePath))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()
	timer.StopWithThroughput(info.Size())

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &cloud.Response{OK: true, StatusCode: resp.StatusCode}, nil
	}

	detail := parseErrorBody(io.LimitReader(resp.Body, maxErrorBody))
	c.logger.Debug().Int("status", resp.StatusCode).Str("identifier", identifier).Str("detail", detail).Msg("archive rejected upload")
	return &cloud.Response{OK: false, StatusCode: resp.StatusCode, Detail: detail}, nil
}

// Check asks the endpoint to list the caller's buckets, which fails for bad keys.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.HTTPCheckTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet, c.endpoint+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to build check request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("archive endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == nethttp.StatusUnauthorized || resp.StatusCode == nethttp.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d %s", ErrUnauthorized, resp.StatusCode, parseErrorBody(io.LimitReader(resp.Body, maxErrorBody)))
	default:
		return fmt.Errorf("archive check failed: HTTP %d %s", resp.StatusCode, parseErrorBody(io.LimitReader(resp.Body, maxErrorBody)))
	}
}

// parseErrorBody extracts "Code: Message" from an S3-style XML error, or the
// visible text of an HTML error page.
func parseErrorBody(r io.Reader) string {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return ""
	}

	code := strings.TrimSpace(doc.Find("error > code").First().Text())
	msg := strings.TrimSpace(doc.Find("error > message").First().Text())
	switch {
	case code != "" && msg != "":
		return code + ": " + msg
	case code != "":
		return code
	case msg != "":
		return msg
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

var _ cloud.Client = (*Client)(nil)
