package http

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rescale/archive-uploader/internal/constants"
)

// ErrorType represents different classes of errors for retry strategy
type ErrorType int

const (
	// ErrorTypeSuccess indicates operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential indicates authentication/authorization failure (401, 403, bad keys)
	ErrorTypeCredential
	// ErrorTypeNetwork indicates network/connection issues (timeouts, connection refused, etc.)
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates server errors that can be retried (500, 502, 503, throttling)
	ErrorTypeRetryable
	// ErrorTypeFatal indicates client errors that should not be retried (400, 404, invalid request)
	ErrorTypeFatal
)

// RetryConfig holds retry parameters for ExecuteWithRetry
type RetryConfig struct {
	// MaxRetries is the maximum number of attempts
	MaxRetries int
	// InitialDelay is the base delay for exponential backoff
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// OnRetry is an optional callback invoked before each retry attempt
	OnRetry func(attempt int, err error, errorType ErrorType)
}

// DefaultRetryConfig returns the retry policy used by the SDK-backed providers.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   constants.MaxRetries,
		InitialDelay: constants.RetryInitialDelay,
		MaxDelay:     constants.RetryMaxDelay,
	}
}

// ClassifyError determines the error type for retry strategy.
// Credential errors are not retried: upload keys do not refresh themselves.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ErrorTypeFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeNetwork
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "expired") ||
		strings.Contains(errStr, "invalid token") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "accessdenied") ||
		strings.Contains(errStr, "access denied") ||
		strings.Contains(errStr, "invalidaccesskeyid") ||
		strings.Contains(errStr, "signaturedoesnotmatch") ||
		strings.Contains(errStr, "authentication failed") ||
		strings.Contains(errStr, "authenticationfailed") ||
		strings.Contains(errStr, "invalid sas") ||
		strings.Contains(errStr, "signature not valid") {
		return ErrorTypeCredential
	}

	if strings.Contains(errStr, "tls handshake timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "timeout") {
		return ErrorTypeNetwork
	}

	if strings.Contains(errStr, "requesttimeout") ||
		strings.Contains(errStr, "internalerror") ||
		strings.Contains(errStr, "serviceunavailable") ||
		strings.Contains(errStr, "slowdown") ||
		strings.Contains(errStr, "throttl") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "serverbusy") ||
		strings.Contains(errStr, "server busy") ||
		strings.Contains(errStr, "service unavailable") {
		return ErrorTypeRetryable
	}

	// Unknown errors are fatal to avoid retrying something that will never succeed
	return ErrorTypeFatal
}

// CalculateBackoff returns exponential backoff duration with full jitter
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay || base <= 0 {
		base = maxDelay
	}

	return time.Duration(rand.Int63n(int64(base)))
}

// ExecuteWithRetry runs an operation, retrying network and server errors with
// exponential backoff. Credential and fatal errors return immediately, as does
// context cancellation (including during a backoff wait).
func ExecuteWithRetry(ctx context.Context, cfg RetryConfig, operation func(ctx context.Context) error) error {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		errType := ClassifyError(err)
		if errType == ErrorTypeFatal || errType == ErrorTypeCredential {
			return err
		}

		if attempt < cfg.MaxRetries-1 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt+1, err, errType)
			}
			backoff := CalculateBackoff(attempt+1, cfg.InitialDelay, cfg.MaxDelay)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxRetries, lastErr)
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
