package constants

import (
	"time"
)

// Well-known files, relative to the working directory unless overridden in config.
const (
	// ProgressFileName - the progress ledger (path -> last upload outcome)
	ProgressFileName = ".archive_progress.json"

	// LogFileName - append-style diagnostic log, mirrored to the console
	LogFileName = ".archive_upload.log"

	// ProcessedDirName - sibling folder successfully uploaded files are moved into.
	// Any path containing this element is excluded from scans.
	ProcessedDirName = "Uploaded"
)

// Metadata defaults
const (
	// DefaultCollection - remote collection used when --collection is not given
	DefaultCollection = "opensource"

	// DefaultLanguage - language tag attached to every item
	DefaultLanguage = "es"

	// DefaultLicenseURL - license attached to every item (CC BY-SA 4.0)
	DefaultLicenseURL = "https://creativecommons.org/licenses/by-sa/4.0/"

	// IdentifierMaxLength - remote identifiers are truncated to this many characters
	IdentifierMaxLength = 100

	// IdentifierFiller - replaces a leading non-alphanumeric identifier character
	IdentifierFiller = 'x'
)

// Parallel driver
const (
	// DefaultWorkers - sequential by default; the CLI path never runs concurrently
	DefaultWorkers = 1

	// MaxWorkers - upper bound for the parallel driver pool
	MaxWorkers = 5

	// DefaultFileTimeout - per-file bound for one orchestrator step in the parallel driver.
	// Large video files on slow links need generous headroom.
	DefaultFileTimeout = 2 * time.Hour
)

// Retry configuration (used by backends that do not bring their own retry policy)
const (
	// MaxRetries - maximum number of retries for transient errors
	MaxRetries = 5

	// RetryInitialDelay - initial delay before first retry (500ms)
	RetryInitialDelay = 500 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (30s)
	RetryMaxDelay = 30 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios
	EventBusMaxBuffer = 5000
)

// UI Updates
const (
	// ProgressRefreshRate - refresh interval for multi-bar rendering (300ms)
	ProgressRefreshRate = 300 * time.Millisecond

	// ProgressThrottle - minimum time between single-bar redraws (100ms)
	ProgressThrottle = 100 * time.Millisecond
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPCheckTimeout - timeout for the backend connectivity check
	HTTPCheckTimeout = 30 * time.Second
)

// Log file rotation (lumberjack)
const (
	LogMaxSizeMB  = 10
	LogMaxBackups = 5
	LogMaxAgeDays = 30
)
