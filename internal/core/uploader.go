// Package core is the upload orchestrator: for each candidate file it
// consults the progress ledger, calls the upload client, records the
// outcome and moves uploaded files into the processed folder.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rescale/archive-uploader/internal/cloud"
	"github.com/rescale/archive-uploader/internal/constants"
	"github.com/rescale/archive-uploader/internal/events"
	"github.com/rescale/archive-uploader/internal/fsx"
	"github.com/rescale/archive-uploader/internal/ledger"
	"github.com/rescale/archive-uploader/internal/logging"
	"github.com/rescale/archive-uploader/internal/media"
	"github.com/rescale/archive-uploader/internal/scan"
)

// Options configures an Uploader. Client and Ledger are required.
type Options struct {
	Author     string
	Collection string // default "opensource"
	Language   string // default "es"
	LicenseURL string // default CC BY-SA 4.0

	// ProcessedDir is the sibling folder uploaded files move into, and the
	// folder name excluded from scans. Default: "Uploaded"
	ProcessedDir string

	Client    cloud.Client
	Ledger    *ledger.Ledger
	Registrar cloud.ListRegistrar // default NoopRegistrar

	// Now is the clock for identifiers, metadata dates, ledger timestamps
	// and relocation suffixes. Default: time.Now
	Now func() time.Time

	Logger   *logging.Logger
	EventBus *events.EventBus // optional
}

// Summary is the outcome of one run.
type Summary struct {
	RunID   string
	Success int // includes files already recorded as uploaded
	Errors  int
	Total   int
	Skipped int // not started because the run was cancelled
}

// Uploader runs the per-file state machine
// Pending -> Skipped | Uploading -> Success | Failed.
// UploadFile is safe for concurrent use.
type Uploader struct {
	author       string
	collection   string
	language     string
	licenseURL   string
	processedDir string

	client    cloud.Client
	ledger    *ledger.Ledger
	registrar cloud.ListRegistrar
	relocator *fsx.Relocator
	now       func() time.Time

	logger   *logging.Logger
	eventBus *events.EventBus
}

// New creates an Uploader.
func New(opts Options) (*Uploader, error) {
	if opts.Client == nil {
		return nil, errors.New("upload client is required")
	}
	if opts.Ledger == nil {
		return nil, errors.New("progress ledger is required")
	}
	if opts.Collection == "" {
		opts.Collection = constants.DefaultCollection
	}
	if opts.ProcessedDir == "" {
		opts.ProcessedDir = constants.ProcessedDirName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Registrar == nil {
		opts.Registrar = cloud.NoopRegistrar{Logger: opts.Logger}
	}

	relocator := fsx.NewRelocator(opts.ProcessedDir)
	relocator.Now = opts.Now

	return &Uploader{
		author:       opts.Author,
		collection:   opts.Collection,
		language:     opts.Language,
		licenseURL:   opts.LicenseURL,
		processedDir: opts.ProcessedDir,
		client:       opts.Client,
		ledger:       opts.Ledger,
		registrar:    opts.Registrar,
		relocator:    relocator,
		now:          opts.Now,
		logger:       opts.Logger,
		eventBus:     opts.EventBus,
	}, nil
}

// Identifier returns the remote identifier path would get right now.
func (u *Uploader) Identifier(path string) string {
	return media.GenerateIdentifier(path, u.author, u.now())
}

// UploadFile uploads one file and reports whether it ended in success.
// A file already recorded as uploaded is skipped and reported as success.
// It never panics and never returns an error: every failure is logged and
// recorded in the ledger as an error entry, leaving the file in place.
func (u *Uploader) UploadFile(ctx context.Context, path string) (ok bool) {
	u.eventBus.PublishFileState(path, "", events.FilePending, "")

	if u.ledger.IsUploaded(path) {
		u.logger.Info().Msgf("Already uploaded, skipping: %s", filepath.Base(path))
		u.eventBus.PublishFileState(path, "", events.FileSkipped, "already uploaded")
		return true
	}

	var identifier string
	defer func() {
		if r := recover(); r != nil {
			u.fail(&UploadError{
				Path:       path,
				Identifier: identifier,
				Err:        fmt.Errorf("panic during upload: %v", r),
			})
			ok = false
		}
	}()

	now := u.now()
	identifier = media.GenerateIdentifier(path, u.author, now)
	md := media.GenerateMetadata(path, media.CategoryFor(path), media.Options{
		Author:     u.author,
		Collection: u.collection,
		Language:   u.language,
		LicenseURL: u.licenseURL,
		Now:        now,
	})

	u.logger.Info().Msgf("Uploading: %s as %s", filepath.Base(path), identifier)
	u.eventBus.PublishFileState(path, identifier, events.FileUploading, "")

	resp, err := u.client.Upload(ctx, identifier, path, md)
	switch {
	case err != nil:
		u.fail(&UploadError{Path: path, Identifier: identifier, Err: err})
		return false
	case resp == nil:
		u.fail(&UploadError{Path: path, Identifier: identifier, Detail: "no valid response"})
		return false
	case !resp.OK:
		detail := fmt.Sprintf("HTTP status %d", resp.StatusCode)
		if resp.Detail != "" {
			detail += ": " + resp.Detail
		}
		u.fail(&UploadError{Path: path, Identifier: identifier, StatusCode: resp.StatusCode, Detail: detail})
		return false
	}

	u.succeed(ctx, path, identifier)
	return true
}

func (u *Uploader) succeed(ctx context.Context, path, identifier string) {
	// Ledger write failures are logged by the ledger and never abort the run
	_ = u.ledger.Record(path, ledger.Success(identifier, u.now()))
	u.logger.Info().Str("identifier", identifier).Msgf("Uploaded: %s", filepath.Base(path))

	if err := u.registrar.Register(ctx, u.collection, identifier); err != nil {
		u.logger.Warn().Err(err).Str("identifier", identifier).Msgf("Could not add item to list %s", u.collection)
	}

	detail := ""
	dst, err := u.relocator.Move(path)
	if err != nil {
		rerr := &RelocationError{Path: path, Err: err}
		msg := "Uploaded but could not move file"
		if fsx.IsInsufficientSpace(err) {
			msg = "Uploaded but the processed folder's disk is full; file left in place"
		}
		u.logger.Error().Err(rerr).Str("path", path).Str("identifier", identifier).Msg(msg)
		detail = rerr.Error()
	} else {
		u.logger.Debug().Str("from", path).Str("to", dst).Msg("file moved")
		detail = dst
	}

	u.eventBus.PublishFileState(path, identifier, events.FileSuccess, detail)
}

func (u *Uploader) fail(uerr *UploadError) {
	_ = u.ledger.Record(uerr.Path, ledger.Failure(uerr.Reason(), u.now()))
	u.logger.Error().Str("identifier", uerr.Identifier).Msgf("Upload failed: %s: %s", filepath.Base(uerr.Path), uerr.Reason())
	u.eventBus.PublishFileState(uerr.Path, uerr.Identifier, events.FileFailed, uerr.Reason())
}

// Candidates scans dir and returns the files to upload in order.
// A missing directory matches ErrNotFound; any other scan failure matches
// ErrScanIO. Candidates that would share an identifier are logged.
func (u *Uploader) Candidates(dir string) ([]scan.Candidate, error) {
	candidates, err := scan.Scan(dir, scan.Options{
		ExcludeDir: u.processedDir,
		Logger:     u.logger.Zerolog(),
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrScanIO, err)
	}

	now := u.now()
	seen := make(map[string]string, len(candidates))
	for _, c := range candidates {
		id := media.GenerateIdentifier(c.Path, u.author, now)
		if prev, dup := seen[id]; dup {
			u.logger.Warn().Str("identifier", id).Msgf("%s and %s map to the same identifier", prev, c.Path)
			continue
		}
		seen[id] = c.Path
	}
	return candidates, nil
}

// ProcessDirectory uploads every candidate under dir, one at a time.
// It stops before the next file once ctx is cancelled and returns the
// partial summary with ctx's error. The summary is always logged.
func (u *Uploader) ProcessDirectory(ctx context.Context, dir string) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}

	candidates, err := u.Candidates(dir)
	if err != nil {
		u.logger.Error().Err(err).Str("directory", dir).Msg("Cannot process directory")
		return summary, err
	}

	summary.Total = len(candidates)
	if summary.Total == 0 {
		u.logger.Warn().Msgf("No files to upload in %s", dir)
		u.LogSummary(summary)
		return summary, nil
	}

	start := time.Now()
	u.logger.Info().Msgf("Found %d files to upload", summary.Total)
	u.eventBus.Publish(&events.RunStartedEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventRunStarted, Time: start},
		RunID:     summary.RunID,
		Total:     summary.Total,
	})

	for i, c := range candidates {
		if err = ctx.Err(); err != nil {
			summary.Skipped = summary.Total - i
			u.logger.Warn().Msgf("Upload cancelled, %d files not started", summary.Skipped)
			break
		}
		if u.UploadFile(ctx, c.Path) {
			summary.Success++
		} else {
			summary.Errors++
		}
	}

	u.LogSummary(summary)
	u.eventBus.Publish(&events.CompleteEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventComplete, Time: time.Now()},
		RunID:     summary.RunID,
		Total:     summary.Total,
		Success:   summary.Success,
		Errors:    summary.Errors,
		Skipped:   summary.Skipped,
		Duration:  time.Since(start),
	})
	return summary, err
}

// LogSummary writes the end-of-run counts.
func (u *Uploader) LogSummary(s Summary) {
	ev := u.logger.Info().Int("success", s.Success).Int("errors", s.Errors).Int("total", s.Total)
	if s.Skipped > 0 {
		ev = ev.Int("skipped", s.Skipped)
	}
	ev.Msgf("Summary: %d uploaded, %d errors, %d total", s.Success, s.Errors, s.Total)
}
