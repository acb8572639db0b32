package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rescale/archive-uploader/internal/cloud/providers"
	"github.com/rescale/archive-uploader/internal/config"
	"github.com/rescale/archive-uploader/internal/constants"
	"github.com/rescale/archive-uploader/internal/core"
	"github.com/rescale/archive-uploader/internal/events"
	"github.com/rescale/archive-uploader/internal/ledger"
	"github.com/rescale/archive-uploader/internal/logging"
	"github.com/rescale/archive-uploader/internal/media"
	"github.com/rescale/archive-uploader/internal/progress"
	"github.com/rescale/archive-uploader/internal/scan"
	"github.com/rescale/archive-uploader/internal/transfer"
)

// ErrMissingAuthor is returned when neither the command line nor the
// configuration names an author.
var ErrMissingAuthor = errors.New("author is required (pass it after the directory or set [uploader] author)")

type uploadOptions struct {
	collection string
	resume     bool
	workers    int
	timeout    time.Duration
	dryRun     bool
}

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	var opts uploadOptions

	cmd := &cobra.Command{
		Use:   "upload <directory> [author]",
		Short: "Upload every supported file in a directory",
		Long: `Upload every supported file below <directory> as its own archive item.

Each file gets an identifier "<author>-<file name>-<YYYYMMDD>" and metadata
(title, creator, collection, media type, language, license, date,
description, subjects). Outcomes are written to the progress file after
every file; files already recorded as uploaded are skipped, so re-running
the same command resumes an interrupted upload. Uploaded files are moved
into an "Uploaded" folder next to them.

Files run one at a time unless --workers is greater than 1.

Examples:
  # Upload a folder of books
  archive-uploader upload ~/Biblioteca "Jane Doe"

  # Preview identifiers without uploading
  archive-uploader upload ~/Biblioteca "Jane Doe" --dry-run

  # Three files at a time, at most 30 minutes each
  archive-uploader upload ~/Videos "Jane Doe" --workers 3 --timeout 30m`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.collection, "collection", constants.DefaultCollection, "Remote collection for every item")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Resume a previous run (always on: uploaded files are skipped)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", constants.DefaultWorkers, fmt.Sprintf("Files uploaded at once (1-%d)", constants.MaxWorkers))
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-file timeout when --workers > 1 (default from config, 2h)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "List files and identifiers without uploading")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string, opts uploadOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := args[0]
	author := cfg.Uploader.Author
	if len(args) > 1 {
		author = args[1]
	}
	author = strings.TrimSpace(author)
	if author == "" {
		return ErrMissingAuthor
	}

	flags := cmd.Flags()
	if flags.Changed("collection") || cfg.Uploader.Collection == "" {
		cfg.Uploader.Collection = opts.collection
	}
	if flags.Changed("workers") {
		cfg.Uploader.Workers = opts.workers
	}
	timeout := cfg.FileTimeout()
	if flags.Changed("timeout") {
		if opts.timeout <= 0 {
			return errors.New("--timeout must be positive")
		}
		timeout = opts.timeout
	}

	if opts.dryRun {
		return runDryRun(cmd.OutOrStdout(), cfg, dir, author)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := commandContext(cmd)
	console := cmd.OutOrStdout()

	log := logging.New(logging.Options{
		Console:  console,
		FilePath: cfg.LogFilePath(logFile),
	})
	defer log.Close()

	led := ledger.Open(cfg.ProgressFilePath(progressFile), log)
	if err := led.Lock(); err != nil {
		return err
	}
	defer led.Unlock()
	led.Load()
	if opts.resume {
		log.Info().Msgf("Resuming: %d files already recorded in %s", led.Len(), led.Path())
	}

	client, err := providers.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create %s client: %w", cfg.Backend.Type, err)
	}
	if closer, ok := client.(io.Closer); ok {
		defer closer.Close()
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	defer bus.Close()

	uploader, err := core.New(core.Options{
		Author:       author,
		Collection:   cfg.Uploader.Collection,
		Language:     cfg.Uploader.Language,
		LicenseURL:   cfg.Uploader.LicenseURL,
		ProcessedDir: cfg.Uploader.ProcessedDir,
		Client:       client,
		Ledger:       led,
		Logger:       log,
		EventBus:     bus,
	})
	if err != nil {
		return err
	}

	workers := cfg.Uploader.Workers
	log.Info().
		Str("backend", client.Name()).
		Str("collection", cfg.Uploader.Collection).
		Int("workers", workers).
		Msgf("Uploading %s as %s", dir, author)

	reporter := progress.New(outputFile(console), workers > 1)
	if !reporter.IsTerminal() {
		reporter = progress.NewNoOpProgress(console)
	}
	stop := progress.Watch(bus, reporter)
	log.SetOutput(reporter.Writer())
	finish := func() {
		stop()
		log.SetOutput(console)
		if n := bus.DroppedEvents(); n > 0 {
			log.Debug().Int64("dropped", n).Msg("Progress display missed events")
		}
	}

	if workers <= 1 {
		_, err := uploader.ProcessDirectory(ctx, dir)
		finish()
		return uploadResult(err)
	}

	candidates, err := uploader.Candidates(dir)
	if err != nil {
		finish()
		return uploadResult(err)
	}
	if len(candidates) == 0 {
		finish()
		log.Warn().Msgf("No files to upload in %s", dir)
		uploader.LogSummary(core.Summary{})
		return nil
	}

	driver := transfer.NewDriver(workers, timeout, bus, log)
	stats := driver.Run(ctx, scan.Paths(candidates), uploader.UploadFile)
	finish()

	if stats.TimedOut > 0 {
		log.Warn().Msgf("%d files did not finish within %s and will be retried on the next run", stats.TimedOut, timeout)
		for _, task := range driver.Queue().Tasks() {
			if task.TimedOut() {
				log.Warn().Str("path", task.Path).Msgf("Timed out: %s", task.Name)
			}
		}
	}
	return uploadResult(ctx.Err())
}

// uploadResult maps a run error to the command's error. Per-file failures
// never reach here; they are recorded in the progress file.
func uploadResult(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrNotFound):
		return err
	case errors.Is(err, core.ErrScanIO):
		return err
	default:
		return fmt.Errorf("upload interrupted: %w", err)
	}
}

// runDryRun prints what would be uploaded. It needs no credentials and
// writes nothing.
func runDryRun(out io.Writer, cfg *config.Config, dir, author string) error {
	candidates, err := scan.Scan(dir, scan.Options{ExcludeDir: cfg.Uploader.ProcessedDir})
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Fprintf(out, "No files to upload in %s\n", dir)
		return nil
	}

	now := time.Now()
	rows := make([][]string, 0, len(candidates))
	var total int64
	for _, c := range candidates {
		rel, err := filepath.Rel(dir, c.Path)
		if err != nil {
			rel = c.Path
		}
		rows = append(rows, []string{
			rel,
			media.GenerateIdentifier(c.Path, author, now),
			c.Category.MediaType(),
			humanize.IBytes(uint64(c.Size)),
		})
		total += c.Size
	}

	fmt.Fprintln(out, renderTable(
		[]string{"File", "Identifier", "Media type", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		[]string{fmt.Sprintf("%d files", len(candidates)), "", "", humanize.IBytes(uint64(total))},
	))
	fmt.Fprintf(out, "Collection: %s (dry run, nothing uploaded)\n", cfg.Uploader.Collection)
	return nil
}
