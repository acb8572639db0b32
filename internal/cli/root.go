// Package cli provides the command-line interface for archive-uploader.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rescale/archive-uploader/internal/config"
	"github.com/rescale/archive-uploader/internal/logging"
	"github.com/rescale/archive-uploader/internal/version"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	debug        bool
	logFile      string // overrides [uploader] log_file
	progressFile string // overrides [uploader] progress_file

	// Global logger
	logger *logging.Logger
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "archive-uploader",
		Short: "Upload a directory of books, audio, video and images to a public archive",
		Long: `archive-uploader ` + version.Version + ` - Built: ` + version.BuildTime + `
Scans a directory for supported media, uploads every file as its own
archive item with generated metadata, records each outcome in a progress
file so interrupted runs can resume, and moves uploaded files into an
"Uploaded" folder next to them.

Supported files:
  books   .pdf .epub .mobi .txt .doc .docx
  audio   .mp3 .wav .flac .m4a .ogg
  video   .mp4 .avi .mkv .mov .webm
  images  .jpg .jpeg .png .gif .tiff`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetVerbose(verbose || debug)
			logger = logging.New(logging.Options{Console: cmd.OutOrStdout()})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (default .archive_upload.log)")
	rootCmd.PersistentFlags().StringVar(&progressFile, "progress-file", "", "Progress file path (default .archive_progress.json)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	AddCommands(rootCmd)
	return rootCmd
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// Execute runs the CLI. The context is cancelled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// loadConfig reads --config (or the default path) and reports a readable error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// commandContext returns the command's context, or Background when run
// without ExecuteContext (tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// outputFile returns w as an *os.File when it is one, for TTY detection.
func outputFile(w io.Writer) *os.File {
	if f, ok := w.(*os.File); ok {
		return f
	}
	return nil
}
