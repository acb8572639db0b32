// Package logging provides structured logging for the uploader.
//
// Every line goes to the console (colour only on a terminal) and, when a log
// file is configured, to a rotated plain-text file in the
// "timestamp - LEVEL - message" layout. An attached event bus receives each
// line as a LogEvent so a UI goroutine can render it.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rescale/archive-uploader/internal/constants"
	"github.com/rescale/archive-uploader/internal/events"
)

// Options configures a Logger.
type Options struct {
	// Console receives human-readable output. Defaults to os.Stdout.
	Console io.Writer

	// FilePath enables the rotated log file when non-empty.
	FilePath string

	// EventBus, when set, receives every line as a LogEvent.
	EventBus *events.EventBus
}

// Logger wraps zerolog with console, file and event bus outputs.
type Logger struct {
	zlog     zerolog.Logger
	eventBus *events.EventBus
	console  io.Writer
	file     *lumberjack.Logger
	mu       sync.Mutex
}

// New creates a logger from opts.
func New(opts Options) *Logger {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	l := &Logger{
		eventBus: opts.EventBus,
		console:  console,
	}
	if opts.FilePath != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    constants.LogMaxSizeMB,
			MaxBackups: constants.LogMaxBackups,
			MaxAge:     constants.LogMaxAgeDays,
		}
	}
	l.rebuild()
	return l
}

// NewDefaultCLILogger creates a console-only logger on stdout.
func NewDefaultCLILogger() *Logger {
	return New(Options{})
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zlog: zerolog.Nop(), console: io.Discard}
}

func (l *Logger) rebuild() {
	writers := []io.Writer{consoleWriter(l.console)}
	if l.file != nil {
		writers = append(writers, FileWriter(l.file))
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp()
	zl := ctx.Logger()
	if l.eventBus != nil {
		zl = zl.Hook(busHook{bus: l.eventBus})
	}
	l.zlog = zl
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		NoColor:    !IsTerminal(out),
	}
}

// FileWriter renders events as "2006-01-02 15:04:05 - LEVEL - message key=value".
func FileWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: "2006-01-02 15:04:05",
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			zerolog.MessageFieldName,
		},
		FormatLevel: func(i interface{}) string {
			s, _ := i.(string)
			return "- " + levelName(s) + " -"
		},
	}
}

func levelName(s string) string {
	switch s {
	case "warn":
		return "WARNING"
	case "":
		return "INFO"
	default:
		return strings.ToUpper(s)
	}
}

// IsTerminal reports whether w is a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type busHook struct {
	bus *events.EventBus
}

func (h busHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if msg == "" || level == zerolog.NoLevel {
		return
	}
	h.bus.PublishLog(toEventLevel(level), msg)
}

func toEventLevel(level zerolog.Level) events.LogLevel {
	switch {
	case level <= zerolog.DebugLevel:
		return events.DebugLevel
	case level == zerolog.InfoLevel:
		return events.InfoLevel
	case level == zerolog.WarnLevel:
		return events.WarnLevel
	default:
		return events.ErrorLevel
	}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Zerolog exposes the underlying logger for packages that take a *zerolog.Logger.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zlog
}

// With creates a child logger with additional context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// SetOutput changes the console writer, e.g. to route lines above progress bars.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = w
	l.rebuild()
}

// Output returns the current console writer.
func (l *Logger) Output() io.Writer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.console
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// Debugf logs a debug message with printf-style formatting.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// SetVerbose switches between info (default) and debug output.
func SetVerbose(verbose bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
