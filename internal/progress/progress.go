// Package progress draws upload progress in the terminal. Workers never
// touch the display: they publish events, and Watch feeds them to a
// Reporter from one goroutine.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/rescale/archive-uploader/internal/constants"
)

// New picks a reporter for out: nothing when out is not a terminal, a
// single file-count bar for sequential runs, multi-bar output otherwise.
func New(out *os.File, parallel bool) Reporter {
	if out == nil {
		return NewNoOpProgress(nil)
	}
	if !term.IsTerminal(int(out.Fd())) {
		return NewNoOpProgress(out)
	}
	enableANSIOnWindows(out)
	if parallel {
		return NewUploadUI(out)
	}
	return NewCLIProgress(out)
}

// CLIProgress shows one bar counting files, described by the current file.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
	mu  sync.Mutex
}

// NewCLIProgress creates a sequential reporter writing to out.
func NewCLIProgress(out io.Writer) *CLIProgress {
	return &CLIProgress{out: out}
}

// Start initializes the progress bar with the number of files.
func (p *CLIProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Uploading"),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(constants.ProgressThrottle),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// FileStarted shows the file name as the bar description.
func (p *CLIProgress) FileStarted(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Describe(truncatePath(path, 2))
	}
}

// FileFinished advances the bar by one file.
func (p *CLIProgress) FileFinished(string, bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Writer returns a writer that clears the bar before each write so log
// lines do not interleave with it.
func (p *CLIProgress) Writer() io.Writer {
	return &clearingWriter{p: p}
}

// IsTerminal returns true.
func (p *CLIProgress) IsTerminal() bool { return true }

type clearingWriter struct {
	p *CLIProgress
}

func (w *clearingWriter) Write(b []byte) (int, error) {
	w.p.mu.Lock()
	defer w.p.mu.Unlock()
	if w.p.bar != nil {
		_ = w.p.bar.Clear()
	}
	n, err := w.p.out.Write(b)
	if w.p.bar != nil && !w.p.bar.IsFinished() {
		_ = w.p.bar.RenderBlank()
	}
	return n, err
}
