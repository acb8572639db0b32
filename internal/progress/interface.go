package progress

import (
	"io"
	"os"
)

// Reporter renders run progress. All methods are called from the single
// goroutine started by Watch; implementations need not be thread-safe
// except for Writer, which loggers use concurrently.
type Reporter interface {
	// Start announces the number of files in the run.
	Start(total int)

	// FileStarted marks path as being uploaded.
	FileStarted(path string)

	// FileFinished marks path as done. detail is the failure reason or the
	// relocation target.
	FileFinished(path string, ok bool, detail string)

	// Finish tears the display down. It is called once.
	Finish()

	// Writer returns an io.Writer that safely outputs above the progress bars.
	Writer() io.Writer

	// IsTerminal returns true if progress bars are active.
	IsTerminal() bool
}

// NoOpProgress is a reporter that draws nothing (non-TTY output, --dry-run).
type NoOpProgress struct {
	out io.Writer
}

// NewNoOpProgress creates a reporter whose Writer is out (os.Stdout if nil).
func NewNoOpProgress(out io.Writer) *NoOpProgress {
	if out == nil {
		out = os.Stdout
	}
	return &NoOpProgress{out: out}
}

func (p *NoOpProgress) Start(int) {}
func (p *NoOpProgress) FileStarted(string) {}
func (p *NoOpProgress) FileFinished(string, bool, string) {}
func (p *NoOpProgress) Finish() {}
func (p *NoOpProgress) Writer() io.Writer { return p.out }
func (p *NoOpProgress) IsTerminal() bool { return false }
