package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/rescale/archive-uploader/internal/constants"
)

// UploadUI manages concurrent upload progress bars using mpb: one overall
// file counter plus a spinner per file in flight.
type UploadUI struct {
	progress *mpb.Progress
	overall  *mpb.Bar
	bars     map[string]*mpb.Bar // path -> spinner
	mu       sync.Mutex
	total    int
	finished bool
}

// NewUploadUI creates a multi-bar reporter writing to out.
func NewUploadUI(out io.Writer) *UploadUI {
	return &UploadUI{
		progress: mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressRefreshRate),
			mpb.WithWidth(60),
		),
		bars: make(map[string]*mpb.Bar),
	}
}

// Start adds the overall bar.
func (u *UploadUI) Start(total int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.total = total
	u.overall = u.progress.New(int64(total),
		mpb.BarStyle().
			Lbound("[").
			Filler("█").
			Tip("█").
			Padding("░").
			Rbound("]"),
		mpb.BarPriority(0),
		mpb.PrependDecorators(
			decor.Name("Uploading", decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)
}

// FileStarted adds a spinner for path below the overall bar.
func (u *UploadUI) FileStarted(path string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return
	}
	if _, ok := u.bars[path]; ok {
		return
	}
	label := truncatePath(path, 2)
	if info, err := os.Stat(path); err == nil {
		label = fmt.Sprintf("%s (%s)", label, humanize.IBytes(uint64(info.Size())))
	}
	u.bars[path] = u.progress.New(0,
		mpb.SpinnerStyle(),
		mpb.BarPriority(1+len(u.bars)),
		mpb.PrependDecorators(decor.Name(label, decor.WCSyncSpaceR)),
		mpb.AppendDecorators(decor.Elapsed(decor.ET_STYLE_GO)),
		mpb.BarRemoveOnComplete(),
	)
}

// FileFinished completes the spinner for path, prints a result line above
// the bars and advances the overall counter.
func (u *UploadUI) FileFinished(path string, ok bool, detail string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return
	}
	if bar, found := u.bars[path]; found {
		if ok {
			bar.SetTotal(-1, true)
		} else {
			bar.Abort(true)
		}
		delete(u.bars, path)
	}

	mark := "✓"
	if !ok {
		mark = "✗"
	}
	line := fmt.Sprintf("%s %s", mark, truncatePath(path, 2))
	if detail != "" {
		line += ": " + detail
	}
	fmt.Fprintln(u.progress, line)

	if u.overall != nil {
		u.overall.Increment()
	}
}

// Finish aborts leftover spinners and an unfinished overall bar, then waits
// for mpb to flush.
func (u *UploadUI) Finish() {
	u.mu.Lock()
	if u.finished {
		u.mu.Unlock()
		return
	}
	u.finished = true
	for path, bar := range u.bars {
		bar.Abort(true)
		delete(u.bars, path)
	}
	// A cancelled run leaves the overall bar short of its total; abort it
	// in place so Wait returns with the last count still shown.
	if u.overall != nil && !u.overall.Completed() {
		u.overall.Abort(false)
	}
	u.mu.Unlock()
	u.progress.Wait()
}

// Writer returns an io.Writer that safely prints above the progress bars.
func (u *UploadUI) Writer() io.Writer {
	return u.progress
}

// IsTerminal returns true.
func (u *UploadUI) IsTerminal() bool { return true }

// truncatePath truncates a file path to show only the last N components
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(strings.Trim(filepath.ToSlash(path), "/"), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	relevant := parts[len(parts)-maxComponents:]
	return "…/" + strings.Join(relevant, "/")
}

// enableANSIOnWindows enables Virtual Terminal processing on Windows for ANSI escape sequences
func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}
