package cloud

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// TimingEnabled reports whether ARCHIVE_UPLOADER_TIMING=1 is set. When it
// is, backends print per-upload durations and throughput.
func TimingEnabled() bool {
	return os.Getenv("ARCHIVE_UPLOADER_TIMING") == "1"
}

// Timer tracks elapsed time for a named phase.
// Stop and its variants are idempotent; only the first call prints.
type Timer struct {
	name    string
	start   time.Time
	w       io.Writer
	stopped int32
}

// StartTimer creates a timer writing to w (os.Stderr if nil).
func StartTimer(w io.Writer, name string) *Timer {
	if w == nil {
		w = os.Stderr
	}
	return &Timer{name: name, start: time.Now(), w: w}
}

// Stop prints the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if atomic.CompareAndSwapInt32(&t.stopped, 0, 1) && TimingEnabled() {
		fmt.Fprintf(t.w, "[TIMING] %s: %v\n", t.name, elapsed)
	}
	return elapsed
}

// StopWithThroughput prints the elapsed time with size and rate.
func (t *Timer) StopWithThroughput(bytes int64) time.Duration {
	elapsed := time.Since(t.start)
	if atomic.CompareAndSwapInt32(&t.stopped, 0, 1) && TimingEnabled() {
		fmt.Fprintf(t.w, "[TIMING] %s: %v (total %s at %s)\n",
			t.name, elapsed, FormatBytes(bytes), FormatSpeed(float64(bytes)/elapsed.Seconds()))
	}
	return elapsed
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatSpeed returns a human-readable rate.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec < 0 || bytesPerSec != bytesPerSec {
		bytesPerSec = 0
	}
	return humanize.IBytes(uint64(bytesPerSec)) + "/s"
}
