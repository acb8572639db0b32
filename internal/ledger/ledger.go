// Package ledger persists the per-file upload outcome so that a run can be
// resumed: files recorded as successful are never uploaded again.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/rescale/archive-uploader/internal/logging"
)

// ErrLocked is returned by Lock when another process holds the ledger.
var ErrLocked = errors.New("progress file is in use by another process")

// Status is the outcome recorded for a file.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry is the record stored for one file path.
type Entry struct {
	Status     Status `json:"status"`
	Identifier string `json:"identifier,omitempty"`
	Error      string `json:"error,omitempty"`
	Date       string `json:"date"`
}

// Time parses Date. Both RFC 3339 and zone-less ISO 8601 timestamps are accepted.
func (e Entry) Time() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, e.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Success builds a success entry.
func Success(identifier string, at time.Time) Entry {
	return Entry{Status: StatusSuccess, Identifier: identifier, Date: at.Format(time.RFC3339)}
}

// Failure builds an error entry.
func Failure(detail string, at time.Time) Entry {
	return Entry{Status: StatusError, Error: detail, Date: at.Format(time.RFC3339)}
}

// Item is a path and its entry.
type Item struct {
	Path string
	Entry
}

// Ledger is the path -> Entry mapping backed by a JSON file.
// All methods are safe for concurrent use; every Record is persisted
// while the ledger's own lock is held.
type Ledger struct {
	path    string
	entries map[string]Entry
	mu      sync.RWMutex
	logger  *logging.Logger
	flock   *flock.Flock
}

// Open returns an empty ledger bound to path. Call Load to read it.
func Open(path string, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ledger{
		path:    path,
		entries: make(map[string]Entry),
		logger:  logger,
	}
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Load replaces the in-memory mapping with the file's contents.
// A missing file yields an empty ledger. An unreadable or corrupt file also
// yields an empty ledger; the problem is logged and the run continues.
func (l *Ledger) Load() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make(map[string]Entry)

	data, err := os.ReadFile(l.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn().Err(err).Str("path", l.path).Msg("Progress file unreadable, starting fresh")
		}
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		l.logger.Warn().Err(err).Str("path", l.path).Msg("Progress file unreadable, starting fresh")
		return
	}
	if entries != nil {
		l.entries = entries
	}
	l.logger.Debug().Int("entries", len(l.entries)).Str("path", l.path).Msg("progress loaded")
}

// Save writes the full mapping to disk.
func (l *Ledger) Save() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.saveUnlocked()
}

// saveUnlocked writes the mapping through a temp file and an atomic rename.
// Caller must hold at least RLock on l.mu.
func (l *Ledger) saveUnlocked() error {
	err := l.write()
	if err != nil {
		l.logger.Error().Err(err).Str("path", l.path).Msg("Failed to save progress")
	}
	return err
}

func (l *Ledger) write() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l.entries); err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create progress directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp progress file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write progress: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp progress file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("failed to rename progress file: %w", err)
	}

	success = true
	return nil
}

// Record stores entry for path and persists immediately.
// The in-memory update stands even if persisting fails.
func (l *Ledger) Record(path string, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[path] = entry
	return l.saveUnlocked()
}

// IsUploaded reports whether path has a success entry.
func (l *Ledger) IsUploaded(path string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[path]
	return ok && e.Status == StatusSuccess
}

// Get returns the entry for path.
func (l *Ledger) Get(path string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[path]
	return e, ok
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a snapshot sorted by path.
func (l *Ledger) Entries() []Item {
	l.mu.RLock()
	defer l.mu.RUnlock()

	items := make([]Item, 0, len(l.entries))
	for p, e := range l.entries {
		items = append(items, Item{Path: p, Entry: e})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items
}

// Lock takes an advisory lock on "<path>.lock" so only one process writes
// the ledger at a time. It returns ErrLocked if another process holds it.
func (l *Ledger) Lock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.flock == nil {
		if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
			return fmt.Errorf("failed to create progress directory: %w", err)
		}
		l.flock = flock.New(l.path + ".lock")
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock progress file: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLocked, l.path)
	}
	return nil
}

// Unlock releases the lock taken by Lock.
func (l *Ledger) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.flock == nil {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock progress file: %w", err)
	}
	return nil
}
