package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

var when = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestLoad_MissingFile(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), ".archive_progress.json"), nil)
	l.Load()
	if l.Len() != 0 {
		t.Errorf("Expected empty ledger, got %d entries", l.Len())
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".archive_progress.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	l := Open(path, nil)
	l.Load()
	if l.Len() != 0 {
		t.Errorf("Expected corrupt file to load as empty, got %d entries", l.Len())
	}

	// Recording still works and replaces the corrupt file
	if err := l.Record("/a.pdf", Success("id", when)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	reloaded := Open(path, nil)
	reloaded.Load()
	if !reloaded.IsUploaded("/a.pdf") {
		t.Error("Expected entry after rewrite")
	}
}

func TestRecordPersistsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", ".archive_progress.json")
	l := Open(path, nil)
	l.Load()

	if err := l.Record("/data/libro_ñandú.pdf", Success("jane-libro-20240115", when)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := l.Record("/data/b.mp3", Failure("HTTP status 503", when)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read ledger: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "libro_ñandú") {
		t.Error("Expected non-ASCII key to be written unescaped")
	}
	if !strings.Contains(content, "\n  \"/data/b.mp3\": {\n    \"status\": \"error\"") {
		t.Errorf("Expected 2-space indentation, got:\n%s", content)
	}

	reloaded := Open(path, nil)
	reloaded.Load()
	if !reloaded.IsUploaded("/data/libro_ñandú.pdf") {
		t.Error("Expected success entry after reload")
	}
	if reloaded.IsUploaded("/data/b.mp3") {
		t.Error("Error entry must not count as uploaded")
	}
	e, ok := reloaded.Get("/data/b.mp3")
	if !ok || e.Error != "HTTP status 503" || e.Identifier != "" {
		t.Errorf("Unexpected error entry: %+v", e)
	}
	if ts, ok := e.Time(); !ok || !ts.Equal(when) {
		t.Errorf("Unexpected entry time %v (ok=%v)", ts, ok)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("Temp files left behind: %v", matches)
	}
}

func TestLoad_PythonStyleDates(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".archive_progress.json")
	content := `{
  "/old/book.pdf": {
    "status": "success",
    "identifier": "jane-book-20230101",
    "date": "2023-01-01T12:00:00.123456"
  }
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	l := Open(path, nil)
	l.Load()
	e, ok := l.Get("/old/book.pdf")
	if !ok || e.Status != StatusSuccess {
		t.Fatalf("Expected success entry, got %+v", e)
	}
	ts, ok := e.Time()
	if !ok || ts.Year() != 2023 {
		t.Errorf("Expected parsed 2023 timestamp, got %v", ts)
	}
}

func TestErrorThenSuccessOverwrites(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "p.json"), nil)
	l.Load()

	_ = l.Record("/a.pdf", Failure("boom", when))
	if l.IsUploaded("/a.pdf") {
		t.Fatal("error entry counted as uploaded")
	}
	_ = l.Record("/a.pdf", Success("id", when))
	if !l.IsUploaded("/a.pdf") {
		t.Fatal("success entry not recorded")
	}
	if l.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", l.Len())
	}
}

func TestEntriesSorted(t *testing.T) {
	l := Open(filepath.Join(t.TempDir(), "p.json"), nil)
	for _, p := range []string{"/c", "/a", "/b"} {
		_ = l.Record(p, Success("x", when))
	}
	items := l.Entries()
	if len(items) != 3 || items[0].Path != "/a" || items[1].Path != "/b" || items[2].Path != "/c" {
		t.Errorf("Entries not sorted: %+v", items)
	}
}

func TestSaveFailureKeepsMemory(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be makes rename fail
	path := filepath.Join(dir, "p.json")
	if err := os.MkdirAll(filepath.Join(path, "child"), 0755); err != nil {
		t.Fatal(err)
	}

	l := Open(path, nil)
	if err := l.Record("/a.pdf", Success("id", when)); err == nil {
		t.Fatal("Expected save error")
	}
	if !l.IsUploaded("/a.pdf") {
		t.Error("In-memory entry should stand when save fails")
	}
}

func TestConcurrentRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	l := Open(path, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = l.Record(filepath.Join("/data", string(rune('a'+i))+".pdf"), Success("id", when))
		}(i)
	}
	wg.Wait()

	reloaded := Open(path, nil)
	reloaded.Load()
	if reloaded.Len() != 20 {
		t.Errorf("Expected 20 persisted entries, got %d", reloaded.Len())
	}
}

func TestLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")

	first := Open(path, nil)
	if err := first.Lock(); err != nil {
		t.Fatalf("first Lock failed: %v", err)
	}

	second := Open(path, nil)
	if err := second.Lock(); !errors.Is(err, ErrLocked) {
		t.Fatalf("Expected ErrLocked, got %v", err)
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if err := second.Lock(); err != nil {
		t.Fatalf("Lock after release failed: %v", err)
	}
	_ = second.Unlock()
}
