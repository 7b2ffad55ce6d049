package persistence

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcherFiresOnChangeWhenDBFileIsWritten(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	if err := os.WriteFile(dbPath, []byte("initial"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls int32
	w, err := NewWatcher(dbPath, func() { atomic.AddInt32(&calls, 1) }, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	if err := os.WriteFile(dbPath, []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&calls) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if atomic.LoadInt32(&calls) == 0 {
		t.Error("expected onChange to fire after the watched db file was written")
	}
}

func TestWatcherIgnoresUnrelatedFilesInTheSameDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	if err := os.WriteFile(dbPath, []byte("initial"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls int32
	w, err := NewWatcher(dbPath, func() { atomic.AddInt32(&calls, 1) }, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("noise"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(watchDebounce + 200*time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("onChange should not fire for writes to files other than the watched db")
	}
}
