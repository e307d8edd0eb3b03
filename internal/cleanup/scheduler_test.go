package cleanup

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSweepRemovesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "stale.wav")
	fresh := filepath.Join(dir, "fresh.wav")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(dir, time.Minute, 24*time.Hour, log.New(io.Discard, "", 0))
	if got, want := s.Sweep(), 1; got != want {
		t.Fatalf("Sweep() = %d, want %d", got, want)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file still present")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file removed: %v", err)
	}
}

func TestSweepEmptyDir(t *testing.T) {
	s := NewScheduler(t.TempDir(), time.Minute, time.Hour, log.New(io.Discard, "", 0))
	if got := s.Sweep(); got != 0 {
		t.Errorf("Sweep() = %d, want 0", got)
	}
}
