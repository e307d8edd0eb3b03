// Package cleanup sweeps stale scratch files left behind by interrupted
// extraction or transcoding runs.
package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// Scheduler periodically removes old files from a scratch directory.
// Content-addressed blobs and transcoded audio are never touched; only
// the temp dir is swept.
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	logger   *log.Logger
	stopChan chan struct{}

	now func() time.Time
}

// NewScheduler builds a sweeper for tempDir. Files older than maxAge
// are removed every interval.
func NewScheduler(tempDir string, interval, maxAge time.Duration, logger *log.Logger) *Scheduler {
	return &Scheduler{
		tempDir:  tempDir,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start sweeps once immediately, then keeps sweeping on a ticker until
// Stop is called.
func (s *Scheduler) Start() {
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	s.logger.Printf("cleanup scheduler started (interval: %s, max age: %s)", s.interval, s.maxAge)
}

// Stop halts the periodic sweep.
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// Sweep removes files in the temp dir older than maxAge and returns
// how many were deleted.
func (s *Scheduler) Sweep() int {
	now := s.now()

	var deleted int
	var freed int64

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}
		size := info.Size()
		if err := os.Remove(path); err != nil {
			s.logger.Printf("failed to delete stale file %s: %v", path, err)
			return nil
		}
		deleted++
		freed += size
		return nil
	})
	if err != nil {
		s.logger.Printf("error during cleanup sweep: %v", err)
	}

	if deleted > 0 {
		s.logger.Printf("cleanup: %d files deleted, %.2fMB freed", deleted, float64(freed)/(1024*1024))
	}
	return deleted
}

// EnsureTempDirExists creates the scratch directory if missing.
func EnsureTempDirExists(tempDir string) error {
	return os.MkdirAll(tempDir, 0755)
}
