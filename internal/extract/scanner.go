package extract

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/altlab/recval/internal/types"
)

// SessionHandler processes one paired (annotation, audio) file.
// Returning an error fails that session only; the scan continues.
type SessionHandler func(session Session, speaker, gridPath, wavPath string) error

// DuplicateSessionError means two directories parsed to the same
// session identity. Merging them would corrupt provenance, so this
// stops the scan.
type DuplicateSessionError struct {
	Session  string
	Dir      string
	FirstDir string
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("session %s found in both %s and %s", e.Session, e.FirstDir, e.Dir)
}

// Scanner walks a directory tree of recording sessions and hands each
// (TextGrid, wav) pair to its handler.
type Scanner struct {
	handler  SessionHandler
	speakers map[string]string // session ID -> speaker code
	logger   *log.Logger

	seen  map[string]string // session ID -> directory already scanned
	Stats types.ScanStats
}

// NewScanner builds a scanner. speakers may be nil; sessions without a
// code get the placeholder "???".
func NewScanner(handler SessionHandler, speakers map[string]string, logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.Default()
	}
	return &Scanner{
		handler:  handler,
		speakers: speakers,
		logger:   logger,
		seen:     make(map[string]string),
	}
}

// Scan visits every immediate subdirectory of root. Missing audio and
// unparseable directory names are logged and skipped; a handler error
// fails that session only; a duplicate session identity aborts the
// scan. Content committed by earlier sessions stays valid either way.
func (s *Scanner) Scan(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("read session root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			s.logger.Printf("rejecting %s; not a directory", entry.Name())
			continue
		}
		dir := filepath.Join(root, entry.Name())

		session, err := ParseSession(entry.Name())
		if err != nil {
			s.logger.Printf("skipping %s: %v", dir, err)
			s.Stats.FatalSessions++
			continue
		}

		if first, ok := s.seen[session.ID()]; ok {
			return &DuplicateSessionError{Session: session.ID(), Dir: dir, FirstDir: first}
		}
		s.seen[session.ID()] = dir

		if err := s.scanSession(session, dir); err != nil {
			s.logger.Printf("session %s failed: %v", session.ID(), err)
			s.Stats.FatalSessions++
			continue
		}
		s.Stats.Sessions++
	}
	return nil
}

func (s *Scanner) scanSession(session Session, dir string) error {
	grids, err := filepath.Glob(filepath.Join(dir, "*.TextGrid"))
	if err != nil {
		return err
	}
	s.logger.Printf("scanning %s: %d text grids", dir, len(grids))

	speaker := s.speakers[session.ID()]
	if speaker == "" {
		speaker = "???"
	}

	for _, gridPath := range grids {
		wavPath := strings.TrimSuffix(gridPath, filepath.Ext(gridPath)) + ".wav"
		if _, err := os.Stat(wavPath); err != nil {
			s.logger.Printf("no paired audio for %s; skipping", gridPath)
			s.Stats.MissingAudio++
			continue
		}
		if err := s.handler(session, speaker, gridPath, wavPath); err != nil {
			return fmt.Errorf("extract %s: %w", gridPath, err)
		}
	}
	return nil
}
