// Package store is the content-addressed side of the pipeline: audio
// blobs deduplicated by SHA-256 fingerprint, transcriptions and
// translations held as immutable versioned-string chains, and the
// phrase/recording rows that tie them together.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/altlab/recval/internal/normalize"
	"github.com/altlab/recval/internal/types"
)

// Store wraps the SQLite database and the on-disk blob directory.
type Store struct {
	db      *sql.DB
	blobDir string
	now     func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS versioned_strings (
	id TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	provenance_id TEXT NOT NULL,
	previous_id TEXT,
	author_name TEXT NOT NULL,
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vs_provenance ON versioned_strings(provenance_id);

CREATE TABLE IF NOT EXISTS phrases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	transcription_id TEXT NOT NULL REFERENCES versioned_strings(id),
	translation_id TEXT REFERENCES versioned_strings(id),
	origin TEXT,
	contained_within INTEGER REFERENCES phrases(id)
);

CREATE INDEX IF NOT EXISTS idx_phrase_transcription ON phrases(transcription_id);

CREATE TABLE IF NOT EXISTS recordings (
	fingerprint TEXT PRIMARY KEY,
	phrase_id INTEGER NOT NULL REFERENCES phrases(id),
	session TEXT NOT NULL,
	speaker TEXT,
	quality TEXT,
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audio_blobs (
	fingerprint TEXT PRIMARY KEY,
	byte_size INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
`

// Open opens (or creates) the database and blob directory.
func Open(dbPath, blobDir string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: avoids SQLITE_BUSY under concurrent writers and
	// keeps ":memory:" databases from splitting per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		db.Close()
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Store{db: db, blobDir: blobDir, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Identify computes the canonical content hash for any byte sequence:
// SHA-256, hex-encoded, 64 characters.
func Identify(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// BlobPath is where the raw audio for a fingerprint lives on disk.
func (s *Store) BlobPath(fingerprint string) string {
	return filepath.Join(s.blobDir, fingerprint+".wav")
}

// PutAudio fingerprints the blob and stores it once per unique hash.
// created=false means a byte-identical blob was already stored; nothing
// is touched. The fingerprint row is inserted with a single conflict-
// ignoring statement, so two concurrent writers of the same bytes
// cannot both believe they were first.
func (s *Store) PutAudio(b []byte) (fingerprint string, created bool, err error) {
	fingerprint = Identify(b)

	res, err := s.db.Exec(`
		INSERT INTO audio_blobs (fingerprint, byte_size, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fingerprint, len(b), s.now())
	if err != nil {
		return "", false, fmt.Errorf("register blob: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if n == 0 {
		return fingerprint, false, nil
	}

	if err := os.WriteFile(s.BlobPath(fingerprint), b, 0644); err != nil {
		return "", false, fmt.Errorf("write blob %s: %w", fingerprint, err)
	}
	return fingerprint, true, nil
}

// PutString normalizes the value, builds a root node (previous == nil)
// or a derived node, and persists it. Values that normalize to empty
// are rejected with ErrEmptyValue.
func (s *Store) PutString(value, author string, previous *VersionedString) (VersionedString, error) {
	var (
		node VersionedString
		err  error
	)
	if previous == nil {
		node, err = NewVersionedString(value, author, s.now())
	} else {
		node, err = previous.Derive(value, author, s.now())
	}
	if err != nil {
		return VersionedString{}, err
	}
	if err := s.insertVersionedString(node); err != nil {
		return VersionedString{}, err
	}
	return node, nil
}

func (s *Store) insertVersionedString(v VersionedString) error {
	_, err := s.db.Exec(`
		INSERT INTO versioned_strings (id, value, provenance_id, previous_id, author_name, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, v.ID, v.Value, v.ProvenanceID, nullable(v.PreviousID), v.AuthorName, v.Timestamp)
	if err != nil {
		return fmt.Errorf("insert versioned string: %w", err)
	}
	return nil
}

// GetVersionedString loads one node by its content hash.
func (s *Store) GetVersionedString(id string) (VersionedString, error) {
	row := s.db.QueryRow(`
		SELECT id, value, provenance_id, previous_id, author_name, timestamp
		FROM versioned_strings WHERE id = ?
	`, id)
	return scanVersionedString(row)
}

// History returns every node in one edit chain, oldest first, by
// following previous_id links forward from the root.
func (s *Store) History(provenanceID string) ([]VersionedString, error) {
	rows, err := s.db.Query(`
		SELECT id, value, provenance_id, previous_id, author_name, timestamp
		FROM versioned_strings WHERE provenance_id = ?
	`, provenanceID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	byPrevious := make(map[string]VersionedString)
	var root *VersionedString
	for rows.Next() {
		v, err := scanVersionedString(rows)
		if err != nil {
			return nil, err
		}
		if v.IsRoot() {
			node := v
			root = &node
		} else {
			byPrevious[v.PreviousID] = v
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}

	history := []VersionedString{*root}
	for {
		next, ok := byPrevious[history[len(history)-1].ID]
		if !ok {
			break
		}
		history = append(history, next)
	}
	return history, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersionedString(row rowScanner) (VersionedString, error) {
	var (
		v        VersionedString
		previous sql.NullString
	)
	if err := row.Scan(&v.ID, &v.Value, &v.ProvenanceID, &previous, &v.AuthorName, &v.Timestamp); err != nil {
		return VersionedString{}, fmt.Errorf("scan versioned string: %w", err)
	}
	if previous.Valid {
		v.PreviousID = previous.String
	}
	return v, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetOrCreatePhrase finds the phrase holding this transcription, or
// creates it with fresh root versioned strings. Matching is on the
// normalized transcription value and kind, so re-running an extraction
// reuses the phrases it created the first time. An empty translation
// leaves the reference unset rather than storing an empty string.
func (s *Store) GetOrCreatePhrase(kind types.PhraseKind, transcription, translation, author string) (int64, error) {
	normalized := normalize.Utterance(transcription)
	if normalized == "" {
		return 0, ErrEmptyValue
	}

	var id int64
	err := s.db.QueryRow(`
		SELECT p.id FROM phrases p
		JOIN versioned_strings v ON v.id = p.transcription_id
		WHERE p.type = ? AND v.value = ?
	`, string(kind), normalized).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("look up phrase: %w", err)
	}

	transcriptionNode, err := s.PutString(transcription, author, nil)
	if err != nil {
		return 0, err
	}
	var translationID any
	if !normalize.IsBlank(translation) {
		translationNode, err := s.PutString(translation, author, nil)
		if err != nil {
			return 0, err
		}
		translationID = translationNode.ID
	}

	res, err := s.db.Exec(`
		INSERT INTO phrases (type, transcription_id, translation_id)
		VALUES (?, ?, ?)
	`, string(kind), transcriptionNode.ID, translationID)
	if err != nil {
		return 0, fmt.Errorf("insert phrase: %w", err)
	}
	return res.LastInsertId()
}

// UpdatePhrase edits a phrase's transcription or translation. The
// existing versioned string is never touched: a new node is derived and
// the phrase reference rebound to it.
func (s *Store) UpdatePhrase(phraseID int64, field, value, author string) (VersionedString, error) {
	if field != "transcription" && field != "translation" {
		return VersionedString{}, fmt.Errorf("unknown phrase field %q", field)
	}
	column := field + "_id"

	var current sql.NullString
	err := s.db.QueryRow(
		`SELECT `+column+` FROM phrases WHERE id = ?`, phraseID,
	).Scan(&current)
	if err != nil {
		return VersionedString{}, fmt.Errorf("load phrase %d: %w", phraseID, err)
	}

	var node VersionedString
	if current.Valid {
		previous, err := s.GetVersionedString(current.String)
		if err != nil {
			return VersionedString{}, err
		}
		node, err = s.PutString(value, author, &previous)
		if err != nil {
			return VersionedString{}, err
		}
	} else {
		// The phrase never had this field; start a fresh chain.
		node, err = s.PutString(value, author, nil)
		if err != nil {
			return VersionedString{}, err
		}
	}

	if _, err := s.db.Exec(
		`UPDATE phrases SET `+column+` = ? WHERE id = ?`, node.ID, phraseID,
	); err != nil {
		return VersionedString{}, fmt.Errorf("rebind phrase %d: %w", phraseID, err)
	}
	return node, nil
}

// PhraseFieldHistory returns the full edit history of one phrase field,
// oldest first.
func (s *Store) PhraseFieldHistory(phraseID int64, field string) ([]VersionedString, error) {
	if field != "transcription" && field != "translation" {
		return nil, fmt.Errorf("unknown phrase field %q", field)
	}
	var current sql.NullString
	err := s.db.QueryRow(
		`SELECT `+field+`_id FROM phrases WHERE id = ?`, phraseID,
	).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("load phrase %d: %w", phraseID, err)
	}
	if !current.Valid {
		return nil, nil
	}
	node, err := s.GetVersionedString(current.String)
	if err != nil {
		return nil, err
	}
	return s.History(node.ProvenanceID)
}

// AddRecording binds a deduplicated blob to a phrase. Idempotent:
// re-associating the same fingerprint never creates a second row.
// startMS is the offset where the phrase starts in the master file.
func (s *Store) AddRecording(fingerprint string, phraseID int64, session, speaker string, quality types.RecordingQuality, startMS int) (created bool, err error) {
	res, err := s.db.Exec(`
		INSERT INTO recordings (fingerprint, phrase_id, session, speaker, quality, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fingerprint, phraseID, session, speaker, nullable(string(quality)), startMS)
	if err != nil {
		return false, fmt.Errorf("insert recording: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordingResult is one hit from the recordings search.
type RecordingResult struct {
	Wordform    string `json:"wordform"`
	Translation string `json:"translation"`
	Type        string `json:"type"`
	Speaker     string `json:"speaker"`
	Session     string `json:"session"`
	Fingerprint string `json:"fingerprint"`
}

// SearchRecordings finds recordings whose current transcription equals
// any of the given normalized wordforms.
func (s *Store) SearchRecordings(wordforms []string, limit int) ([]RecordingResult, error) {
	if len(wordforms) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(wordforms))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(wordforms)+1)
	for _, w := range wordforms {
		args = append(args, normalize.Utterance(w))
	}
	args = append(args, limit)

	rows, err := s.db.Query(`
		SELECT tv.value, COALESCE(lv.value, ''), p.type, COALESCE(r.speaker, ''), r.session, r.fingerprint
		FROM recordings r
		JOIN phrases p ON p.id = r.phrase_id
		JOIN versioned_strings tv ON tv.id = p.transcription_id
		LEFT JOIN versioned_strings lv ON lv.id = p.translation_id
		WHERE tv.value IN (`+placeholders+`)
		ORDER BY r.session, r.timestamp
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("search recordings: %w", err)
	}
	defer rows.Close()

	var results []RecordingResult
	for rows.Next() {
		var r RecordingResult
		if err := rows.Scan(&r.Wordform, &r.Translation, &r.Type, &r.Speaker, &r.Session, &r.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
