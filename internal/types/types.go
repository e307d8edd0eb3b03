package types

import "time"

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// PhraseKind says whether a phrase is a single word or an example sentence.
type PhraseKind string

const (
	KindWord     PhraseKind = "word"
	KindSentence PhraseKind = "sentence"
)

// RecordingQuality tags how usable a recording is.
type RecordingQuality string

const (
	QualityClean    RecordingQuality = "clean"
	QualityUnusable RecordingQuality = "unusable"
)

// ElicitationOrigin says how a phrase got into the database in the first place.
type ElicitationOrigin string

const (
	OriginMaskwacis  ElicitationOrigin = "maskwacîs"
	OriginRapidWords ElicitationOrigin = "rapid_words"
	OriginSentence   ElicitationOrigin = "sentence"
)

// Candidate is one word or sentence carved out of a master recording,
// before it has any stored identity. Transcription and Translation are
// always NFC-normalized by the extractor.
type Candidate struct {
	Kind          PhraseKind
	Transcription string
	Translation   string
	StartMS       int
	EndMS         int
	Session       string
	Speaker       string
}

// ScanStats is the run report for one pass over a session tree.
type ScanStats struct {
	Sessions      int
	Words         int
	Sentences     int
	SkippedBlank  int
	MissingAudio  int
	Deduplicated  int
	FatalSessions int
}

// ProgressEvent is broadcast over the websocket feed as sessions complete.
type ProgressEvent struct {
	Session   string    `json:"session"`
	Words     int       `json:"words"`
	Sentences int       `json:"sentences"`
	At        time.Time `json:"at"`
}
