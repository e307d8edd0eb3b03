package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/altlab/recval/internal/normalize"
)

// ErrEmptyValue rejects strings that normalize to nothing. Callers must
// supply real content; an empty value is never silently coerced.
var ErrEmptyValue = errors.New("versioned string value is empty after normalization")

// VersionedString is one immutable node in a string's edit history.
// Editing never mutates a node: it creates a new node whose PreviousID
// points at its predecessor and whose ProvenanceID stays pinned to the
// chain's root. The ID is a SHA-256 digest of the node's canonical
// serialization, so every observable change produces a new identity.
type VersionedString struct {
	ID           string
	Value        string
	ProvenanceID string
	PreviousID   string // empty on a root node
	AuthorName   string
	Timestamp    time.Time
}

const showDateLayout = "2006-01-02T15:04:05-0700"

// IsRoot reports whether this node starts its chain.
func (v *VersionedString) IsRoot() bool { return v.ID == v.ProvenanceID }

// Show serializes the node git-object style: header fields in a fixed
// order, a blank line, then the raw value. This is the exact byte
// sequence the ID is computed over.
func (v *VersionedString) Show() string {
	var b strings.Builder
	if v.ProvenanceID != "" && v.ProvenanceID != v.ID {
		fmt.Fprintf(&b, "provenance %s\n", v.ProvenanceID)
	}
	if v.PreviousID != "" {
		fmt.Fprintf(&b, "previous %s\n", v.PreviousID)
	}
	fmt.Fprintf(&b, "author %s\n", v.AuthorName)
	fmt.Fprintf(&b, "date %s\n", v.Timestamp.Format(showDateLayout))
	b.WriteString("\n")
	b.WriteString(v.Value)
	return b.String()
}

func (v *VersionedString) computeID() string {
	sum := sha256.Sum256([]byte(v.Show()))
	return hex.EncodeToString(sum[:])
}

// NewVersionedString creates a root node: no history, provenance is
// itself. The value is normalized before anything is hashed.
func NewVersionedString(value, author string, now time.Time) (VersionedString, error) {
	normalized := normalize.Utterance(value)
	if normalized == "" {
		return VersionedString{}, ErrEmptyValue
	}
	v := VersionedString{
		Value:      normalized,
		AuthorName: author,
		Timestamp:  now,
	}
	// The root's hash is computed without a provenance line, then the
	// provenance is pinned to itself.
	v.ID = v.computeID()
	v.ProvenanceID = v.ID
	return v, nil
}

// Derive creates the next node in the chain: same provenance, previous
// pointing here, fresh hash. The predecessor's ID already exists before
// the new hash can be computed, so a chain can never loop.
func (v *VersionedString) Derive(value, author string, now time.Time) (VersionedString, error) {
	normalized := normalize.Utterance(value)
	if normalized == "" {
		return VersionedString{}, ErrEmptyValue
	}
	next := VersionedString{
		Value:        normalized,
		AuthorName:   author,
		Timestamp:    now,
		PreviousID:   v.ID,
		ProvenanceID: v.ProvenanceID,
	}
	next.ID = next.computeID()
	return next, nil
}
