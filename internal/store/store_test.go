package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/altlab/recval/internal/types"
)

// openTestStore builds a store over an in-memory database and a temp
// blob directory, with a ticking fake clock so every node hashes fresh.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	tick := time.Date(2018, 11, 1, 18, 28, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s
}

func TestIdentify(t *testing.T) {
	b := []byte("RIFF fake wav bytes")
	first := Identify(b)
	if len(first) != 64 {
		t.Fatalf("fingerprint length = %d, want 64", len(first))
	}
	if second := Identify(b); second != first {
		t.Errorf("identical bytes fingerprinted differently: %s vs %s", first, second)
	}
	if other := Identify([]byte("different bytes")); other == first {
		t.Error("distinct bytes produced the same fingerprint")
	}
}

func TestPutAudioDeduplicates(t *testing.T) {
	s := openTestStore(t)
	blob := []byte("pretend this is a wav slice")

	fp1, created, err := s.PutAudio(blob)
	if err != nil {
		t.Fatalf("PutAudio: %v", err)
	}
	if !created {
		t.Error("first put reported created=false")
	}

	fp2, created, err := s.PutAudio(blob)
	if err != nil {
		t.Fatalf("PutAudio again: %v", err)
	}
	if created {
		t.Error("second put of identical bytes reported created=true")
	}
	if fp1 != fp2 {
		t.Errorf("fingerprints differ: %s vs %s", fp1, fp2)
	}

	// Exactly one stored blob.
	entries, err := os.ReadDir(filepath.Dir(s.BlobPath(fp1)))
	if err != nil {
		t.Fatalf("read blob dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("blob dir holds %d files, want 1", len(entries))
	}
	stored, err := os.ReadFile(s.BlobPath(fp1))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if !bytes.Equal(stored, blob) {
		t.Error("stored blob differs from input")
	}
}

func TestPutStringRoundTrip(t *testing.T) {
	s := openTestStore(t)

	root, err := s.PutString("  ê-nipat ", "alice", nil)
	if err != nil {
		t.Fatalf("PutString: %v", err)
	}
	if root.Value != "ê-nipat" {
		t.Errorf("stored value = %q, want trimmed NFC form", root.Value)
	}

	loaded, err := s.GetVersionedString(root.ID)
	if err != nil {
		t.Fatalf("GetVersionedString: %v", err)
	}
	if loaded.Value != root.Value || loaded.ProvenanceID != root.ID {
		t.Errorf("loaded = %+v, want %+v", loaded, root)
	}
}

func TestPutStringRejectsEmpty(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.PutString("   ", "alice", nil); err != ErrEmptyValue {
		t.Errorf("err = %v, want ErrEmptyValue", err)
	}
}

func TestVersionChainHistory(t *testing.T) {
	s := openTestStore(t)

	root, err := s.PutString("v1", "alice", nil)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	v2, err := s.PutString("v2", "alice", &root)
	if err != nil {
		t.Fatalf("v2: %v", err)
	}
	v3, err := s.PutString("v3", "bob", &v2)
	if err != nil {
		t.Fatalf("v3: %v", err)
	}

	history, err := s.History(root.ProvenanceID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}

	wantIDs := []string{root.ID, v2.ID, v3.ID}
	for i, node := range history {
		if node.ID != wantIDs[i] {
			t.Errorf("history[%d].ID = %s, want %s", i, node.ID, wantIDs[i])
		}
		if node.ProvenanceID != root.ID {
			t.Errorf("history[%d] provenance = %s, want %s", i, node.ProvenanceID, root.ID)
		}
	}
	if history[1].PreviousID != root.ID || history[2].PreviousID != v2.ID {
		t.Error("previous links do not thread the chain")
	}
}

func TestGetOrCreatePhraseReuses(t *testing.T) {
	s := openTestStore(t)

	id1, err := s.GetOrCreatePhrase(types.KindWord, "ê-nipat", "he is sleeping", "importer")
	if err != nil {
		t.Fatalf("GetOrCreatePhrase: %v", err)
	}
	id2, err := s.GetOrCreatePhrase(types.KindWord, "ê-nipat", "he is sleeping", "importer")
	if err != nil {
		t.Fatalf("GetOrCreatePhrase again: %v", err)
	}
	if id1 != id2 {
		t.Errorf("same transcription made two phrases: %d and %d", id1, id2)
	}

	// Same text as a sentence is a different phrase.
	id3, err := s.GetOrCreatePhrase(types.KindSentence, "ê-nipat", "", "importer")
	if err != nil {
		t.Fatalf("GetOrCreatePhrase sentence: %v", err)
	}
	if id3 == id1 {
		t.Error("a sentence reused a word phrase")
	}
}

func TestGetOrCreatePhraseEmptyTranslation(t *testing.T) {
	s := openTestStore(t)
	id, err := s.GetOrCreatePhrase(types.KindWord, "atim", "", "importer")
	if err != nil {
		t.Fatalf("GetOrCreatePhrase: %v", err)
	}
	history, err := s.PhraseFieldHistory(id, "translation")
	if err != nil {
		t.Fatalf("PhraseFieldHistory: %v", err)
	}
	if history != nil {
		t.Errorf("untranslated phrase has translation history %+v", history)
	}
}

func TestUpdatePhraseRebindsCopyOnWrite(t *testing.T) {
	s := openTestStore(t)

	id, err := s.GetOrCreatePhrase(types.KindWord, "enipat", "he sleeps", "importer")
	if err != nil {
		t.Fatalf("GetOrCreatePhrase: %v", err)
	}

	node, err := s.UpdatePhrase(id, "transcription", "ê-nipat", "alice")
	if err != nil {
		t.Fatalf("UpdatePhrase: %v", err)
	}
	if node.IsRoot() {
		t.Error("update produced a root instead of a derived node")
	}

	history, err := s.PhraseFieldHistory(id, "transcription")
	if err != nil {
		t.Fatalf("PhraseFieldHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Value != "enipat" || history[1].Value != "ê-nipat" {
		t.Errorf("history values = %q, %q", history[0].Value, history[1].Value)
	}
	// The original node is untouched.
	original, err := s.GetVersionedString(history[0].ID)
	if err != nil {
		t.Fatalf("GetVersionedString: %v", err)
	}
	if original.Value != "enipat" {
		t.Errorf("root mutated to %q", original.Value)
	}
}

func TestAddRecordingIdempotent(t *testing.T) {
	s := openTestStore(t)

	phraseID, err := s.GetOrCreatePhrase(types.KindWord, "ê-nipat", "", "importer")
	if err != nil {
		t.Fatalf("GetOrCreatePhrase: %v", err)
	}
	fp, _, err := s.PutAudio([]byte("slice bytes"))
	if err != nil {
		t.Fatalf("PutAudio: %v", err)
	}

	created, err := s.AddRecording(fp, phraseID, "2015-05-05am", "LOU", types.QualityClean, 500)
	if err != nil {
		t.Fatalf("AddRecording: %v", err)
	}
	if !created {
		t.Error("first association reported created=false")
	}

	created, err = s.AddRecording(fp, phraseID, "2015-05-05am", "LOU", types.QualityClean, 500)
	if err != nil {
		t.Fatalf("AddRecording again: %v", err)
	}
	if created {
		t.Error("re-association reported created=true")
	}
}

func TestSearchRecordings(t *testing.T) {
	s := openTestStore(t)

	phraseID, _ := s.GetOrCreatePhrase(types.KindWord, "ê-nipat", "he is sleeping", "importer")
	otherID, _ := s.GetOrCreatePhrase(types.KindWord, "atim", "dog", "importer")

	fp1, _, _ := s.PutAudio([]byte("blob one"))
	fp2, _, _ := s.PutAudio([]byte("blob two"))
	s.AddRecording(fp1, phraseID, "2015-05-05am", "LOU", "", 500)
	s.AddRecording(fp2, otherID, "2015-05-05am", "LOU", "", 2000)

	results, err := s.SearchRecordings([]string{"ê-nipat"}, 10)
	if err != nil {
		t.Fatalf("SearchRecordings: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want only the relevant recording", len(results))
	}
	r := results[0]
	if r.Wordform != "ê-nipat" || r.Translation != "he is sleeping" || r.Fingerprint != fp1 {
		t.Errorf("result = %+v", r)
	}

	// The query is normalized before matching.
	results, err = s.SearchRecordings([]string{"  ê-nipat "}, 10)
	if err != nil {
		t.Fatalf("SearchRecordings: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("NFC-equivalent query found %d results, want 1", len(results))
	}
}
