package metadata

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSpeakerCodes(t *testing.T) {
	path := writeCSV(t, "Session,Speaker,Notes\n2015-05-05-AM,lou,first\n2016-11-7,MAR,\nnot-a-session,XYZ,\n")

	codes, err := LoadSpeakerCodes(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(codes), 2; got != want {
		t.Fatalf("len(codes) = %d, want %d", got, want)
	}
	if got, want := codes["2015-05-05am"], "LOU"; got != want {
		t.Errorf("codes[2015-05-05am] = %q, want %q", got, want)
	}
	if got, want := codes["2016-11-07"], "MAR"; got != want {
		t.Errorf("codes[2016-11-07] = %q, want %q", got, want)
	}
}

func TestLoadSpeakerCodesSkipsBlankSpeakers(t *testing.T) {
	path := writeCSV(t, "Session,Speaker\n2015-05-05-AM,\n")

	codes, err := LoadSpeakerCodes(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(codes) != 0 {
		t.Errorf("expected no codes, got %v", codes)
	}
}

func TestLoadSpeakerCodesMissingColumns(t *testing.T) {
	path := writeCSV(t, "Date,Person\n2015-05-05,LOU\n")

	if _, err := LoadSpeakerCodes(path); err == nil {
		t.Fatal("expected error for missing columns")
	}
}
