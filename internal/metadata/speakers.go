package metadata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/altlab/recval/internal/extract"
)

// LoadSpeakerCodes reads the exported metadata CSV and returns a map
// from canonical session ID to speaker code. Rows whose session name
// does not parse are skipped; rows without a speaker are skipped so
// the scanner falls back to its placeholder.
func LoadSpeakerCodes(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read metadata header: %w", err)
	}
	sessionCol, speakerCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "session":
			sessionCol = i
		case "speaker", "speaker code":
			speakerCol = i
		}
	}
	if sessionCol < 0 || speakerCol < 0 {
		return nil, fmt.Errorf("metadata CSV missing session or speaker column")
	}

	codes := make(map[string]string)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read metadata row: %w", err)
		}
		if sessionCol >= len(row) || speakerCol >= len(row) {
			continue
		}
		session, err := extract.ParseSession(strings.TrimSpace(row[sessionCol]))
		if err != nil {
			continue
		}
		speaker := strings.ToUpper(strings.TrimSpace(row[speakerCol]))
		if speaker == "" {
			continue
		}
		codes[session.ID()] = speaker
	}
	return codes, nil
}
