// Package pipeline wires the extraction walk to the content store:
// scanner -> extractor -> waveform slice -> deduplicated blob ->
// phrase/recording rows -> transcode queue.
package pipeline

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/altlab/recval/internal/audio"
	"github.com/altlab/recval/internal/extract"
	"github.com/altlab/recval/internal/queue"
	"github.com/altlab/recval/internal/store"
	"github.com/altlab/recval/internal/textgrid"
	"github.com/altlab/recval/internal/types"
)

// The original annotators are not identified per string, so imported
// values carry a placeholder author, same as the source material.
const importAuthor = "<unknown>"

// Loudness ceiling for sliced clips, in dB below full scale.
const sliceHeadroomDB = 0.1

// Pipeline processes one session's (annotation, audio) pairs into
// stored, deduplicated, provenance-tracked artifacts.
type Pipeline struct {
	store         *store.Store
	pool          *queue.WorkerPool // nil disables transcoding
	transcodedDir string
	logger        *log.Logger
	progress      func(types.ProgressEvent) // nil disables the feed

	Stats types.ScanStats
}

// New builds a pipeline. pool and progress may be nil.
func New(st *store.Store, pool *queue.WorkerPool, transcodedDir string, logger *log.Logger, progress func(types.ProgressEvent)) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		store:         st,
		pool:          pool,
		transcodedDir: transcodedDir,
		logger:        logger,
		progress:      progress,
	}
}

// HandleSession is the extract.SessionHandler for one paired file.
func (p *Pipeline) HandleSession(session extract.Session, speaker, gridPath, wavPath string) error {
	grid, err := textgrid.ReadFile(gridPath)
	if err != nil {
		return err
	}
	wave, err := audio.ReadFile(wavPath)
	if err != nil {
		return err
	}

	extractor, err := extract.NewExtractor(grid, session.ID(), speaker)
	if err != nil {
		return err
	}

	words, sentences := 0, 0
	for cand := range extractor.Phrases() {
		if err := p.commit(wave, cand); err != nil {
			return fmt.Errorf("commit %s %q: %w", cand.Kind, cand.Transcription, err)
		}
		switch cand.Kind {
		case types.KindWord:
			words++
		case types.KindSentence:
			sentences++
		}
	}

	p.Stats.Words += words
	p.Stats.Sentences += sentences
	p.Stats.SkippedBlank += extractor.SkippedBlank()
	p.logger.Printf("session %s: %d words, %d sentences from %s",
		session.ID(), words, sentences, filepath.Base(gridPath))

	if p.progress != nil {
		p.progress(types.ProgressEvent{
			Session:   session.ID(),
			Words:     words,
			Sentences: sentences,
			At:        time.Now(),
		})
	}
	return nil
}

// commit turns one candidate into stored content: slice and level the
// audio, deduplicate the blob, bind it to its phrase, and queue the
// codec step for blobs seen for the first time.
func (p *Pipeline) commit(wave *audio.Waveform, cand types.Candidate) error {
	slice := wave.Slice(cand.StartMS, cand.EndMS)
	slice.NormalizePeak(sliceHeadroomDB)

	fingerprint, created, err := p.store.PutAudio(slice.Encode())
	if err != nil {
		return err
	}
	if !created {
		p.Stats.Deduplicated++
	}

	phraseID, err := p.store.GetOrCreatePhrase(cand.Kind, cand.Transcription, cand.Translation, importAuthor)
	if err != nil {
		return err
	}
	if _, err := p.store.AddRecording(fingerprint, phraseID, cand.Session, cand.Speaker, "", cand.StartMS); err != nil {
		return err
	}

	if created && p.pool != nil {
		out := filepath.Join(p.transcodedDir, fingerprint+".m4a")
		p.pool.Enqueue(queue.NewJob(uuid.New().String(), fingerprint, p.store.BlobPath(fingerprint), out))
	}
	return nil
}

// Report renders the run counters in log form.
func (p *Pipeline) Report(scanned types.ScanStats) string {
	return fmt.Sprintf(
		"sessions: %d ok, %d failed; %d words, %d sentences; %d blank intervals skipped; %d grids without audio; %d duplicate blobs",
		scanned.Sessions, scanned.FatalSessions,
		p.Stats.Words, p.Stats.Sentences, p.Stats.SkippedBlank,
		scanned.MissingAudio, p.Stats.Deduplicated,
	)
}
