// Package extract carves phrase candidates out of time-aligned
// annotation tiers and walks session directory trees.
package extract

import (
	"iter"
	"math"

	"github.com/altlab/recval/internal/normalize"
	"github.com/altlab/recval/internal/textgrid"
	"github.com/altlab/recval/internal/types"
)

// Extractor walks the four aligned tiers of one annotation file and
// produces word and sentence candidates. Tier resolution happens up
// front in NewExtractor, so iteration itself cannot fail.
type Extractor struct {
	tiers   *alignedTiers
	session string
	speaker string

	skippedBlank int
}

// NewExtractor validates the grid's tiers and binds the session and
// speaker every emitted candidate will carry. Tier problems are fatal
// for the whole annotation file.
func NewExtractor(grid *textgrid.TextGrid, session, speaker string) (*Extractor, error) {
	tiers, err := resolveTiers(grid)
	if err != nil {
		return nil, err
	}
	return &Extractor{tiers: tiers, session: session, speaker: speaker}, nil
}

// Phrases returns a lazy, finite sequence of candidates. Each call
// re-walks the tiers from the start.
//
// A word interval whose midpoint falls inside a non-blank Cree sentence
// interval is presumed to be part of that example sentence and is left
// for the sentence pass. The midpoint test happens in fractional
// seconds; truncation to milliseconds only happens at emission.
func (e *Extractor) Phrases() iter.Seq[types.Candidate] {
	return func(yield func(types.Candidate) bool) {
		e.skippedBlank = 0

		for _, iv := range e.tiers.creeWords.Intervals {
			if normalize.IsBlank(iv.Label) {
				e.skippedBlank++
				continue
			}
			mid := (iv.Start + iv.End) / 2

			if sentence, ok := e.tiers.creeSentences.Containing(mid); ok && !normalize.IsBlank(sentence.Label) {
				// Part of an example sentence; the sentence pass emits it.
				continue
			}

			if !yield(e.candidate(types.KindWord, iv, mid)) {
				return
			}
		}

		for _, iv := range e.tiers.creeSentences.Intervals {
			if normalize.IsBlank(iv.Label) {
				e.skippedBlank++
				continue
			}
			mid := (iv.Start + iv.End) / 2
			if !yield(e.candidate(types.KindSentence, iv, mid)) {
				return
			}
		}
	}
}

// candidate builds one Candidate, looking up the translation gloss at
// the midpoint. Sentences deliberately probe the English *word* tier,
// not the English sentence tier; that mirrors the field workflow these
// files were annotated under. A gap in the English tier is not an
// error: the candidate simply has no gloss.
func (e *Extractor) candidate(kind types.PhraseKind, iv textgrid.Interval, mid float64) types.Candidate {
	var translation string
	if english, ok := e.tiers.englishWords.Containing(mid); ok {
		translation = normalize.Utterance(english.Label)
	}
	return types.Candidate{
		Kind:          kind,
		Transcription: normalize.Utterance(iv.Label),
		Translation:   translation,
		StartMS:       ToMilliseconds(iv.Start),
		EndMS:         ToMilliseconds(iv.End),
		Session:       e.session,
		Speaker:       e.speaker,
	}
}

// SkippedBlank reports how many blank intervals the most recent walk
// of Phrases skipped.
func (e *Extractor) SkippedBlank() int { return e.skippedBlank }

// ToMilliseconds converts tier time in fractional seconds to integer
// milliseconds. Fractional milliseconds are discarded, never rounded,
// so repeated runs over the same input cut identical boundaries.
func ToMilliseconds(seconds float64) int {
	return int(math.Floor(seconds * 1000))
}
