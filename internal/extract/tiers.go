package extract

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/altlab/recval/internal/textgrid"
)

// Tier positions follow the field convention for these recordings. The
// position is only an index hint: the tier name must also match the
// language pattern, or resolution fails.
const (
	tierEnglishWord     = 0
	tierCreeWord        = 1
	tierEnglishSentence = 2
	tierCreeSentence    = 3
)

var (
	creePattern    = regexp.MustCompile(`(?i)\b(cree|crk)\b`)
	englishPattern = regexp.MustCompile(`(?i)\b(english|eng|en)\b`)
)

// ErrTooFewTiers means the annotation file cannot possibly hold the two
// languages at two granularities this pipeline needs.
var ErrTooFewTiers = errors.New("annotation file has too few tiers")

// TierPatternMismatchError reports a tier whose name contradicts the
// language expected at its position. This is a configuration problem
// with the annotation file, never recoverable within the session.
type TierPatternMismatchError struct {
	Expected   string // "cree" or "english"
	ActualName string
	Position   int
}

func (e *TierPatternMismatchError) Error() string {
	return fmt.Sprintf("tier %d %q does not look like a %s tier",
		e.Position, e.ActualName, e.Expected)
}

// alignedTiers is the resolved four-track view of one annotation file.
type alignedTiers struct {
	creeWords        *textgrid.Tier
	englishWords     *textgrid.Tier
	creeSentences    *textgrid.Tier
	englishSentences *textgrid.Tier
}

// resolveTiers picks the four role tiers out of a grid and validates
// each position's name against its language pattern.
func resolveTiers(grid *textgrid.TextGrid) (*alignedTiers, error) {
	if len(grid.Tiers) < 2 {
		return nil, ErrTooFewTiers
	}
	if len(grid.Tiers) <= tierCreeSentence {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrTooFewTiers,
			len(grid.Tiers), tierCreeSentence+1)
	}

	at := &alignedTiers{
		englishWords:     grid.Tiers[tierEnglishWord],
		creeWords:        grid.Tiers[tierCreeWord],
		englishSentences: grid.Tiers[tierEnglishSentence],
		creeSentences:    grid.Tiers[tierCreeSentence],
	}

	checks := []struct {
		tier     *textgrid.Tier
		language string
		position int
	}{
		{at.englishWords, "english", tierEnglishWord},
		{at.creeWords, "cree", tierCreeWord},
		{at.englishSentences, "english", tierEnglishSentence},
		{at.creeSentences, "cree", tierCreeSentence},
	}
	for _, c := range checks {
		pattern := englishPattern
		if c.language == "cree" {
			pattern = creePattern
		}
		if !pattern.MatchString(c.tier.Name) {
			return nil, &TierPatternMismatchError{
				Expected:   c.language,
				ActualName: c.tier.Name,
				Position:   c.position,
			}
		}
	}
	return at, nil
}
