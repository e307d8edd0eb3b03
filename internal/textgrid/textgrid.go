// Package textgrid reads Praat TextGrid annotation files: named tiers of
// time-aligned intervals, each with a start, an end, and a text label.
package textgrid

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Interval is one labelled span within a tier. Times are fractional
// seconds, as written by Praat. Start == End is legal (a degenerate span).
type Interval struct {
	Start float64
	End   float64
	Label string
}

// Tier is an ordered, non-overlapping sequence of intervals on one
// annotation track (e.g. word-level Cree).
type Tier struct {
	Name      string
	Intervals []Interval
}

// Containing returns the interval whose [Start, End) bounds include the
// given time, or ok=false when the time falls in a gap. Blank-label
// intervals are returned too; callers decide what a blank label means.
func (t *Tier) Containing(seconds float64) (Interval, bool) {
	for _, iv := range t.Intervals {
		if iv.Start <= seconds && seconds < iv.End {
			return iv, true
		}
	}
	return Interval{}, false
}

// TextGrid is the ordered set of tiers read from one annotation file.
type TextGrid struct {
	XMin  float64
	XMax  float64
	Tiers []*Tier
}

var (
	itemRe     = regexp.MustCompile(`^item\s*\[\d+\]:`)
	intervalRe = regexp.MustCompile(`^intervals\s*\[\d+\]:`)
	assignRe   = regexp.MustCompile(`^(\w+)\s*=\s*(.*)$`)
)

// ReadFile parses a long-format TextGrid file.
func ReadFile(path string) (*TextGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open textgrid: %w", err)
	}
	defer f.Close()

	grid := &TextGrid{}

	var (
		tier       *Tier
		pointTier  bool
		interval   *Interval
		inInterval bool
	)

	flush := func() {
		if tier != nil && inInterval {
			tier.Intervals = append(tier.Intervals, *interval)
		}
		inInterval = false
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case itemRe.MatchString(line):
			flush()
			tier = &Tier{}
			pointTier = false
			grid.Tiers = append(grid.Tiers, tier)

		case intervalRe.MatchString(line):
			flush()
			interval = &Interval{}
			inInterval = true

		default:
			m := assignRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			key, raw := m[1], strings.TrimSpace(m[2])
			switch key {
			case "class":
				// Point tiers carry no intervals; keep the (empty) tier so
				// positional indexing still matches the file.
				if unquote(raw) == "TextTier" {
					pointTier = true
				}
			case "name":
				if tier != nil {
					tier.Name = unquote(raw)
				}
			case "xmin", "xmax":
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, fmt.Errorf("bad %s value %q: %w", key, raw, err)
				}
				switch {
				case inInterval && key == "xmin":
					interval.Start = v
				case inInterval && key == "xmax":
					interval.End = v
				case tier == nil && key == "xmin":
					grid.XMin = v
				case tier == nil && key == "xmax":
					grid.XMax = v
				}
			case "text", "mark":
				if inInterval && !pointTier {
					interval.Label = unquote(raw)
				}
			}
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read textgrid: %w", err)
	}
	if len(grid.Tiers) == 0 {
		return nil, fmt.Errorf("no tiers in %s", path)
	}
	return grid, nil
}

// unquote strips Praat string quoting; doubled quotes escape a quote.
func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, `""`, `"`)
}
