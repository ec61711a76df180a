// Package vocab turns raw text into the ranked vocabulary placed by the layout
// engine.
//
// Extraction runs in a fixed order:
//
//  1. Split text on Unicode word boundaries (UAX #29).
//  2. Drop a trailing possessive 's, pure numbers and words shorter than
//     MinWordLength.
//  3. Count words, merging case variants and plurals when configured. A
//     merged group is shown in its most frequent spelling.
//  4. Optionally merge significant adjacent pairs into two-word collocations.
//  5. Remove stopwords, sort by count and truncate to MaxWords.
//
// Ties in count keep the order in which words first appear in the text, so
// extraction is fully deterministic.
package vocab

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"

	"github.com/matzehuels/maskcloud/pkg/errors"
)

// DefaultCollocationThreshold is the minimum log-likelihood score for a word
// pair to be merged into a collocation.
const DefaultCollocationThreshold = 30

// Options configures extraction.
type Options struct {
	// Stopwords are removed before counting. Matching ignores case.
	Stopwords []string

	// MinWordLength drops words with fewer runes. Zero keeps every word.
	MinWordLength int

	// MaxWords truncates the ranked result. Zero means no limit.
	MaxWords int

	// Collocations merges frequent adjacent pairs into single entries.
	Collocations bool

	// CollocationThreshold overrides DefaultCollocationThreshold when non-zero.
	CollocationThreshold float64

	// NormalizeCase counts "Go", "go" and "GO" as one word.
	NormalizeCase bool

	// NormalizePlurals merges "dogs" into "dog" when both occur.
	NormalizePlurals bool

	// IncludeNumbers keeps tokens made only of digits.
	IncludeNumbers bool
}

// DefaultOptions returns the extraction defaults used by the engine.
func DefaultOptions() Options {
	return Options{
		MaxWords:             400,
		CollocationThreshold: DefaultCollocationThreshold,
		NormalizeCase:        true,
		NormalizePlurals:     true,
	}
}

// Entry is one vocabulary word and its weight.
type Entry struct {
	Word   string  `json:"word"`
	Weight float64 `json:"weight"`
}

// Vocabulary is ranked by descending weight.
type Vocabulary []Entry

// MaxWeight returns the largest weight, or 0 for an empty vocabulary.
func (v Vocabulary) MaxWeight() float64 {
	if len(v) == 0 {
		return 0
	}
	return v[0].Weight
}

// Words returns the words in rank order.
func (v Vocabulary) Words() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.Word
	}
	return out
}

// Extract builds the ranked vocabulary for text. A result with no words is
// reported as EMPTY_VOCABULARY so callers can retry with relaxed filters.
func Extract(text string, opts Options) (Vocabulary, error) {
	folder := cases.Fold()
	fold := func(s string) string {
		if !opts.NormalizeCase {
			return s
		}
		return folder.String(s)
	}

	stop := make(map[string]bool, len(opts.Stopwords))
	for _, s := range opts.Stopwords {
		stop[folder.String(s)] = true
	}
	isStop := func(w string) bool { return stop[folder.String(w)] }

	words := Tokenize(text, opts)

	var counts []*tally
	if opts.Collocations {
		threshold := opts.CollocationThreshold
		if threshold == 0 {
			threshold = DefaultCollocationThreshold
		}
		counts = withCollocations(words, isStop, fold, opts.NormalizePlurals, threshold)
	} else {
		kept := words[:0:0]
		for _, w := range words {
			if !isStop(w) {
				kept = append(kept, w)
			}
		}
		counts, _ = countTokens(kept, fold, opts.NormalizePlurals)
	}

	slices.SortStableFunc(counts, func(a, b *tally) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.first, b.first)
	})
	if opts.MaxWords > 0 && len(counts) > opts.MaxWords {
		counts = counts[:opts.MaxWords]
	}
	if len(counts) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyVocabulary, "no words left after filtering")
	}

	vocab := make(Vocabulary, len(counts))
	for i, t := range counts {
		vocab[i] = Entry{Word: t.surface, Weight: float64(t.count)}
	}
	return vocab, nil
}

// Tokenize splits text into words and applies the per-token filters
// (possessives, numbers, minimum length). Stopwords are not removed here
// because collocation scoring needs to see them.
func Tokenize(text string, opts Options) []string {
	var words []string
	state := -1
	rest := text
	for len(rest) > 0 {
		var seg string
		seg, rest, state = uniseg.FirstWordInString(rest, state)
		if !isWord(seg) {
			continue
		}
		seg = trimPossessive(seg)
		if !opts.IncludeNumbers && isNumber(seg) {
			continue
		}
		if opts.MinWordLength > 0 && utf8.RuneCountInString(seg) < opts.MinWordLength {
			continue
		}
		words = append(words, seg)
	}
	return words
}

func isWord(seg string) bool {
	for _, r := range seg {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

func isNumber(seg string) bool {
	for _, r := range seg {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return seg != ""
}

func trimPossessive(w string) string {
	for _, suffix := range []string{"'s", "'S", "’s", "’S"} {
		if len(w) > len(suffix) && strings.HasSuffix(w, suffix) {
			return w[:len(w)-len(suffix)]
		}
	}
	return w
}
