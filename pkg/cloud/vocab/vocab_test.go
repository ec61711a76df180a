package vocab

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/maskcloud/pkg/errors"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		opts Options
		want Vocabulary
	}{
		{
			name: "counts and ranks",
			text: "alpha alpha beta",
			opts: DefaultOptions(),
			want: Vocabulary{{"alpha", 2}, {"beta", 1}},
		},
		{
			name: "ties keep first occurrence",
			text: "zeta yak xray yak zeta xray",
			opts: DefaultOptions(),
			want: Vocabulary{{"zeta", 2}, {"yak", 2}, {"xray", 2}},
		},
		{
			name: "punctuation and possessives",
			text: "Go's gophers, go! (gopher) -- go.",
			opts: DefaultOptions(),
			want: Vocabulary{{"go", 3}, {"gopher", 2}},
		},
		{
			name: "case variants use most frequent spelling",
			text: "Rust rust Rust RUST",
			opts: DefaultOptions(),
			want: Vocabulary{{"Rust", 4}},
		},
		{
			name: "case kept apart without normalization",
			text: "Rust rust Rust",
			opts: Options{},
			want: Vocabulary{{"Rust", 2}, {"rust", 1}},
		},
		{
			name: "plural ending in ss is not merged",
			text: "class class classes glass glas",
			opts: DefaultOptions(),
			want: Vocabulary{{"class", 2}, {"classes", 1}, {"glass", 1}, {"glas", 1}},
		},
		{
			name: "numbers dropped by default",
			text: "route 66 route 2024",
			opts: DefaultOptions(),
			want: Vocabulary{{"route", 2}},
		},
		{
			name: "numbers kept on request",
			text: "route 66 route",
			opts: Options{IncludeNumbers: true},
			want: Vocabulary{{"route", 2}, {"66", 1}},
		},
		{
			name: "minimum length counts runes",
			text: "ab abc über öl",
			opts: Options{MinWordLength: 3},
			want: Vocabulary{{"abc", 1}, {"über", 1}},
		},
		{
			name: "stopwords ignore case",
			text: "The cat and THE hat",
			opts: Options{Stopwords: []string{"the", "And"}},
			want: Vocabulary{{"cat", 1}, {"hat", 1}},
		},
		{
			name: "truncated to max words",
			text: "a a a b b c",
			opts: Options{MaxWords: 2},
			want: Vocabulary{{"a", 3}, {"b", 2}},
		},
		{
			name: "unicode words",
			text: "naïve café naïve 東京",
			opts: DefaultOptions(),
			want: Vocabulary{{"naïve", 2}, {"café", 1}, {"東", 1}, {"京", 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.text, tt.opts)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("vocabulary mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractEmpty(t *testing.T) {
	tests := []struct {
		name string
		text string
		opts Options
	}{
		{"empty text", "", DefaultOptions()},
		{"only punctuation", "... !!! ???", DefaultOptions()},
		{"all too short", "a an the of", Options{MinWordLength: 4}},
		{"all stopwords", "the and the", Options{Stopwords: []string{"the", "and"}}},
		{"only numbers", "1 2 3 42", DefaultOptions()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.text, tt.opts)
			if !errors.Is(err, errors.ErrCodeEmptyVocabulary) {
				t.Errorf("error = %v, want EMPTY_VOCABULARY", err)
			}
			if errors.IsFatal(err) || !errors.IsRecoverable(err) {
				t.Error("empty vocabulary must be recoverable")
			}
		})
	}
}

func TestExtractCollocations(t *testing.T) {
	text := strings.Repeat("new york is big is ", 20) + strings.Repeat("apple pie tastes good is ", 3) + "new ideas"
	opts := DefaultOptions()
	opts.Collocations = true
	opts.Stopwords = []string{"is"}

	got, err := Extract(text, opts)
	if err != nil {
		t.Fatal(err)
	}
	weights := make(map[string]float64)
	for _, e := range got {
		weights[e.Word] = e.Weight
	}

	if weights["new york"] != 20 {
		t.Errorf(`"new york" weight = %v, want 20 (vocabulary %v)`, weights["new york"], got)
	}
	if _, ok := weights["york"]; ok {
		t.Errorf(`"york" should be absorbed by the collocation, got %v`, got)
	}
	if weights["new"] != 1 {
		t.Errorf(`"new" weight = %v, want 1 after discount`, weights["new"])
	}
	if _, ok := weights["york big"]; ok {
		t.Error("pairs separated by a stopword must not merge")
	}
}

func TestExtractCollocationsDisabled(t *testing.T) {
	text := strings.Repeat("new york ", 30)
	got, err := Extract(text, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	want := Vocabulary{{"new", 30}, {"york", 30}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("vocabulary mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractOrdering(t *testing.T) {
	text := "one two two three three three four four four four"
	got, err := Extract(text, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Weight > got[i-1].Weight {
			t.Fatalf("vocabulary not descending at %d: %v", i, got)
		}
	}
	if diff := cmp.Diff([]string{"four", "three", "two", "one"}, got.Words()); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if got.MaxWeight() != 4 {
		t.Errorf("MaxWeight = %v, want 4", got.MaxWeight())
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Don't stop—it's 3 o'clock, Anna's time.", Options{})
	want := []string{"Don't", "stop", "it", "o'clock", "Anna", "time"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Tokenize mismatch (-want +got):\n%s", diff)
	}
}

func TestLLR(t *testing.T) {
	if s := llr(20, 21, 20, 100); s <= DefaultCollocationThreshold {
		t.Errorf("strongly associated pair scored %v", s)
	}
	if s := llr(25, 50, 50, 100); s > 1e-9 {
		t.Errorf("independent words scored %v", s)
	}
	if s := llr(1, 10, 1, 10); s != 0 {
		t.Errorf("degenerate stream should score 0, got %v", s)
	}
}
