package vocab

import (
	"math"
	"strings"
)

// tally accumulates one counted word or collocation.
type tally struct {
	key     string
	surface string
	count   int
	first   int // index of the first occurrence
	forms   map[string]int
	order   []string // forms in first-seen order
}

func (t *tally) add(form string, n int) {
	if _, ok := t.forms[form]; !ok {
		t.order = append(t.order, form)
	}
	t.forms[form] += n
	t.count += n
}

// pickSurface selects the most frequent spelling; ties go to the spelling
// seen first.
func (t *tally) pickSurface() {
	best := -1
	for _, f := range t.order {
		if t.forms[f] > best {
			best = t.forms[f]
			t.surface = f
		}
	}
}

// countTokens counts tokens grouped by fold(token), optionally merging
// plurals into their singular. It returns the tallies in first-seen order and
// a map from each group key to the key it was merged into.
func countTokens(tokens []string, fold func(string) string, plurals bool) ([]*tally, map[string]string) {
	byKey := make(map[string]*tally)
	var order []*tally
	for i, tok := range tokens {
		k := fold(tok)
		t, ok := byKey[k]
		if !ok {
			t = &tally{key: k, first: i, forms: make(map[string]int)}
			byKey[k] = t
			order = append(order, t)
		}
		t.add(tok, 1)
	}

	canon := make(map[string]string, len(byKey))
	for k := range byKey {
		canon[k] = k
	}

	if plurals {
		merged := order[:0:0]
		for _, t := range order {
			single, ok := singular(t.key)
			if !ok {
				merged = append(merged, t)
				continue
			}
			into, exists := byKey[single]
			if !exists {
				merged = append(merged, t)
				continue
			}
			// The singular keeps its spellings; the plural only adds weight.
			into.count += t.count
			into.first = min(into.first, t.first)
			canon[t.key] = single
		}
		order = merged
	}

	for _, t := range order {
		t.pickSurface()
	}
	return order, canon
}

// singular strips a plural "s" unless the word ends in "ss".
func singular(key string) (string, bool) {
	if len(key) < 2 || !strings.HasSuffix(key, "s") || strings.HasSuffix(key, "ss") {
		return "", false
	}
	return key[:len(key)-1], true
}

// withCollocations counts unigrams and merges adjacent pairs whose
// log-likelihood score exceeds threshold. Pairs touching a stopword are never
// merged. A merged pair's count is subtracted from both of its words, and
// words left with no count are removed.
func withCollocations(words []string, isStop func(string) bool, fold func(string) string, plurals bool, threshold float64) []*tally {
	var unigrams []string
	for _, w := range words {
		if !isStop(w) {
			unigrams = append(unigrams, w)
		}
	}

	var pairs []string
	pairFirst := make(map[string]int)
	for i := 0; i+1 < len(words); i++ {
		a, b := words[i], words[i+1]
		if isStop(a) || isStop(b) {
			continue
		}
		p := a + " " + b
		if _, ok := pairFirst[fold(p)]; !ok {
			pairFirst[fold(p)] = i
		}
		pairs = append(pairs, p)
	}

	uni, canon := countTokens(unigrams, fold, plurals)
	bi, _ := countTokens(pairs, fold, false)

	byKey := make(map[string]*tally, len(uni))
	orig := make(map[string]int, len(uni))
	for _, t := range uni {
		byKey[t.key] = t
		orig[t.key] = t.count
	}

	n, nUni := len(unigrams), len(uni)
	for _, pair := range bi {
		a, b, _ := strings.Cut(pair.key, " ")
		ka, kb := canon[a], canon[b]
		if ka == "" || kb == "" {
			continue
		}
		if llr(pair.count, orig[ka], orig[kb], n) <= threshold {
			continue
		}
		byKey[ka].count -= pair.count
		byKey[kb].count -= pair.count
		// Rank the pair by where it first occurs in the full word stream.
		pair.first = pairFirst[pair.key]
		uni = append(uni, pair)
	}

	// Unigram positions index the stopword-free stream; remap them onto the
	// full stream so pairs and words share one ordering.
	pos := make([]int, 0, len(unigrams))
	for i, w := range words {
		if !isStop(w) {
			pos = append(pos, i)
		}
	}
	out := uni[:0]
	for i, t := range uni {
		if t.count <= 0 {
			continue
		}
		if i < nUni {
			t.first = pos[t.first]
		}
		out = append(out, t)
	}
	return out
}

// llr is Dunning's log-likelihood ratio for the pair count c12 given the
// word counts c1, c2 in a stream of n words.
func llr(c12, c1, c2, n int) float64 {
	if n <= c1 || c1 == 0 {
		return 0
	}
	N, k12, k1, k2 := float64(n), float64(c12), float64(c1), float64(c2)
	p := k2 / N
	p1 := k12 / k1
	p2 := (k2 - k12) / (N - k1)
	s := logL(k12, k1, p) + logL(k2-k12, N-k1, p) - logL(k12, k1, p1) - logL(k2-k12, N-k1, p2)
	return -2 * s
}

func logL(k, n, x float64) float64 {
	return math.Log(max(x, 1e-10))*k + math.Log(max(1-x, 1e-10))*(n-k)
}
