package topics

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// simple stopword list (extend as needed)
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "of": {}, "to": {}, "in": {}, "a": {}, "for": {}, "is": {}, "on": {}, "with": {}, "as": {},
	"by": {}, "at": {}, "from": {}, "that": {}, "this": {}, "it": {}, "an": {}, "be": {}, "or": {}, "are": {}, "was": {},
	"will": {}, "has": {}, "have": {}, "had": {}, "but": {}, "not": {}, "your": {}, "you": {}, "we": {}, "our": {},
}

// Top returns the n most frequent keywords of text, ignoring stopwords and
// very short tokens. Ties break alphabetically so output is deterministic.
// Tokens longer than 16 runes are dropped: unsegmented CJK paragraphs come
// through as one giant "word" and carry no keyword signal.
func Top(text string, n int) []string {
	freq := map[string]int{}
	token := func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) }
	words := strings.FieldsFunc(strings.ToLower(text), token)

	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if utf8.RuneCountInString(w) > 16 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		freq[w]++
	}

	type kv struct {
		K string
		V int
	}
	var list []kv
	for k, v := range freq {
		list = append(list, kv{k, v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].V == list[j].V {
			return list[i].K < list[j].K
		}
		return list[i].V > list[j].V
	})
	if n > len(list) {
		n = len(list)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, list[i].K)
	}
	return out
}
