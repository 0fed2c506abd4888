package memory

import (
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// Stop words skipped during keyword extraction (Russian + English).
var stopWords = map[string]struct{}{
	"я": {}, "ты": {}, "он": {}, "она": {}, "мы": {}, "вы": {}, "они": {},
	"в": {}, "на": {}, "и": {}, "с": {}, "по": {}, "для": {}, "от": {},
	"к": {}, "не": {}, "что": {}, "это": {}, "как": {}, "но": {},
	"the": {}, "is": {}, "are": {}, "a": {}, "an": {}, "in": {}, "on": {},
	"for": {}, "to": {}, "of": {},
}

// maxKeywords caps the stored keyword list per episode.
const maxKeywords = 10

func wordHash(word string) uint64 {
	return xxhash.Sum64String(word)
}

// extractKeywords pulls display keywords out of text: lowercased tokens
// longer than three runes that are not stop words, in first-occurrence
// order, capped at maxKeywords. Duplicates are not removed.
func extractKeywords(text string) []string {
	var keywords []string
	for _, w := range strings.Fields(text) {
		lower := strings.ToLower(w)
		if utf8.RuneCountInString(lower) <= 3 {
			continue
		}
		if _, stop := stopWords[lower]; stop {
			continue
		}
		keywords = append(keywords, lower)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// indexText adds every token of text longer than two runes to the inverted
// index under the given episode position. The threshold is deliberately
// lower than the keyword-extraction one: the index is for recall and casts
// a wider net than the stored keyword list.
func indexText(index map[uint64][]int, pos int, text string) {
	for _, w := range strings.Fields(text) {
		lower := strings.ToLower(w)
		if utf8.RuneCountInString(lower) <= 2 {
			continue
		}
		h := wordHash(lower)
		index[h] = append(index[h], pos)
	}
}

// rebuildIndex reindexes all episodes from scratch. Index entries reference
// episodes by position, so this must run after any removal that shifts them.
func rebuildIndex(index map[uint64][]int, episodes []Episode) {
	for h := range index {
		delete(index, h)
	}
	for i, ep := range episodes {
		indexText(index, i, ep.UserInput+" "+ep.Response)
	}
}
