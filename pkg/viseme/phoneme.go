package viseme

import (
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// wordPattern tokenises text into alphanumeric word runs.
var wordPattern = regexp.MustCompile(`\w+`)

// defaultDictionary holds curated full-word pronunciations for common
// conversational words. Words not present fall back to the per-letter rules.
var defaultDictionary = map[string][]string{
	"hello":     {"h", "eh", "l", "ow"},
	"hi":        {"h", "ay"},
	"how":       {"h", "aw"},
	"are":       {"aa", "r"},
	"you":       {"y", "uw"},
	"doing":     {"d", "uw", "ih", "ng"},
	"today":     {"t", "uh", "d", "ey"},
	"what":      {"w", "ah", "t"},
	"is":        {"ih", "z"},
	"your":      {"y", "er"},
	"name":      {"n", "ey", "m"},
	"thank":     {"th", "ae", "ng", "k"},
	"thanks":    {"th", "ae", "ng", "k", "s"},
	"good":      {"g", "uh", "d"},
	"morning":   {"m", "er", "n", "ih", "ng"},
	"afternoon": {"ae", "f", "t", "er", "n", "uw", "n"},
	"evening":   {"iy", "v", "n", "ih", "ng"},
	"night":     {"n", "ay", "t"},
	"bye":       {"b", "ay"},
	"goodbye":   {"g", "uh", "d", "b", "ay"},
	"please":    {"p", "l", "iy", "z"},
	"sorry":     {"s", "aa", "r", "iy"},
	"yes":       {"y", "eh", "s"},
	"no":        {"n", "ow"},
	"okay":      {"ow", "k", "ey"},
	"ok":        {"ow", "k"},
	"sure":      {"sh", "er"},
	"maybe":     {"m", "ey", "b", "iy"},
	"think":     {"th", "ih", "ng", "k"},
	"know":      {"n", "ow"},
	"see":       {"s", "iy"},
	"look":      {"l", "uh", "k"},
	"hear":      {"h", "ih", "r"},
	"feel":      {"f", "iy", "l"},
	"want":      {"w", "ah", "n", "t"},
	"need":      {"n", "iy", "d"},
	"like":      {"l", "ay", "k"},
	"love":      {"l", "ah", "v"},
	"happy":     {"h", "ae", "p", "iy"},
	"sad":       {"s", "ae", "d"},
	"angry":     {"ae", "ng", "g", "r", "iy"},
	"tired":     {"t", "ay", "er", "d"},
	"excited":   {"ih", "k", "s", "ay", "t", "ih", "d"},
	"nervous":   {"n", "er", "v", "ah", "s"},
	"worried":   {"w", "er", "iy", "d"},
	"calm":      {"k", "aa", "m"},
	"relaxed":   {"r", "ih", "l", "ae", "k", "s", "t"},
}

// vowelLetters is the per-letter fallback for vowel characters.
var vowelLetters = map[rune]string{
	'a': "ae", 'e': "eh", 'i': "ih", 'o': "ah", 'u': "ah",
}

// consonantLetters is the per-letter fallback for consonant characters.
var consonantLetters = map[rune]string{
	'b': "b", 'c': "k", 'd': "d", 'f': "f", 'g': "g",
	'h': "h", 'j': "jh", 'k': "k", 'l': "l", 'm': "m",
	'n': "n", 'p': "p", 'q': "k", 'r': "r", 's': "s",
	't': "t", 'v': "v", 'w': "w", 'x': "k", 'y': "y", 'z': "z",
}

// Phonemes converts text into an ordered phoneme sequence approximating
// spoken pronunciation.
//
// Text is lower-cased and split into alphanumeric word runs. Each word is
// looked up in the curated dictionary; on a miss (and, when enabled, after
// the Double Metaphone nearest-match pass also misses) every letter maps
// through a fixed vowel or consonant table. Characters outside both tables
// (digits, underscores) contribute nothing. Every word is followed by one
// "sil" pause marker; a single trailing marker is stripped so the sequence
// never ends on a dangling pause.
//
// The result is a pure function of text: no randomness, no external calls.
// Empty or word-free input yields an empty sequence.
func (m *Mapper) Phonemes(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	var phonemes []string
	for _, word := range words {
		switch pron, ok := m.lookupWord(word); {
		case ok:
			phonemes = append(phonemes, pron...)
		default:
			phonemes = appendLetterFallback(phonemes, word)
		}
		phonemes = append(phonemes, Sil)
	}

	if n := len(phonemes); n > 0 && phonemes[n-1] == Sil {
		phonemes = phonemes[:n-1]
	}
	return phonemes
}

// lookupWord resolves a word to its dictionary pronunciation, trying the
// phonetic nearest-match index when exact lookup misses and the option is on.
func (m *Mapper) lookupWord(word string) ([]string, bool) {
	if pron, ok := m.dict[word]; ok {
		return pron, true
	}
	if !m.phonetic {
		return nil, false
	}
	primary, secondary := matchr.DoubleMetaphone(word)
	if w, ok := m.byMetaphone[primary]; ok {
		return m.dict[w], true
	}
	if secondary != "" {
		if w, ok := m.byMetaphone[secondary]; ok {
			return m.dict[w], true
		}
	}
	return nil, false
}

func appendLetterFallback(phonemes []string, word string) []string {
	for _, r := range word {
		if p, ok := vowelLetters[r]; ok {
			phonemes = append(phonemes, p)
		} else if p, ok := consonantLetters[r]; ok {
			phonemes = append(phonemes, p)
		}
		// Digits and other non-letter characters have no pronunciation;
		// the word still contributes its trailing pause.
	}
	return phonemes
}

// buildMetaphoneIndex maps Double Metaphone codes to dictionary words. When
// two words share a code the lexicographically first wins, keeping the index
// deterministic regardless of map iteration order.
func buildMetaphoneIndex(dict map[string][]string) map[string]string {
	words := make([]string, 0, len(dict))
	for w := range dict {
		words = append(words, w)
	}
	sort.Strings(words)

	idx := make(map[string]string, len(words))
	for _, w := range words {
		primary, secondary := matchr.DoubleMetaphone(w)
		for _, code := range []string{primary, secondary} {
			if code == "" {
				continue
			}
			if _, taken := idx[code]; !taken {
				idx[code] = w
			}
		}
	}
	return idx
}

// DefaultDictionary returns a copy of the built-in word pronunciation
// dictionary, as a starting point for extended vocabularies.
func DefaultDictionary() map[string][]string {
	out := make(map[string][]string, len(defaultDictionary))
	for w, pron := range defaultDictionary {
		cp := make([]string, len(pron))
		copy(cp, pron)
		out[w] = cp
	}
	return out
}
