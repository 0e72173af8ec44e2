// Package viseme converts text into time-stamped mouth-shape frames for
// avatar lip sync.
//
// The pipeline has three stages: a rule-based phoneme extractor
// ([Mapper.Phonemes]), a phoneme→viseme frame mapper with per-class duration
// estimates ([Mapper.MapPhonemes]), and a uniform rescale that stretches or
// compresses the whole timeline to match a measured audio duration
// ([ScaleToTarget]). [Mapper.BuildTimeline] composes all three.
//
// Everything in this package is a pure function over immutable inputs plus a
// read-only [Table] built once at startup. A single Mapper may be shared
// freely across goroutines.
package viseme

import (
	"fmt"
	"sort"
)

// Class is the duration class of a viseme category. It decides which
// unscaled duration estimate a phoneme in that category receives.
type Class string

const (
	ClassSilence   Class = "silence"
	ClassConsonant Class = "consonant"
	ClassVowel     Class = "vowel"
)

// IsValid reports whether c is a recognised duration class.
func (c Class) IsValid() bool {
	switch c {
	case ClassSilence, ClassConsonant, ClassVowel:
		return true
	}
	return false
}

// SilenceID is the category id reserved for silence. Phonemes that map to no
// category resolve to this id.
const SilenceID = 0

// Sil is the inter-word pause marker emitted by the phoneme extractor.
const Sil = "sil"

// Category is one visually distinguishable mouth shape and the set of
// phoneme symbols that render as it. Categories are static configuration:
// they are registered in a [Table] at startup and never mutated.
type Category struct {
	// ID is the small unique non-negative identifier referenced by frames.
	ID int

	// Name is a human-readable label (e.g. "Bilabial_pbm").
	Name string

	// Class selects the duration estimate for phonemes in this category.
	Class Class

	// Phonemes lists the symbols that map to this category. Each symbol may
	// belong to exactly one category across the whole table.
	Phonemes []string

	// ImagePath is the opaque asset reference handed to the presentation
	// layer. The engine never interprets it.
	ImagePath string
}

// Table is the immutable phoneme→viseme lookup built from a category list.
// Construct one with [NewTable] (or use [Default]); after construction it is
// read-only and safe for concurrent use.
type Table struct {
	byID      map[int]Category
	byPhoneme map[string]int
	silence   Category
}

// NewTable validates categories and builds the reverse phoneme lookup.
//
// A malformed table is a configuration defect, so all problems are rejected
// here rather than surfacing per call: duplicate category ids, a phoneme
// registered in more than one category, an invalid duration class, and a
// missing or non-silence category for [SilenceID] are all errors.
func NewTable(categories []Category) (*Table, error) {
	t := &Table{
		byID:      make(map[int]Category, len(categories)),
		byPhoneme: make(map[string]int),
	}

	for _, cat := range categories {
		if cat.ID < 0 {
			return nil, fmt.Errorf("viseme table: category %q has negative id %d", cat.Name, cat.ID)
		}
		if _, dup := t.byID[cat.ID]; dup {
			return nil, fmt.Errorf("viseme table: duplicate category id %d", cat.ID)
		}
		if !cat.Class.IsValid() {
			return nil, fmt.Errorf("viseme table: category %d (%s) has invalid class %q", cat.ID, cat.Name, cat.Class)
		}
		for _, ph := range cat.Phonemes {
			if prev, dup := t.byPhoneme[ph]; dup {
				return nil, fmt.Errorf("viseme table: phoneme %q registered in both category %d and %d", ph, prev, cat.ID)
			}
			t.byPhoneme[ph] = cat.ID
		}
		t.byID[cat.ID] = cat
	}

	sil, ok := t.byID[SilenceID]
	if !ok {
		return nil, fmt.Errorf("viseme table: no category with reserved silence id %d", SilenceID)
	}
	if sil.Class != ClassSilence {
		return nil, fmt.Errorf("viseme table: category %d must have class %q, has %q", SilenceID, ClassSilence, sil.Class)
	}
	t.silence = sil

	return t, nil
}

// MustTable is like [NewTable] but panics on error. Intended for static
// tables defined in source, where a malformed table is a programming defect.
func MustTable(categories []Category) *Table {
	t, err := NewTable(categories)
	if err != nil {
		panic(err)
	}
	return t
}

// Category returns the category with the given id.
func (t *Table) Category(id int) (Category, bool) {
	c, ok := t.byID[id]
	return c, ok
}

// Silence returns the reserved silence category.
func (t *Table) Silence() Category { return t.silence }

// Lookup resolves a phoneme symbol to its category. Unmapped symbols resolve
// to the silence category; mapped is false in that case so callers can
// distinguish a genuine silence phoneme from a fallback.
func (t *Table) Lookup(phoneme string) (cat Category, mapped bool) {
	id, ok := t.byPhoneme[phoneme]
	if !ok {
		return t.silence, false
	}
	return t.byID[id], true
}

// Phonemes returns the sorted list of all phoneme symbols the table maps.
func (t *Table) Phonemes() []string {
	out := make([]string, 0, len(t.byPhoneme))
	for ph := range t.byPhoneme {
		out = append(out, ph)
	}
	sort.Strings(out)
	return out
}

// defaultCategories is the canonical 19-category table, modelled on the
// Oculus lip-sync viseme set. Each phoneme appears in exactly one category.
var defaultCategories = []Category{
	{ID: 0, Name: "Silence", Class: ClassSilence,
		Phonemes: []string{"sil", "pau", "sp"}, ImagePath: "/static/viseme_test_00_Silence.jpg"},
	{ID: 1, Name: "Bilabial_pbm", Class: ClassConsonant,
		Phonemes: []string{"p", "b", "m", "em", "en"}, ImagePath: "/static/viseme_test_01_Bilabial_pbm.jpg"},
	{ID: 2, Name: "Labiodental_fv", Class: ClassConsonant,
		Phonemes: []string{"f", "v"}, ImagePath: "/static/viseme_test_02_Labiodental_fv.jpg"},
	{ID: 3, Name: "Dental_th", Class: ClassConsonant,
		Phonemes: []string{"th"}, ImagePath: "/static/viseme_test_03_Dental_th.jpg"},
	{ID: 4, Name: "Alveolar_tdn", Class: ClassConsonant,
		Phonemes: []string{"t", "d", "n", "s", "z", "l"}, ImagePath: "/static/viseme_test_04_Alveolar_tdn.jpg"},
	{ID: 5, Name: "Palatal", Class: ClassConsonant,
		Phonemes: []string{"y"}, ImagePath: "/static/viseme_test_05_Palatal.jpg"},
	{ID: 6, Name: "Velar_kgng", Class: ClassConsonant,
		Phonemes: []string{"k", "g", "ng"}, ImagePath: "/static/viseme_test_06_Velar_kgng.jpg"},
	{ID: 7, Name: "Palato_alveolar_chj", Class: ClassConsonant,
		Phonemes: []string{"ch", "jh"}, ImagePath: "/static/viseme_test_07_Palato_alveolar_chj.jpg"},
	{ID: 8, Name: "Palato_alveolar_fricative_shzh", Class: ClassConsonant,
		Phonemes: []string{"sh", "zh"}, ImagePath: "/static/viseme_test_08_Palato_alveolar_fricative_shzh.jpg"},
	{ID: 9, Name: "Approximant_r", Class: ClassConsonant,
		Phonemes: []string{"r"}, ImagePath: "/static/viseme_test_09_Approximant_yr.jpg"},
	{ID: 10, Name: "Open_vowel_a", Class: ClassVowel,
		Phonemes: []string{"a", "aa", "ae", "ah", "aw"}, ImagePath: "/static/viseme_test_10_Open_vowel_a.jpg"},
	{ID: 11, Name: "Mid_vowel_e", Class: ClassVowel,
		Phonemes: []string{"e", "eh", "ax", "axr"}, ImagePath: "/static/viseme_test_11_Mid_vowel_e.jpg"},
	{ID: 12, Name: "Close_front_i", Class: ClassVowel,
		Phonemes: []string{"i", "ih", "iy"}, ImagePath: "/static/viseme_test_12_Close-front_i.jpg"},
	{ID: 13, Name: "Close_mid_o", Class: ClassVowel,
		Phonemes: []string{"o", "ow", "oy"}, ImagePath: "/static/viseme_test_13_Close-mid_o.jpg"},
	{ID: 14, Name: "Close_back_u", Class: ClassVowel,
		Phonemes: []string{"u", "uw"}, ImagePath: "/static/viseme_test_14_Close-back_u.jpg"},
	{ID: 15, Name: "Labial_velar_w", Class: ClassConsonant,
		Phonemes: []string{"w"}, ImagePath: "/static/viseme_test_15_Labial_velar_w.jpg"},
	{ID: 16, Name: "Mid_front_vowel_ay", Class: ClassVowel,
		Phonemes: []string{"ay", "ey"}, ImagePath: "/static/viseme_test_16_Mid_front_vowel_eehay.jpg"},
	{ID: 17, Name: "Mid_back_vowel_o", Class: ClassVowel,
		Phonemes: []string{"oh", "oi"}, ImagePath: "/static/viseme_test_17_Mid_back_vowel_oohoi.jpg"},
	{ID: 18, Name: "Schwa_eruh", Class: ClassVowel,
		Phonemes: []string{"er", "uh", "schwa"}, ImagePath: "/static/viseme_test_18_Schwa_eruh.jpg"},
}

var defaultTable = MustTable(defaultCategories)

// Default returns the canonical built-in table. The returned Table is shared
// and read-only.
func Default() *Table { return defaultTable }

// DefaultCategories returns a copy of the canonical category list, as a
// starting point for custom tables.
func DefaultCategories() []Category {
	out := make([]Category, len(defaultCategories))
	copy(out, defaultCategories)
	return out
}
