package viseme_test

import (
	"reflect"
	"testing"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/viseme"
)

func TestPhonemes(t *testing.T) {
	t.Parallel()
	m := viseme.NewMapper()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "",
			want: nil,
		},
		{
			name: "punctuation only",
			text: "?! ... ---",
			want: nil,
		},
		{
			name: "dictionary word",
			text: "hi",
			want: []string{"h", "ay"},
		},
		{
			name: "case insensitive",
			text: "HELLO",
			want: []string{"h", "eh", "l", "ow"},
		},
		{
			name: "two words joined by one pause",
			text: "hello world",
			want: []string{"h", "eh", "l", "ow", "sil", "w", "ah", "r", "l", "d"},
		},
		{
			name: "letter fallback for unknown word",
			text: "cat",
			want: []string{"k", "ae", "t"},
		},
		{
			name: "punctuation stripped inside sentence",
			text: "hi, you!",
			want: []string{"h", "ay", "sil", "y", "uw"},
		},
		{
			name: "digits contribute no phonemes but word keeps its pause",
			text: "hi 42 you",
			want: []string{"h", "ay", "sil", "sil", "y", "uw"},
		},
		{
			name: "trailing digit word leaves no dangling pause",
			text: "hi 42",
			want: []string{"h", "ay", "sil"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Phonemes(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Phonemes(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestPhonemes_Deterministic(t *testing.T) {
	t.Parallel()
	m := viseme.NewMapper()

	const text = "good morning how are you doing today"
	first := m.Phonemes(text)
	for i := 0; i < 5; i++ {
		if got := m.Phonemes(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d produced %v, first run produced %v", i, got, first)
		}
	}
}

func TestPhonemes_PhoneticLookup(t *testing.T) {
	t.Parallel()
	m := viseme.NewMapper(viseme.WithPhoneticLookup())

	// "helo" shares a Double Metaphone code with "hello" and borrows its
	// pronunciation instead of spelling out per letter.
	got := m.Phonemes("helo")
	want := []string{"h", "eh", "l", "ow"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf(`Phonemes("helo") = %v, want %v`, got, want)
	}

	// Exact dictionary hits are untouched by the phonetic pass.
	got = m.Phonemes("hello")
	if !reflect.DeepEqual(got, want) {
		t.Errorf(`Phonemes("hello") = %v, want %v`, got, want)
	}
}

func TestPhonemes_CustomDictionary(t *testing.T) {
	t.Parallel()
	dict := viseme.DefaultDictionary()
	dict["meekha"] = []string{"m", "iy", "k", "ah"}
	m := viseme.NewMapper(viseme.WithDictionary(dict))

	got := m.Phonemes("meekha")
	want := []string{"m", "iy", "k", "ah"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf(`Phonemes("meekha") = %v, want %v`, got, want)
	}
}

func TestDefaultDictionary_ReturnsCopy(t *testing.T) {
	t.Parallel()
	d := viseme.DefaultDictionary()
	d["hi"] = []string{"x"}
	delete(d, "hello")

	m := viseme.NewMapper()
	if got := m.Phonemes("hi"); !reflect.DeepEqual(got, []string{"h", "ay"}) {
		t.Errorf("mutating the copy leaked into the mapper: %v", got)
	}
}
