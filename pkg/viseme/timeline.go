package viseme

// Frame is one timed mouth-shape in a timeline. Frames are created in a
// batch per utterance, are immutable after creation, and belong solely to
// the caller that requested them.
//
// The JSON shape matches what the browser playback layer consumes.
type Frame struct {
	// VisemeID references a category in the table the timeline was built with.
	VisemeID int `json:"viseme_id"`

	// VisemeName is the category's human-readable label.
	VisemeName string `json:"viseme_name"`

	// ImagePath is the category's display asset reference.
	ImagePath string `json:"image_path"`

	// StartTime is seconds from timeline origin. Within a timeline frames are
	// contiguous: each frame starts exactly where the previous one ends, and
	// the first frame starts at 0.
	StartTime float64 `json:"start_time"`

	// Duration is the frame length in seconds.
	Duration float64 `json:"duration"`

	// Intensity is reserved for future blending. Always 1.0 today.
	Intensity float64 `json:"intensity"`
}

// Durations holds the unscaled per-class duration estimates in seconds.
type Durations struct {
	Vowel     float64 `yaml:"vowel"`
	Consonant float64 `yaml:"consonant"`
	Silence   float64 `yaml:"silence"`
}

// DefaultDurations are rough spoken-English estimates: vowels run longer
// than consonants, inter-word pauses sit in between.
var DefaultDurations = Durations{Vowel: 0.15, Consonant: 0.08, Silence: 0.10}

// Mapper is the viseme timeline engine. It bundles the category table, the
// word pronunciation dictionary, and the duration estimates.
//
// A Mapper is immutable after construction and safe for concurrent use;
// build one at startup and inject it into callers.
type Mapper struct {
	table       *Table
	durations   Durations
	dict        map[string][]string
	phonetic    bool
	byMetaphone map[string]string
}

// Option is a functional option for [NewMapper].
type Option func(*Mapper)

// WithTable replaces the default category table.
func WithTable(t *Table) Option {
	return func(m *Mapper) { m.table = t }
}

// WithDurations replaces the default per-class duration estimates.
func WithDurations(d Durations) Option {
	return func(m *Mapper) { m.durations = d }
}

// WithDictionary replaces the default word pronunciation dictionary.
// The mapper takes ownership of dict; callers must not mutate it afterwards.
func WithDictionary(dict map[string][]string) Option {
	return func(m *Mapper) { m.dict = dict }
}

// WithPhoneticLookup enables a Double Metaphone nearest-match pass for words
// missing from the dictionary: a word whose phonetic code matches a
// dictionary word (e.g. a misspelling like "helo") borrows that word's
// pronunciation instead of falling back to per-letter rules. The pass is
// deterministic. Off by default.
func WithPhoneticLookup() Option {
	return func(m *Mapper) { m.phonetic = true }
}

// NewMapper builds a Mapper from the default table, dictionary, and
// durations, adjusted by opts.
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{
		table:     Default(),
		durations: DefaultDurations,
		dict:      defaultDictionary,
	}
	for _, o := range opts {
		o(m)
	}
	if m.phonetic {
		m.byMetaphone = buildMetaphoneIndex(m.dict)
	}
	return m
}

// Table returns the category table this mapper resolves phonemes against.
func (m *Mapper) Table() *Table { return m.table }

// MapPhonemes converts a phoneme sequence into unscaled frames, one frame
// per phoneme in input order — adjacent identical visemes are not merged.
//
// Each phoneme resolves to its category (silence id 0 when unmapped) and
// receives the duration estimate for the category's class. A phoneme the
// table does not know renders as the silence viseme but takes the consonant
// duration, since it is almost always an un-catalogued speech sound rather
// than a pause. Start times are the running sum of prior durations.
func (m *Mapper) MapPhonemes(phonemes []string) []Frame {
	if len(phonemes) == 0 {
		return nil
	}

	frames := make([]Frame, 0, len(phonemes))
	var now float64
	for _, ph := range phonemes {
		cat, mapped := m.table.Lookup(ph)

		class := cat.Class
		if !mapped {
			class = ClassConsonant
		}
		var dur float64
		switch class {
		case ClassVowel:
			dur = m.durations.Vowel
		case ClassSilence:
			dur = m.durations.Silence
		default:
			dur = m.durations.Consonant
		}

		frames = append(frames, Frame{
			VisemeID:   cat.ID,
			VisemeName: cat.Name,
			ImagePath:  cat.ImagePath,
			StartTime:  now,
			Duration:   dur,
			Intensity:  1.0,
		})
		now += dur
	}
	return frames
}

// ScaleToTarget uniformly rescales frames so their total duration equals
// target seconds, preserving the relative proportions between frames.
//
// When frames is empty or the raw total is not positive, the input is
// returned as a copy, unchanged — there is nothing meaningful to scale and
// the guard avoids a divide by zero. A zero or negative target is accepted
// and yields a degenerate timeline; supplying a sane target is the caller's
// responsibility.
//
// After scaling, start times are recomputed as the running cumulative sum of
// the scaled durations (not re-derived independently), so contiguity holds
// exactly under floating point.
func ScaleToTarget(frames []Frame, target float64) []Frame {
	out := make([]Frame, len(frames))
	copy(out, frames)
	if len(out) == 0 {
		return out
	}

	var rawTotal float64
	for _, f := range out {
		rawTotal += f.Duration
	}
	if rawTotal <= 0 {
		return out
	}

	scale := target / rawTotal
	var now float64
	for i := range out {
		out[i].Duration *= scale
		out[i].StartTime = now
		now += out[i].Duration
	}
	return out
}

// BuildTimeline converts text into a viseme timeline whose total duration
// equals target seconds. It composes [Mapper.Phonemes],
// [Mapper.MapPhonemes], and [ScaleToTarget], and returns an empty sequence
// when the extractor yields no phonemes.
func (m *Mapper) BuildTimeline(text string, target float64) []Frame {
	phonemes := m.Phonemes(text)
	if len(phonemes) == 0 {
		return nil
	}
	return ScaleToTarget(m.MapPhonemes(phonemes), target)
}

// FrameAt returns the frame active at time t, scanning frames in order for
// the first with StartTime <= t < StartTime+Duration. Intervals are
// half-open: a query exactly at a frame's end time belongs to the next
// frame. ok is false when t falls before the first frame or at/after the
// end of the last.
func FrameAt(frames []Frame, t float64) (frame Frame, ok bool) {
	for _, f := range frames {
		if f.StartTime <= t && t < f.StartTime+f.Duration {
			return f, true
		}
	}
	return Frame{}, false
}
