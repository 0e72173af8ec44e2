package viseme_test

import (
	"math"
	"testing"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/viseme"
)

const timeEps = 1e-9

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestMapPhonemes_OneFramePerPhoneme(t *testing.T) {
	t.Parallel()
	m := viseme.NewMapper()

	phonemes := []string{"h", "eh", "l", "ow", "sil", "h", "eh", "l", "ow"}
	frames := m.MapPhonemes(phonemes)
	if len(frames) != len(phonemes) {
		t.Fatalf("got %d frames for %d phonemes", len(frames), len(phonemes))
	}

	// Repeated phonemes yield repeated frames; nothing is merged.
	if frames[0].VisemeID != frames[5].VisemeID {
		t.Errorf("identical phonemes mapped to different visemes: %d vs %d",
			frames[0].VisemeID, frames[5].VisemeID)
	}
	for i, f := range frames {
		if f.Intensity != 1.0 {
			t.Errorf("frame %d intensity = %v, want 1.0", i, f.Intensity)
		}
	}
}

func TestMapPhonemes_Durations(t *testing.T) {
	t.Parallel()
	m := viseme.NewMapper()

	tests := []struct {
		phoneme string
		id      int
		dur     float64
	}{
		{"ae", 10, 0.15},
		{"t", 4, 0.08},
		{"sil", 0, 0.10},
		// Unmapped symbols render as silence but keep a consonant's length.
		{"h", 0, 0.08},
	}
	for _, tt := range tests {
		t.Run(tt.phoneme, func(t *testing.T) {
			frames := m.MapPhonemes([]string{tt.phoneme})
			if len(frames) != 1 {
				t.Fatalf("got %d frames, want 1", len(frames))
			}
			f := frames[0]
			if f.VisemeID != tt.id {
				t.Errorf("viseme id = %d, want %d", f.VisemeID, tt.id)
			}
			if !almostEqual(f.Duration, tt.dur) {
				t.Errorf("duration = %v, want %v", f.Duration, tt.dur)
			}
		})
	}
}

func TestMapPhonemes_StartTimesAreCumulative(t *testing.T) {
	t.Parallel()
	m := viseme.NewMapper()

	frames := m.MapPhonemes([]string{"h", "ay", "sil", "y", "uw"})
	if frames[0].StartTime != 0 {
		t.Errorf("first frame starts at %v, want 0", frames[0].StartTime)
	}
	for i := 1; i < len(frames); i++ {
		prevEnd := frames[i-1].StartTime + frames[i-1].Duration
		if math.Abs(frames[i].StartTime-prevEnd) > timeEps {
			t.Errorf("frame %d starts at %v, previous ends at %v", i, frames[i].StartTime, prevEnd)
		}
	}
}

func TestScaleToTarget(t *testing.T) {
	t.Parallel()
	m := viseme.NewMapper()

	raw := m.MapPhonemes(m.Phonemes("good morning how are you"))
	scaled := viseme.ScaleToTarget(raw, 2.5)

	if len(scaled) != len(raw) {
		t.Fatalf("scaling changed frame count: %d -> %d", len(raw), len(scaled))
	}

	var total float64
	for _, f := range scaled {
		total += f.Duration
	}
	if !almostEqual(total, 2.5) {
		t.Errorf("scaled total = %v, want 2.5", total)
	}

	// Relative proportions survive the rescale.
	ratioRaw := raw[0].Duration / raw[1].Duration
	ratioScaled := scaled[0].Duration / scaled[1].Duration
	if !almostEqual(ratioRaw, ratioScaled) {
		t.Errorf("duration ratio changed: %v -> %v", ratioRaw, ratioScaled)
	}

	// Contiguity holds exactly after scaling.
	for i := 1; i < len(scaled); i++ {
		prevEnd := scaled[i-1].StartTime + scaled[i-1].Duration
		if math.Abs(scaled[i].StartTime-prevEnd) > timeEps {
			t.Errorf("frame %d starts at %v, previous ends at %v", i, scaled[i].StartTime, prevEnd)
		}
	}

	// Input is untouched.
	if !almostEqual(raw[0].Duration, 0.08) {
		t.Errorf("input frame mutated: duration = %v", raw[0].Duration)
	}
}

func TestScaleToTarget_Guards(t *testing.T) {
	t.Parallel()

	if got := viseme.ScaleToTarget(nil, 3.0); len(got) != 0 {
		t.Errorf("scaling empty input yielded %d frames", len(got))
	}

	// Zero raw total cannot be scaled; frames pass through unchanged.
	zero := []viseme.Frame{{VisemeID: 4, Duration: 0}, {VisemeID: 10, Duration: 0}}
	got := viseme.ScaleToTarget(zero, 3.0)
	if len(got) != 2 || got[0].Duration != 0 || got[1].Duration != 0 {
		t.Errorf("zero-duration frames changed: %+v", got)
	}
}

func TestBuildTimeline(t *testing.T) {
	t.Parallel()
	m := viseme.NewMapper()

	// "hi" is [h, ay]: an unmapped consonant (0.08) and a vowel (0.15).
	// Stretched to one second that is 8/23 and 15/23.
	frames := m.BuildTimeline("hi", 1.0)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].StartTime != 0 {
		t.Errorf("first frame starts at %v, want 0", frames[0].StartTime)
	}
	if !almostEqual(frames[0].Duration, 8.0/23.0) {
		t.Errorf("first duration = %v, want %v", frames[0].Duration, 8.0/23.0)
	}
	if !almostEqual(frames[1].StartTime, 8.0/23.0) {
		t.Errorf("second start = %v, want %v", frames[1].StartTime, 8.0/23.0)
	}
	if !almostEqual(frames[1].Duration, 15.0/23.0) {
		t.Errorf("second duration = %v, want %v", frames[1].Duration, 15.0/23.0)
	}
}

func TestBuildTimeline_EmptyText(t *testing.T) {
	t.Parallel()
	m := viseme.NewMapper()

	if frames := m.BuildTimeline("", 2.0); len(frames) != 0 {
		t.Errorf("empty text yielded %d frames", len(frames))
	}
	if frames := m.BuildTimeline("...", 2.0); len(frames) != 0 {
		t.Errorf("word-free text yielded %d frames", len(frames))
	}
}

func TestFrameAt(t *testing.T) {
	t.Parallel()

	frames := []viseme.Frame{
		{VisemeID: 1, StartTime: 0, Duration: 0.3},
		{VisemeID: 2, StartTime: 0.3, Duration: 0.7},
	}

	tests := []struct {
		name   string
		t      float64
		wantID int
		wantOK bool
	}{
		{"start of timeline", 0, 1, true},
		{"inside first frame", 0.15, 1, true},
		{"boundary belongs to next frame", 0.3, 2, true},
		{"inside second frame", 0.9, 2, true},
		{"before timeline", -0.1, 0, false},
		{"exact end of timeline", 1.0, 0, false},
		{"after timeline", 5.0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := viseme.FrameAt(frames, tt.t)
			if ok != tt.wantOK {
				t.Fatalf("FrameAt(%v) ok = %v, want %v", tt.t, ok, tt.wantOK)
			}
			if ok && f.VisemeID != tt.wantID {
				t.Errorf("FrameAt(%v) viseme = %d, want %d", tt.t, f.VisemeID, tt.wantID)
			}
		})
	}

	if _, ok := viseme.FrameAt(nil, 0); ok {
		t.Error("FrameAt on empty timeline reported a frame")
	}
}
