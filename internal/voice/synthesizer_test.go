package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"math"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/nipun-marak/realtime-avatar-chat/internal/observe"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/tts"
	ttsmock "github.com/nipun-marak/realtime-avatar-chat/pkg/provider/tts/mock"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/viseme"
)

var testVoice = tts.VoiceProfile{ID: "voice-1", Name: "Test", Provider: "mock"}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	mapper := viseme.NewMapper()

	if _, err := New(nil, mapper, testVoice); err == nil {
		t.Error("expected error for nil provider")
	}
	if _, err := New(&ttsmock.Provider{}, nil, testVoice); err == nil {
		t.Error("expected error for nil mapper")
	}
	if _, err := New(&ttsmock.Provider{}, mapper, tts.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice ID")
	}
	if _, err := New(&ttsmock.Provider{}, mapper, testVoice, WithWordsPerMinute(0)); err == nil {
		t.Error("expected error for zero speaking rate")
	}
}

func TestEstimateDuration(t *testing.T) {
	t.Parallel()
	s, err := New(&ttsmock.Provider{}, viseme.NewMapper(), testVoice, WithWordsPerMinute(150))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		text string
		want float64
	}{
		{"", 0},
		{"hello", 0.4},
		{"one two three four five", 2.0},
		{"  spaced   out  ", 0.8},
	}
	for _, tt := range tests {
		if got := s.EstimateDuration(tt.text); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("EstimateDuration(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSpeak(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &ttsmock.Provider{Audio: []byte("mp3-bytes")}
	s, err := New(provider, viseme.NewMapper(), testVoice)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	speech, err := s.Speak(ctx, "hello world")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if got := base64.StdEncoding.EncodeToString([]byte("mp3-bytes")); speech.AudioB64 != got {
		t.Errorf("AudioB64 = %q, want %q", speech.AudioB64, got)
	}
	if want := 2.0 / 150 * 60; math.Abs(speech.EstimatedDuration-want) > 1e-9 {
		t.Errorf("EstimatedDuration = %v, want %v", speech.EstimatedDuration, want)
	}
	if len(speech.Frames) == 0 {
		t.Fatal("no viseme frames")
	}

	// Timeline spans exactly the estimated duration.
	last := speech.Frames[len(speech.Frames)-1]
	if got := last.StartTime + last.Duration; math.Abs(got-speech.EstimatedDuration) > 1e-9 {
		t.Errorf("timeline ends at %v, want %v", got, speech.EstimatedDuration)
	}

	// The configured voice reaches the provider.
	if len(provider.SynthesizeCalls) != 1 {
		t.Fatalf("got %d Synthesize calls, want 1", len(provider.SynthesizeCalls))
	}
	call := provider.SynthesizeCalls[0]
	if call.Voice.ID != "voice-1" || call.Text != "hello world" {
		t.Errorf("Synthesize called with voice=%q text=%q", call.Voice.ID, call.Text)
	}
}

func TestSpeak_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := New(&ttsmock.Provider{SynthesizeErr: errors.New("quota exceeded")}, viseme.NewMapper(), testVoice)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := s.Speak(ctx, "   "); err == nil {
		t.Error("expected error for blank text")
	}
	if _, err := s.Speak(ctx, "hello"); err == nil {
		t.Error("expected synthesis error to propagate")
	}
}

func TestSpeak_RecordsTimelineMetric(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	s, err := New(&ttsmock.Provider{Audio: []byte("mp3")}, viseme.NewMapper(), testVoice, WithMetrics(metrics))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := s.Speak(ctx, "hello world"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	s.Timeline("hi")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "avatarchat.viseme.build.duration" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			var count uint64
			for _, dp := range hist.DataPoints {
				count += dp.Count
			}
			if count != 2 {
				t.Errorf("timeline build count = %d, want 2", count)
			}
			return
		}
	}
	t.Error("avatarchat.viseme.build.duration was not recorded")
}

func TestTimeline_NoAudio(t *testing.T) {
	t.Parallel()

	s, err := New(&ttsmock.Provider{}, viseme.NewMapper(), testVoice)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frames := s.Timeline("hi")
	if len(frames) == 0 {
		t.Fatal("no frames for non-empty text")
	}
	if frames[0].StartTime != 0 {
		t.Errorf("first frame starts at %v", frames[0].StartTime)
	}
	if got := s.Timeline(""); len(got) != 0 {
		t.Errorf("empty text produced %d frames", len(got))
	}
}
