// Package voice turns reply text into speech: an encoded audio clip plus the
// viseme timeline the browser uses to animate the avatar's mouth in sync.
package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nipun-marak/realtime-avatar-chat/internal/observe"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/tts"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/viseme"
)

// defaultWordsPerMinute is an average conversational speaking rate, used to
// estimate clip duration without decoding the audio.
const defaultWordsPerMinute = 150

// Speech is one synthesised utterance, shaped for the browser playback layer.
type Speech struct {
	// AudioB64 is the base64-encoded audio clip (MP3 for ElevenLabs).
	AudioB64 string `json:"audio"`

	// Frames is the viseme timeline scaled to EstimatedDuration.
	Frames []viseme.Frame `json:"viseme_frames"`

	// EstimatedDuration is the estimated clip length in seconds.
	EstimatedDuration float64 `json:"estimated_duration"`
}

// Synthesizer pairs a TTS backend with a viseme mapper. It is immutable
// after construction and safe for concurrent use.
type Synthesizer struct {
	tts     tts.Provider
	mapper  *viseme.Mapper
	voice   tts.VoiceProfile
	wpm     float64
	log     *slog.Logger
	metrics *observe.Metrics
}

// Option is a functional option for [New].
type Option func(*Synthesizer)

// WithWordsPerMinute overrides the speaking rate used for duration estimates.
func WithWordsPerMinute(wpm float64) Option {
	return func(s *Synthesizer) { s.wpm = wpm }
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Synthesizer) { s.log = log }
}

// WithMetrics replaces the default metrics instance, for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Synthesizer) { s.metrics = m }
}

// New creates a Synthesizer speaking with the given voice.
func New(provider tts.Provider, mapper *viseme.Mapper, voice tts.VoiceProfile, opts ...Option) (*Synthesizer, error) {
	if provider == nil {
		return nil, errors.New("voice: tts provider must not be nil")
	}
	if mapper == nil {
		return nil, errors.New("voice: viseme mapper must not be nil")
	}
	if voice.ID == "" {
		return nil, errors.New("voice: voice profile ID must not be empty")
	}

	s := &Synthesizer{
		tts:    provider,
		mapper: mapper,
		voice:  voice,
		wpm:    defaultWordsPerMinute,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.wpm <= 0 {
		return nil, errors.New("voice: words per minute must be positive")
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// EstimateDuration estimates how long text takes to speak, in seconds, from
// the word count and the configured speaking rate.
func (s *Synthesizer) EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	return float64(words) / s.wpm * 60
}

// Timeline builds the viseme timeline for text without synthesising audio,
// for sessions running with voice disabled.
func (s *Synthesizer) Timeline(text string) []viseme.Frame {
	return s.buildTimeline(context.Background(), text, s.EstimateDuration(text))
}

func (s *Synthesizer) buildTimeline(ctx context.Context, text string, duration float64) []viseme.Frame {
	start := time.Now()
	frames := s.mapper.BuildTimeline(text, duration)
	s.metrics.VisemeBuildDuration.Record(ctx, time.Since(start).Seconds())
	return frames
}

// Speak synthesises text into audio and builds the matching viseme timeline.
// The timeline is scaled to the estimated duration so mouth shapes and audio
// start and finish together.
func (s *Synthesizer) Speak(ctx context.Context, text string) (*Speech, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("voice: text is required")
	}

	audio, err := s.tts.Synthesize(ctx, text, s.voice)
	if err != nil {
		return nil, fmt.Errorf("voice: synthesize: %w", err)
	}

	duration := s.EstimateDuration(text)
	frames := s.buildTimeline(ctx, text, duration)
	s.log.Debug("speech synthesised",
		"voice", s.voice.ID,
		"bytes", len(audio),
		"frames", len(frames),
		"duration", duration,
	)

	return &Speech{
		AudioB64:          base64.StdEncoding.EncodeToString(audio),
		Frames:            frames,
		EstimatedDuration: duration,
	}, nil
}
