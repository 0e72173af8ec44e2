// Package mock provides a test double for the tts.Provider interface.
//
// Set Audio before injecting the mock; every Synthesize call returns it.
// Calls are recorded for assertion after the test.
package mock

import (
	"context"
	"sync"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Audio is returned by Synthesize.
	Audio []byte

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// Voices is returned by ListVoices.
	Voices []tts.VoiceProfile

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// SynthesizeCalls records every invocation of Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(_ context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	out := make([]byte, len(p.Audio))
	copy(out, p.Audio)
	return out, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListVoicesErr != nil {
		return nil, p.ListVoicesErr
	}
	out := make([]tts.VoiceProfile, len(p.Voices))
	copy(out, p.Voices)
	return out, nil
}
