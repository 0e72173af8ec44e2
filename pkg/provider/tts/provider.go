// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g. ElevenLabs) behind a
// request/response interface: the companion synthesises one complete reply
// at a time and pairs the whole clip with a viseme timeline, so streaming
// buys nothing here.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// VoiceProfile identifies one synthesisable voice.
type VoiceProfile struct {
	// ID is the provider-assigned voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider names the backend this voice belongs to (e.g. "elevenlabs").
	Provider string

	// Metadata carries provider-specific labels (accent, gender, category, …).
	Metadata map[string]string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text into a complete encoded audio clip using the
	// given voice. The returned bytes are in the provider's configured output
	// format (MP3 for ElevenLabs by default).
	//
	// Returns an error if the voice is unknown, the service rejects the
	// request, or ctx is cancelled.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) ([]byte, error)

	// ListVoices returns all voice profiles available from this provider.
	// The catalogue may change between calls.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
