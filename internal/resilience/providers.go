package resilience

import (
	"context"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/embeddings"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/llm"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/tts"
)

// Compile-time interface checks.
var (
	_ llm.Provider        = (*LLM)(nil)
	_ tts.Provider        = (*TTS)(nil)
	_ embeddings.Provider = (*Embeddings)(nil)
)

// LLM wraps an [llm.Provider] with a breaker around completions. Local
// operations (token counting, capabilities) pass through untouched.
type LLM struct {
	inner   llm.Provider
	breaker *Breaker
}

// NewLLM wraps p with b.
func NewLLM(p llm.Provider, b *Breaker) *LLM {
	return &LLM{inner: p, breaker: b}
}

// Complete implements [llm.Provider].
func (l *LLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var resp *llm.CompletionResponse
	err := l.breaker.Do(func() error {
		var err error
		resp, err = l.inner.Complete(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CountTokens implements [llm.Provider].
func (l *LLM) CountTokens(messages []llm.Message) (int, error) {
	return l.inner.CountTokens(messages)
}

// Capabilities implements [llm.Provider].
func (l *LLM) Capabilities() llm.ModelCapabilities {
	return l.inner.Capabilities()
}

// TTS wraps a [tts.Provider] with a breaker around synthesis. Voice listing
// is an infrequent setup call and bypasses the breaker.
type TTS struct {
	inner   tts.Provider
	breaker *Breaker
}

// NewTTS wraps p with b.
func NewTTS(p tts.Provider, b *Breaker) *TTS {
	return &TTS{inner: p, breaker: b}
}

// Synthesize implements [tts.Provider].
func (t *TTS) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	var audio []byte
	err := t.breaker.Do(func() error {
		var err error
		audio, err = t.inner.Synthesize(ctx, text, voice)
		return err
	})
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// ListVoices implements [tts.Provider].
func (t *TTS) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return t.inner.ListVoices(ctx)
}

// Embeddings wraps an [embeddings.Provider] with a breaker around embedding
// calls. Dimension and model queries pass through.
type Embeddings struct {
	inner   embeddings.Provider
	breaker *Breaker
}

// NewEmbeddings wraps p with b.
func NewEmbeddings(p embeddings.Provider, b *Breaker) *Embeddings {
	return &Embeddings{inner: p, breaker: b}
}

// Embed implements [embeddings.Provider].
func (e *Embeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.breaker.Do(func() error {
		var err error
		vec, err = e.inner.Embed(ctx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch implements [embeddings.Provider].
func (e *Embeddings) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := e.breaker.Do(func() error {
		var err error
		vecs, err = e.inner.EmbedBatch(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vecs, nil
}

// Dimensions implements [embeddings.Provider].
func (e *Embeddings) Dimensions() int { return e.inner.Dimensions() }

// ModelID implements [embeddings.Provider].
func (e *Embeddings) ModelID() string { return e.inner.ModelID() }
