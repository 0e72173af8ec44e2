package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":        {"elevenlabs"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; the companion will not be able to generate replies")
	}

	// Embeddings ↔ memory dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but memory.embedding_dimensions is not set; defaulting to 1536")
	}
	if cfg.Memory.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("memory.embedding_dimensions %d must not be negative", cfg.Memory.EmbeddingDimensions))
	}

	// Memory availability
	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("memory.postgres_dsn is empty; state is kept in memory and lost on restart")
	}

	// Chat
	if cfg.Chat.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("chat.history_limit %d must not be negative", cfg.Chat.HistoryLimit))
	}
	if cfg.Chat.RecallTopK < 0 {
		errs = append(errs, fmt.Errorf("chat.recall_top_k %d must not be negative", cfg.Chat.RecallTopK))
	}
	if cfg.Chat.Temperature < 0 || cfg.Chat.Temperature > 2 {
		errs = append(errs, fmt.Errorf("chat.temperature %.2f is out of range [0, 2]", cfg.Chat.Temperature))
	}

	// Voice ↔ TTS cross-validation
	if cfg.Voice.VoiceID != "" && cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("voice.voice_id is set but providers.tts is not configured"))
	}
	if cfg.Voice.WordsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("voice.words_per_minute %.1f must not be negative", cfg.Voice.WordsPerMinute))
	}

	// Viseme durations
	d := cfg.Viseme.Durations
	if d.Vowel < 0 || d.Consonant < 0 || d.Silence < 0 {
		errs = append(errs, errors.New("viseme.durations values must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
