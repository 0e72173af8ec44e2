package config

import (
	"strings"
	"testing"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
  session_secret: "super-secret"
providers:
  llm:
    name: gemini
    api_key: key-1
    model: gemini-1.5-pro
  tts:
    name: elevenlabs
    api_key: key-2
  embeddings:
    name: openai
    api_key: key-3
memory:
  postgres_dsn: "postgres://localhost:5432/avatarchat"
  embedding_dimensions: 1536
chat:
  history_limit: 30
  recall_top_k: 7
  temperature: 0.7
voice:
  voice_id: "21m00Tcm4TlvDq8ikWAM"
  words_per_minute: 150
viseme:
  durations:
    vowel: 0.15
    consonant: 0.08
    silence: 0.10
  phonetic_lookup: true
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.LLM.Name != "gemini" || cfg.Providers.LLM.Model != "gemini-1.5-pro" {
		t.Errorf("llm provider = %+v", cfg.Providers.LLM)
	}
	if cfg.Memory.EmbeddingDimensions != 1536 {
		t.Errorf("embedding_dimensions = %d", cfg.Memory.EmbeddingDimensions)
	}
	if cfg.Chat.HistoryLimit != 30 || cfg.Chat.RecallTopK != 7 {
		t.Errorf("chat = %+v", cfg.Chat)
	}
	if cfg.Voice.VoiceID != "21m00Tcm4TlvDq8ikWAM" {
		t.Errorf("voice_id = %q", cfg.Voice.VoiceID)
	}
	if cfg.Viseme.Durations.Vowel != 0.15 || !cfg.Viseme.PhoneticLookup {
		t.Errorf("viseme = %+v", cfg.Viseme)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	yaml := `
server:
  listen_addr: ":8080"
  bogus_field: true
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestLoadFromReader_MalformedYAML(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("server: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "server.log_level",
		},
		{
			name:    "tls missing key file",
			mutate:  func(c *Config) { c.Server.TLS = &TLSConfig{CertFile: "cert.pem"} },
			wantErr: "server.tls",
		},
		{
			name:    "negative history limit",
			mutate:  func(c *Config) { c.Chat.HistoryLimit = -1 },
			wantErr: "chat.history_limit",
		},
		{
			name:    "negative recall top k",
			mutate:  func(c *Config) { c.Chat.RecallTopK = -3 },
			wantErr: "chat.recall_top_k",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Chat.Temperature = 3.5 },
			wantErr: "chat.temperature",
		},
		{
			name:    "voice without tts provider",
			mutate:  func(c *Config) { c.Voice.VoiceID = "v1" },
			wantErr: "voice.voice_id",
		},
		{
			name:    "negative speaking rate",
			mutate:  func(c *Config) { c.Voice.WordsPerMinute = -10 },
			wantErr: "voice.words_per_minute",
		},
		{
			name:    "negative viseme duration",
			mutate:  func(c *Config) { c.Viseme.Durations.Vowel = -0.1 },
			wantErr: "viseme.durations",
		},
		{
			name:    "negative embedding dimensions",
			mutate:  func(c *Config) { c.Memory.EmbeddingDimensions = -1 },
			wantErr: "memory.embedding_dimensions",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{}
			tc.mutate(cfg)
			err := Validate(cfg)

			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	cfg := &Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Chat.HistoryLimit = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"server.log_level", "chat.history_limit"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}
