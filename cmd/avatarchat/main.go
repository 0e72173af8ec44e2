// Command avatarchat is the main entry point for the avatar chat server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/nipun-marak/realtime-avatar-chat/internal/chat"
	"github.com/nipun-marak/realtime-avatar-chat/internal/config"
	"github.com/nipun-marak/realtime-avatar-chat/internal/health"
	"github.com/nipun-marak/realtime-avatar-chat/internal/observe"
	"github.com/nipun-marak/realtime-avatar-chat/internal/resilience"
	"github.com/nipun-marak/realtime-avatar-chat/internal/server"
	"github.com/nipun-marak/realtime-avatar-chat/internal/voice"
	memmock "github.com/nipun-marak/realtime-avatar-chat/pkg/memory/mock"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/memory/postgres"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/embeddings"
	ollamaembed "github.com/nipun-marak/realtime-avatar-chat/pkg/provider/embeddings/ollama"
	oaembed "github.com/nipun-marak/realtime-avatar-chat/pkg/provider/embeddings/openai"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/llm"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/llm/anyllm"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/tts"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/tts/elevenlabs"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/viseme"
)

const (
	defaultListenAddr    = ":8080"
	defaultEmbeddingDims = 1536
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "avatarchat: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "avatarchat: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("avatarchat starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "avatarchat",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	ps, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	if ps.LLM == nil {
		slog.Error("no LLM provider configured — the companion cannot run without one")
		return 1
	}

	// ── Memory store ──────────────────────────────────────────────────────────
	stores, pinger, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open memory store", "err", err)
		return 1
	}
	defer closeStore()

	// ── Companion ─────────────────────────────────────────────────────────────
	companionStores := stores
	if ps.Embeddings == nil {
		// Recall and capture need an embedder; without one the companion runs
		// on short-term history alone.
		companionStores.Memories = nil
	}
	var chatOpts []chat.Option
	if cfg.Chat.HistoryLimit > 0 {
		chatOpts = append(chatOpts, chat.WithHistoryLimit(cfg.Chat.HistoryLimit))
	}
	if cfg.Chat.RecallTopK > 0 {
		chatOpts = append(chatOpts, chat.WithRecallTopK(cfg.Chat.RecallTopK))
	}
	if cfg.Chat.Temperature > 0 {
		chatOpts = append(chatOpts, chat.WithTemperature(cfg.Chat.Temperature))
	}
	companion, err := chat.New(ps.LLM, ps.Embeddings, companionStores, chatOpts...)
	if err != nil {
		slog.Error("failed to build companion", "err", err)
		return 1
	}

	// ── Speech synthesis (optional) ───────────────────────────────────────────
	var srvOpts []server.Option
	if ps.TTS != nil {
		synth, err := buildSynthesizer(cfg, ps.TTS)
		if err != nil {
			slog.Error("failed to build synthesizer", "err", err)
			return 1
		}
		srvOpts = append(srvOpts, server.WithSynthesizer(synth))
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srvCfg := server.Config{
		ListenAddr:    cfg.Server.ListenAddr,
		SessionSecret: cfg.Server.SessionSecret,
	}
	if srvCfg.ListenAddr == "" {
		srvCfg.ListenAddr = defaultListenAddr
	}
	if cfg.Server.TLS != nil {
		srvCfg.CertFile = cfg.Server.TLS.CertFile
		srvCfg.KeyFile = cfg.Server.TLS.KeyFile
	}

	checkers := []health.Checker{health.NewPingChecker("database", pinger)}

	srv, err := server.New(srvCfg, companion, stores.Users, checkers, srvOpts...)
	if err != nil {
		slog.Error("failed to build server", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, srvCfg.ListenAddr)

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providers holds the instantiated provider set for this process.
type providers struct {
	LLM        llm.Provider
	TTS        tts.Provider
	Embeddings embeddings.Provider
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		stability, okS := optFloat(entry.Options, "stability")
		boost, okB := optFloat(entry.Options, "similarity_boost")
		if okS && okB {
			opts = append(opts, elevenlabs.WithVoiceSettings(stability, boost))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})
}

// buildProviders instantiates all providers named in cfg using the registry.
// Every external provider is wrapped in a circuit breaker so a dead backend
// fails fast instead of stalling each exchange on a timeout.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providers, error) {
	ps := &providers{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "llm", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		} else {
			ps.LLM = resilience.NewLLM(p, resilience.NewBreaker(resilience.Settings{Name: "llm/" + name}))
			slog.Info("provider created", "kind", "llm", "name", name)
		}
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "tts", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		} else {
			ps.TTS = resilience.NewTTS(p, resilience.NewBreaker(resilience.Settings{Name: "tts/" + name}))
			slog.Info("provider created", "kind", "tts", "name", name)
		}
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "embeddings", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		} else {
			ps.Embeddings = resilience.NewEmbeddings(p, resilience.NewBreaker(resilience.Settings{Name: "embeddings/" + name}))
			slog.Info("provider created", "kind", "embeddings", "name", name)
		}
	}

	return ps, nil
}

// ── Store wiring ──────────────────────────────────────────────────────────────

// buildStore opens the pgvector-backed store when a DSN is configured and
// falls back to the in-memory store otherwise.
func buildStore(ctx context.Context, cfg *config.Config) (chat.Stores, health.Pinger, func(), error) {
	if dsn := cfg.Memory.PostgresDSN; dsn != "" {
		dims := cfg.Memory.EmbeddingDimensions
		if dims <= 0 {
			dims = defaultEmbeddingDims
		}
		store, err := postgres.NewStore(ctx, dsn, dims)
		if err != nil {
			return chat.Stores{}, nil, nil, err
		}
		slog.Info("postgres memory store connected", "embedding_dims", dims)
		return chat.Stores{
			Users:         store.Users(),
			Conversations: store.Conversations(),
			Tasks:         store.Tasks(),
			Memories:      store.Memories(),
		}, store, store.Close, nil
	}

	store := memmock.NewStore()
	slog.Warn("running on the in-memory store; state is lost on restart")
	return chat.Stores{
		Users:         store.Users(),
		Conversations: store.Conversations(),
		Tasks:         store.Tasks(),
		Memories:      store.Memories(),
	}, store, store.Close, nil
}

// ── Voice wiring ──────────────────────────────────────────────────────────────

func buildSynthesizer(cfg *config.Config, provider tts.Provider) (*voice.Synthesizer, error) {
	voiceID := cfg.Voice.VoiceID
	if voiceID == "" {
		voiceID = elevenlabs.DefaultVoiceID
	}
	profile := tts.VoiceProfile{
		ID:       voiceID,
		Provider: cfg.Providers.TTS.Name,
	}

	var opts []voice.Option
	if cfg.Voice.WordsPerMinute > 0 {
		opts = append(opts, voice.WithWordsPerMinute(cfg.Voice.WordsPerMinute))
	}
	return voice.New(provider, buildMapper(cfg), profile, opts...)
}

// buildMapper constructs the viseme engine, overriding only the duration
// estimates the config actually sets.
func buildMapper(cfg *config.Config) *viseme.Mapper {
	d := viseme.DefaultDurations
	if v := cfg.Viseme.Durations.Vowel; v > 0 {
		d.Vowel = v
	}
	if v := cfg.Viseme.Durations.Consonant; v > 0 {
		d.Consonant = v
	}
	if v := cfg.Viseme.Durations.Silence; v > 0 {
		d.Silence = v
	}

	opts := []viseme.Option{viseme.WithDurations(d)}
	if cfg.Viseme.PhoneticLookup {
		opts = append(opts, viseme.WithPhoneticLookup())
	}
	return viseme.NewMapper(opts...)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, listenAddr string) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       avatarchat — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	if cfg.Memory.PostgresDSN != "" {
		fmt.Printf("║  Memory          : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Memory          : %-19s ║\n", "in-memory")
	}
	if cfg.Server.TLS != nil {
		fmt.Printf("║  TLS             : %-19s ║\n", "enabled")
	}
	fmt.Printf("║  Listen addr     : %-19s ║\n", listenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optFloat extracts a numeric value from a provider Options map[string]any.
// YAML decodes numbers as int or float64 depending on the literal.
func optFloat(opts map[string]any, key string) (float64, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
