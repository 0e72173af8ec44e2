package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/nipun-marak/realtime-avatar-chat/internal/observe"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/memory"
	memmock "github.com/nipun-marak/realtime-avatar-chat/pkg/memory/mock"
	embmock "github.com/nipun-marak/realtime-avatar-chat/pkg/provider/embeddings/mock"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/llm"
	llmmock "github.com/nipun-marak/realtime-avatar-chat/pkg/provider/llm/mock"
)

func newTestCompanion(t *testing.T, provider llm.Provider) (*Companion, *memmock.Store) {
	t.Helper()
	store := memmock.NewStore()
	c, err := New(provider, &embmock.Provider{}, Stores{
		Users:         store.Users(),
		Conversations: store.Conversations(),
		Tasks:         store.Tasks(),
		Memories:      store.Memories(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, store
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	store := memmock.NewStore()

	if _, err := New(nil, nil, Stores{}); err == nil {
		t.Error("expected error for nil provider")
	}

	// Embedder without a memory index is a wiring mistake.
	_, err := New(&llmmock.Provider{}, &embmock.Provider{}, Stores{
		Users:         store.Users(),
		Conversations: store.Conversations(),
		Tasks:         store.Tasks(),
	})
	if err == nil {
		t.Error("expected error for embedder without memory index")
	}

	// No embedder and no index is a valid memory-less configuration.
	_, err = New(&llmmock.Provider{}, nil, Stores{
		Users:         store.Users(),
		Conversations: store.Conversations(),
		Tasks:         store.Tasks(),
	})
	if err != nil {
		t.Errorf("memory-less configuration rejected: %v", err)
	}
}

func TestRespond_RecordsRecallMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"response": "hi"}`},
	}
	store := memmock.NewStore()
	c, err := New(provider, &embmock.Provider{}, Stores{
		Users:         store.Users(),
		Conversations: store.Conversations(),
		Tasks:         store.Tasks(),
		Memories:      store.Memories(),
	}, WithMetrics(metrics))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	user, _ := store.Users().GetOrCreate(ctx, "alex")

	if _, err := c.Respond(ctx, user, "hello"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var recalls int64
	var embedCount uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "avatarchat.memory.recalls":
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatalf("unexpected data type %T", m.Data)
				}
				for _, dp := range sum.DataPoints {
					recalls += dp.Value
				}
			case "avatarchat.embedding.duration":
				hist, ok := m.Data.(metricdata.Histogram[float64])
				if !ok {
					t.Fatalf("unexpected data type %T", m.Data)
				}
				for _, dp := range hist.DataPoints {
					embedCount += dp.Count
				}
			}
		}
	}
	if recalls != 1 {
		t.Errorf("memory recalls = %d, want 1", recalls)
	}
	if embedCount != 1 {
		t.Errorf("embedding duration count = %d, want 1", embedCount)
	}
}

func TestRespond_Exchange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"response": "That sounds hard. What part weighs on you most?",
				"updated_summary": "Feeling overwhelmed at work",
				"behavioral_analysis": "stress",
				"applied_technique": "",
				"updated_behavioral_notes": "tends to bottle things up"}`,
		},
	}
	c, store := newTestCompanion(t, provider)
	user, _ := store.Users().GetOrCreate(ctx, "alex")

	got, err := c.Respond(ctx, user, "work is too much right now")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if want := "That sounds hard. What part weighs on you most?"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}

	// Both turns are logged.
	turns, _ := store.Conversations().Recent(ctx, user.ID, 10)
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("logged turns = %+v", turns)
	}

	// The model's updated understanding is written back.
	updated, _ := store.Users().GetOrCreate(ctx, "alex")
	if updated.PersonalitySummary != "Feeling overwhelmed at work" {
		t.Errorf("summary = %q", updated.PersonalitySummary)
	}
	if updated.BehavioralNotes != "tends to bottle things up" {
		t.Errorf("notes = %q", updated.BehavioralNotes)
	}

	// The exchange is captured as a long-term memory.
	results, _ := store.Memories().Search(ctx, user.ID, []float32{1, 0, 0, 0, 0, 0, 0, 0}, 10)
	if len(results) != 1 {
		t.Fatalf("captured %d memories, want 1", len(results))
	}
	if !strings.Contains(results[0].Memory.Content, "work is too much") {
		t.Errorf("memory content = %q", results[0].Memory.Content)
	}
}

func TestRespond_FencedJSON(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "```json\n{\"response\": \"Hello there!\"}\n```",
		},
	}
	c, store := newTestCompanion(t, provider)
	user, _ := store.Users().GetOrCreate(ctx, "alex")

	got, err := c.Respond(ctx, user, "hi")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != "Hello there!" {
		t.Errorf("reply = %q", got)
	}
}

func TestRespond_FallbackOnModelError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &llmmock.Provider{CompleteErr: errors.New("backend down")}
	c, store := newTestCompanion(t, provider)
	user, _ := store.Users().GetOrCreate(ctx, "alex")

	got, err := c.Respond(ctx, user, "hello?")
	if err != nil {
		t.Fatalf("Respond should not fail on model error, got: %v", err)
	}
	if got != fallbackReply {
		t.Errorf("reply = %q, want fallback", got)
	}

	// Fallback exchanges are not captured as memories.
	results, _ := store.Memories().Search(ctx, user.ID, []float32{1, 0, 0, 0, 0, 0, 0, 0}, 10)
	if len(results) != 0 {
		t.Errorf("fallback exchange captured %d memories", len(results))
	}
}

func TestRespond_FallbackOnGarbageJSON(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "sorry, no JSON today"},
	}
	c, store := newTestCompanion(t, provider)
	user, _ := store.Users().GetOrCreate(ctx, "alex")

	got, err := c.Respond(ctx, user, "hello?")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != fallbackReply {
		t.Errorf("reply = %q, want fallback", got)
	}
}

func TestRespond_RejectsEmptyInput(t *testing.T) {
	t.Parallel()
	c, store := newTestCompanion(t, &llmmock.Provider{})
	user, _ := store.Users().GetOrCreate(context.Background(), "alex")

	if _, err := c.Respond(context.Background(), user, "   "); err == nil {
		t.Error("expected error for blank input")
	}
}

func TestRespond_SendsHistoryAndPersona(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"response": "ok"}`},
	}
	c, store := newTestCompanion(t, provider)
	user, _ := store.Users().GetOrCreate(ctx, "alex")
	_ = store.Users().UpdateSummary(ctx, user.ID, "loves gardening")
	user, _ = store.Users().GetOrCreate(ctx, "alex")

	_ = store.Conversations().Append(ctx, user.ID, memory.Turn{Role: "user", Content: "earlier message", Timestamp: time.Now()})
	_ = store.Conversations().Append(ctx, user.ID, memory.Turn{Role: "model", Content: "earlier reply", Timestamp: time.Now()})

	if _, err := c.Respond(ctx, user, "new message"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("got %d Complete calls, want 1", len(provider.CompleteCalls))
	}
	req := provider.CompleteCalls[0].Req

	if !strings.Contains(req.SystemPrompt, "alex") || !strings.Contains(req.SystemPrompt, "loves gardening") {
		t.Error("system prompt missing user context")
	}
	if len(req.Messages) != 3 {
		t.Fatalf("got %d messages, want history(2) + new(1)", len(req.Messages))
	}
	// Legacy "model" role is normalised for the provider.
	if req.Messages[1].Role != "assistant" {
		t.Errorf("history role = %q, want assistant", req.Messages[1].Role)
	}
	if req.Messages[2].Content != "new message" {
		t.Errorf("last message = %q", req.Messages[2].Content)
	}
}

func TestCommands(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, store := newTestCompanion(t, &llmmock.Provider{})
	user, _ := store.Users().GetOrCreate(ctx, "alex")

	// Empty list first.
	got, err := c.Respond(ctx, user, "/view")
	if err != nil {
		t.Fatalf("/view: %v", err)
	}
	if !strings.Contains(got, "No pending tasks") {
		t.Errorf("/view on empty list = %q", got)
	}

	got, _ = c.Respond(ctx, user, "/add water the plants")
	if !strings.Contains(got, "water the plants") {
		t.Errorf("/add reply = %q", got)
	}

	got, _ = c.Respond(ctx, user, "/view")
	if !strings.Contains(got, "[1] water the plants") {
		t.Errorf("/view = %q", got)
	}

	got, _ = c.Respond(ctx, user, "/done 1")
	if !strings.Contains(got, "done") {
		t.Errorf("/done reply = %q", got)
	}
	got, _ = c.Respond(ctx, user, "/done 1")
	if !strings.Contains(got, "couldn't find") {
		t.Errorf("/done on completed task = %q", got)
	}

	got, _ = c.Respond(ctx, user, "/remove 99")
	if !strings.Contains(got, "couldn't find") {
		t.Errorf("/remove missing = %q", got)
	}

	// Unknown commands are acknowledged, never sent to the model.
	got, _ = c.Respond(ctx, user, "/dance")
	if got != "Command executed." {
		t.Errorf("unknown command = %q", got)
	}
	if n := len((&llmmock.Provider{}).CompleteCalls); n != 0 {
		t.Errorf("model called %d times for commands", n)
	}
}

func TestGreet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Hey alex, thinking of you!"},
	}
	store := memmock.NewStore()
	c, err := New(provider, nil, Stores{
		Users:         store.Users(),
		Conversations: store.Conversations(),
		Tasks:         store.Tasks(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// First meeting.
	got, err := c.Greet(ctx, "alex")
	if err != nil {
		t.Fatalf("Greet: %v", err)
	}
	if !strings.Contains(got, "nice to meet you") {
		t.Errorf("new-user greeting = %q", got)
	}

	// Known and recently seen.
	user, _ := store.Users().GetOrCreate(ctx, "alex")
	_ = store.Users().UpdateSummary(ctx, user.ID, "likes chess")
	got, _ = c.Greet(ctx, "alex")
	if !strings.Contains(got, "What's on your mind") {
		t.Errorf("recent-user greeting = %q", got)
	}

	// Away for two days: the model writes the check-in.
	c.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	got, _ = c.Greet(ctx, "alex")
	if got != "Hey alex, thinking of you!" {
		t.Errorf("check-in greeting = %q", got)
	}

	// Model failure degrades to the canned line.
	provider.CompleteErr = errors.New("backend down")
	got, _ = c.Greet(ctx, "alex")
	if !strings.Contains(got, "It's been a while") {
		t.Errorf("degraded check-in = %q", got)
	}
}
