// Package chat implements the companion conversation engine: persona
// prompting, command handling, history and memory recall, and write-back of
// the model's evolving understanding of the user.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nipun-marak/realtime-avatar-chat/internal/observe"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/memory"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/embeddings"
	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/llm"
)

const (
	defaultHistoryLimit = 30
	defaultRecallTopK   = 7

	// fallbackReply is spoken when the model is unreachable or returns
	// something unparseable. The avatar must always say something.
	fallbackReply = "I'm having a little trouble connecting my thoughts right now. Please try again."
)

// Stores bundles the persistence dependencies of a [Companion].
type Stores struct {
	Users         memory.UserStore
	Conversations memory.ConversationLog
	Tasks         memory.TaskStore
	Memories      memory.MemoryIndex
}

// Companion orchestrates one exchange at a time: recall, prompt, parse,
// persist. It holds no per-user state; all state lives in the stores, so a
// single Companion serves every session concurrently.
type Companion struct {
	llm      llm.Provider
	embedder embeddings.Provider
	stores   Stores
	log      *slog.Logger
	metrics  *observe.Metrics

	historyLimit int
	recallTopK   int
	temperature  float64

	// now is stubbed in tests.
	now func() time.Time
}

// Option is a functional option for [New].
type Option func(*Companion)

// WithHistoryLimit caps how many recent turns are replayed into the prompt.
func WithHistoryLimit(n int) Option {
	return func(c *Companion) { c.historyLimit = n }
}

// WithRecallTopK sets how many long-term memories are recalled per exchange.
func WithRecallTopK(k int) Option {
	return func(c *Companion) { c.recallTopK = k }
}

// WithTemperature sets the sampling temperature for replies.
func WithTemperature(t float64) Option {
	return func(c *Companion) { c.temperature = t }
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Companion) { c.log = log }
}

// WithMetrics replaces the default metrics instance, for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Companion) { c.metrics = m }
}

// New creates a Companion. provider and stores.Users/Conversations/Tasks are
// required; embedder and stores.Memories may be nil together, which disables
// long-term memory recall and capture.
func New(provider llm.Provider, embedder embeddings.Provider, stores Stores, opts ...Option) (*Companion, error) {
	if provider == nil {
		return nil, errors.New("chat: llm provider must not be nil")
	}
	if stores.Users == nil || stores.Conversations == nil || stores.Tasks == nil {
		return nil, errors.New("chat: user, conversation, and task stores must not be nil")
	}
	if (embedder == nil) != (stores.Memories == nil) {
		return nil, errors.New("chat: embedder and memory index must be set together")
	}

	c := &Companion{
		llm:          provider,
		embedder:     embedder,
		stores:       stores,
		log:          slog.Default(),
		historyLimit: defaultHistoryLimit,
		recallTopK:   defaultRecallTopK,
		now:          time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c, nil
}

// reply is the JSON document the model must answer with.
type reply struct {
	Response               string `json:"response"`
	UpdatedSummary         string `json:"updated_summary"`
	BehavioralAnalysis     string `json:"behavioral_analysis"`
	AppliedTechnique       string `json:"applied_technique"`
	UpdatedBehavioralNotes string `json:"updated_behavioral_notes"`
}

// Respond handles one user message and returns the text the avatar should
// speak. Messages starting with "/" are commands and bypass the model.
//
// A model or parse failure never fails the exchange: the companion answers
// with a fixed fallback so the avatar stays responsive, and the error is
// logged. Store write failures after a successful completion are logged and
// swallowed for the same reason.
func (c *Companion) Respond(ctx context.Context, user memory.User, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("chat: message is required")
	}

	if strings.HasPrefix(input, "/") {
		return c.handleCommand(ctx, user, input)
	}

	history, err := c.stores.Conversations.Recent(ctx, user.ID, c.historyLimit)
	if err != nil {
		return "", fmt.Errorf("chat: load history: %w", err)
	}

	memories := c.recall(ctx, user.ID, input)

	out := c.complete(ctx, user, history, memories, input)

	c.persistExchange(ctx, user, input, out)
	return out.Response, nil
}

// recall returns the contents of the user's most relevant memories. Recall
// is best-effort: on any failure the exchange proceeds without memories.
func (c *Companion) recall(ctx context.Context, userID int64, query string) []string {
	if c.embedder == nil {
		return nil
	}
	start := time.Now()
	vec, err := c.embedder.Embed(ctx, query)
	c.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.log.Warn("memory recall embedding failed", "error", err)
		return nil
	}
	results, err := c.stores.Memories.Search(ctx, userID, vec, c.recallTopK)
	if err != nil {
		c.log.Warn("memory recall search failed", "error", err)
		return nil
	}
	c.metrics.MemoryRecalls.Add(ctx, 1)
	contents := make([]string, 0, len(results))
	for _, r := range results {
		contents = append(contents, r.Memory.Content)
	}
	return contents
}

// complete runs the model and parses its JSON reply, degrading to the
// fallback reply on any failure.
func (c *Companion) complete(ctx context.Context, user memory.User, history []memory.Turn, memories []string, input string) reply {
	fallback := reply{
		Response:               fallbackReply,
		UpdatedSummary:         user.PersonalitySummary,
		UpdatedBehavioralNotes: user.BehavioralNotes,
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, t := range history {
		role := t.Role
		if role == "model" {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: input})

	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		Messages:     messages,
		SystemPrompt: personaPrompt(user, memories),
		Temperature:  c.temperature,
	})
	if err != nil {
		c.log.Error("completion failed", "user", user.Username, "error", err)
		return fallback
	}
	if resp == nil {
		c.log.Error("empty completion response", "user", user.Username)
		return fallback
	}

	out, err := parseReply(resp.Content)
	if err != nil {
		c.log.Error("unparseable model reply", "user", user.Username, "error", err)
		return fallback
	}
	if out.Response == "" {
		out.Response = "I'm not sure how to reply."
	}
	c.log.Debug("exchange completed",
		"user", user.Username,
		"technique", out.AppliedTechnique,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return out
}

// parseReply extracts the JSON document from the model output, tolerating a
// markdown code fence around it.
func parseReply(content string) (reply, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var r reply
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return reply{}, fmt.Errorf("parse reply: %w", err)
	}
	return r, nil
}

// persistExchange logs both turns, writes back the model's updated
// understanding when it changed, and captures the exchange as a long-term
// memory. All writes are best-effort.
func (c *Companion) persistExchange(ctx context.Context, user memory.User, input string, out reply) {
	now := c.now()
	logTurn := func(role, content string) {
		err := c.stores.Conversations.Append(ctx, user.ID, memory.Turn{
			Role: role, Content: content, Timestamp: now,
		})
		if err != nil {
			c.log.Warn("conversation log write failed", "user", user.Username, "error", err)
		}
	}
	logTurn("user", input)
	logTurn("assistant", out.Response)

	if out.UpdatedSummary != "" && out.UpdatedSummary != user.PersonalitySummary {
		if err := c.stores.Users.UpdateSummary(ctx, user.ID, out.UpdatedSummary); err != nil {
			c.log.Warn("summary write failed", "user", user.Username, "error", err)
		}
	}
	if out.UpdatedBehavioralNotes != "" && out.UpdatedBehavioralNotes != user.BehavioralNotes {
		if err := c.stores.Users.UpdateBehavioralNotes(ctx, user.ID, out.UpdatedBehavioralNotes); err != nil {
			c.log.Warn("behavioral notes write failed", "user", user.Username, "error", err)
		}
	}
	if err := c.stores.Users.TouchLastSeen(ctx, user.ID); err != nil {
		c.log.Warn("last seen update failed", "user", user.Username, "error", err)
	}

	// Fallback replies carry no signal worth remembering.
	if c.embedder != nil && out.Response != fallbackReply {
		c.capture(ctx, user, input, out.Response)
	}
}

// capture distils the exchange into one memory fragment and indexes it.
func (c *Companion) capture(ctx context.Context, user memory.User, input, response string) {
	fragment := fmt.Sprintf("%s said: %s\nI replied: %s", user.Username, input, response)
	vec, err := c.embedder.Embed(ctx, fragment)
	if err != nil {
		c.log.Warn("memory capture embedding failed", "user", user.Username, "error", err)
		return
	}
	if err := c.stores.Memories.Add(ctx, user.ID, fragment, vec); err != nil {
		c.log.Warn("memory capture failed", "user", user.Username, "error", err)
	}
}
