// Package memory defines the persistence layer of the avatar companion: user
// profiles, conversation logs, to-do tasks, and an embedding-backed long-term
// memory index.
//
// The interfaces are public so that external packages can supply alternative
// backends (Postgres/pgvector, in-memory, …) without depending on server
// internals. Every implementation must be safe for concurrent use.
package memory

import (
	"context"
	"errors"
	"math"
)

// ErrInvalidEmbedding is returned by [MemoryIndex.Add] when an embedding
// contains non-finite components or has zero norm. Such vectors would poison
// cosine-distance ordering for every later query.
var ErrInvalidEmbedding = errors.New("memory: invalid embedding vector")

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("memory: not found")

// UserStore persists user profiles.
type UserStore interface {
	// GetOrCreate returns the user with the given username, creating a fresh
	// profile on first sight. Usernames are unique.
	GetOrCreate(ctx context.Context, username string) (User, error)

	// UpdateSummary replaces the user's personality summary.
	UpdateSummary(ctx context.Context, userID int64, summary string) error

	// UpdateBehavioralNotes replaces the user's behavioral notes.
	UpdateBehavioralNotes(ctx context.Context, userID int64, notes string) error

	// SetProactiveOK records the user's consent to unprompted check-ins.
	SetProactiveOK(ctx context.Context, userID int64, ok bool) error

	// TouchLastSeen stamps the user's last-activity time with the current time.
	TouchLastSeen(ctx context.Context, userID int64) error
}

// ConversationLog is the append-only per-user utterance log.
type ConversationLog interface {
	// Append records one turn for the given user.
	Append(ctx context.Context, userID int64, turn Turn) error

	// Recent returns up to limit of the user's most recent turns in
	// chronological order (oldest first). Returns an empty (non-nil) slice
	// when the log is empty.
	Recent(ctx context.Context, userID int64, limit int) ([]Turn, error)
}

// TaskStore persists per-user to-do items.
type TaskStore interface {
	// Add creates a pending task and returns it with its assigned ID.
	Add(ctx context.Context, userID int64, text string) (Task, error)

	// Pending returns the user's pending tasks in creation order.
	// Returns an empty (non-nil) slice when there are none.
	Pending(ctx context.Context, userID int64) ([]Task, error)

	// Complete marks the task done. done is false when no pending task with
	// that id belongs to the user.
	Complete(ctx context.Context, userID int64, taskID int64) (done bool, err error)

	// Remove deletes the task. removed is false when no task with that id
	// belongs to the user.
	Remove(ctx context.Context, userID int64, taskID int64) (removed bool, err error)
}

// MemoryIndex is the embedding-backed long-term memory store.
//
// Callers produce embeddings before calling Add or Search; the index never
// talks to an embedding provider itself.
type MemoryIndex interface {
	// Add stores a memory fragment with its pre-computed embedding.
	// Returns [ErrInvalidEmbedding] when the vector has non-finite components
	// or zero norm.
	Add(ctx context.Context, userID int64, content string, embedding []float32) error

	// Search returns the topK memories of the given user closest to the query
	// embedding, ordered by ascending cosine distance. Returns an empty
	// (non-nil) slice when the user has no memories.
	Search(ctx context.Context, userID int64, embedding []float32, topK int) ([]MemoryResult, error)
}

// ValidEmbedding reports whether v is usable for cosine-distance ranking:
// non-empty, all components finite, norm greater than zero.
func ValidEmbedding(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	var norm float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
		norm += f * f
	}
	return norm > 0
}
