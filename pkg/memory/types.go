package memory

import "time"

// User is the persistent profile of one chat participant. The companion
// accumulates a personality summary and behavioral notes across sessions and
// feeds both back into its prompts.
type User struct {
	// ID is the stable numeric identifier assigned by the store.
	ID int64

	// Username is the unique handle the user signed in with.
	Username string

	// PersonalitySummary is the model-maintained running summary of who this
	// user is. Updated after exchanges when the model decides it changed.
	PersonalitySummary string

	// BehavioralNotes accumulate the model's observations about communication
	// patterns and emotional state, used to adapt coaching style.
	BehavioralNotes string

	// ProactiveOK records whether the user consented to unprompted check-ins.
	ProactiveOK bool

	// LastSeen is the timestamp of the user's most recent activity.
	LastSeen time.Time
}

// Turn is one utterance in a conversation log.
type Turn struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the utterance text.
	Content string

	// Timestamp is when the turn was recorded.
	Timestamp time.Time
}

// Task is one to-do item owned by a user.
type Task struct {
	// ID is the stable identifier assigned by the store.
	ID int64

	// UserID is the owner.
	UserID int64

	// Text is the task description.
	Text string

	// Status is "pending" or "completed".
	Status string
}

// Task status values.
const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
)

// Memory is one long-term memory fragment stored with its embedding for
// semantic recall. Fragments are distilled conversation exchanges.
type Memory struct {
	// ID is the stable identifier assigned by the store.
	ID int64

	// UserID is the user this memory belongs to. Recall never crosses users.
	UserID int64

	// Content is the memory text.
	Content string

	// Embedding is the vector representation of Content. Dimension must match
	// the index configuration.
	Embedding []float32

	// CreatedAt is when the memory was stored.
	CreatedAt time.Time
}

// MemoryResult pairs a recalled memory with its vector-space distance from
// the query embedding. Lower Distance means higher similarity.
type MemoryResult struct {
	Memory Memory

	// Distance is the cosine distance to the query embedding.
	Distance float64
}
