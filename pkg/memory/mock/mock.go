// Package mock provides a fully functional in-memory implementation of the
// memory layer interfaces, for tests and for running the companion without a
// database.
//
// Semantics match the PostgreSQL backend: cosine-distance ordering for memory
// recall, chronological conversation windows, per-user task scoping. Nothing
// is persisted across process restarts.
//
// [memory.TaskStore] and [memory.MemoryIndex] both define a method named Add
// with different signatures, so a single struct cannot implement every
// interface at once. Like the PostgreSQL backend, the stores are exposed as
// sub-types via [Store.Users], [Store.Conversations], [Store.Tasks], and
// [Store.Memories], all sharing one lock and dataset.
//
// All operations are safe for concurrent use.
package mock

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/memory"
)

// Compile-time interface checks.
var (
	_ memory.UserStore       = (*UserStore)(nil)
	_ memory.ConversationLog = (*ConversationLog)(nil)
	_ memory.TaskStore       = (*TaskStore)(nil)
	_ memory.MemoryIndex     = (*MemoryIndex)(nil)
)

// Store holds the shared in-memory dataset behind the four store views.
// Construct with [NewStore]; the zero value is not usable.
type Store struct {
	mu sync.Mutex

	// Now supplies timestamps. Tests may replace it for determinism before
	// first use.
	Now func() time.Time

	nextUserID   int64
	nextTaskID   int64
	nextMemoryID int64

	usersByName map[string]*memory.User
	usersByID   map[int64]*memory.User
	turns       map[int64][]memory.Turn
	tasks       map[int64][]memory.Task
	memories    map[int64][]memory.Memory
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		Now:         time.Now,
		usersByName: make(map[string]*memory.User),
		usersByID:   make(map[int64]*memory.User),
		turns:       make(map[int64][]memory.Turn),
		tasks:       make(map[int64][]memory.Task),
		memories:    make(map[int64][]memory.Memory),
	}
}

// Users returns the [memory.UserStore] view.
func (s *Store) Users() *UserStore { return &UserStore{s} }

// Conversations returns the [memory.ConversationLog] view.
func (s *Store) Conversations() *ConversationLog { return &ConversationLog{s} }

// Tasks returns the [memory.TaskStore] view.
func (s *Store) Tasks() *TaskStore { return &TaskStore{s} }

// Memories returns the [memory.MemoryIndex] view.
func (s *Store) Memories() *MemoryIndex { return &MemoryIndex{s} }

// Ping always succeeds. Present so the mock can stand in for the PostgreSQL
// store in health checks.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// UserStore is the [memory.UserStore] view of a [Store].
type UserStore struct{ s *Store }

// GetOrCreate implements [memory.UserStore].
func (v *UserStore) GetOrCreate(_ context.Context, username string) (memory.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if u, ok := v.s.usersByName[username]; ok {
		return *u, nil
	}
	v.s.nextUserID++
	u := &memory.User{ID: v.s.nextUserID, Username: username, LastSeen: v.s.Now()}
	v.s.usersByName[username] = u
	v.s.usersByID[u.ID] = u
	return *u, nil
}

// UpdateSummary implements [memory.UserStore].
func (v *UserStore) UpdateSummary(_ context.Context, userID int64, summary string) error {
	return v.withUser(userID, func(u *memory.User) { u.PersonalitySummary = summary })
}

// UpdateBehavioralNotes implements [memory.UserStore].
func (v *UserStore) UpdateBehavioralNotes(_ context.Context, userID int64, notes string) error {
	return v.withUser(userID, func(u *memory.User) { u.BehavioralNotes = notes })
}

// SetProactiveOK implements [memory.UserStore].
func (v *UserStore) SetProactiveOK(_ context.Context, userID int64, ok bool) error {
	return v.withUser(userID, func(u *memory.User) { u.ProactiveOK = ok })
}

// TouchLastSeen implements [memory.UserStore].
func (v *UserStore) TouchLastSeen(_ context.Context, userID int64) error {
	return v.withUser(userID, func(u *memory.User) { u.LastSeen = v.s.Now() })
}

func (v *UserStore) withUser(userID int64, fn func(*memory.User)) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	u, ok := v.s.usersByID[userID]
	if !ok {
		return memory.ErrNotFound
	}
	fn(u)
	return nil
}

// ConversationLog is the [memory.ConversationLog] view of a [Store].
type ConversationLog struct{ s *Store }

// Append implements [memory.ConversationLog].
func (v *ConversationLog) Append(_ context.Context, userID int64, turn memory.Turn) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.turns[userID] = append(v.s.turns[userID], turn)
	return nil
}

// Recent implements [memory.ConversationLog].
func (v *ConversationLog) Recent(_ context.Context, userID int64, limit int) ([]memory.Turn, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	all := v.s.turns[userID]
	start := len(all) - limit
	if limit <= 0 || start < 0 {
		start = 0
	}
	out := make([]memory.Turn, len(all)-start)
	copy(out, all[start:])
	return out, nil
}

// TaskStore is the [memory.TaskStore] view of a [Store].
type TaskStore struct{ s *Store }

// Add implements [memory.TaskStore].
func (v *TaskStore) Add(_ context.Context, userID int64, text string) (memory.Task, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	v.s.nextTaskID++
	t := memory.Task{ID: v.s.nextTaskID, UserID: userID, Text: text, Status: memory.TaskPending}
	v.s.tasks[userID] = append(v.s.tasks[userID], t)
	return t, nil
}

// Pending implements [memory.TaskStore].
func (v *TaskStore) Pending(_ context.Context, userID int64) ([]memory.Task, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	out := []memory.Task{}
	for _, t := range v.s.tasks[userID] {
		if t.Status == memory.TaskPending {
			out = append(out, t)
		}
	}
	return out, nil
}

// Complete implements [memory.TaskStore].
func (v *TaskStore) Complete(_ context.Context, userID, taskID int64) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	for i, t := range v.s.tasks[userID] {
		if t.ID == taskID && t.Status == memory.TaskPending {
			v.s.tasks[userID][i].Status = memory.TaskCompleted
			return true, nil
		}
	}
	return false, nil
}

// Remove implements [memory.TaskStore].
func (v *TaskStore) Remove(_ context.Context, userID, taskID int64) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	list := v.s.tasks[userID]
	for i, t := range list {
		if t.ID == taskID {
			v.s.tasks[userID] = append(list[:i], list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// MemoryIndex is the [memory.MemoryIndex] view of a [Store].
type MemoryIndex struct{ s *Store }

// Add implements [memory.MemoryIndex].
func (v *MemoryIndex) Add(_ context.Context, userID int64, content string, embedding []float32) error {
	if !memory.ValidEmbedding(embedding) {
		return memory.ErrInvalidEmbedding
	}

	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	v.s.nextMemoryID++
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	v.s.memories[userID] = append(v.s.memories[userID], memory.Memory{
		ID:        v.s.nextMemoryID,
		UserID:    userID,
		Content:   content,
		Embedding: vec,
		CreatedAt: v.s.Now(),
	})
	return nil
}

// Search implements [memory.MemoryIndex] with a linear cosine-distance scan.
func (v *MemoryIndex) Search(_ context.Context, userID int64, embedding []float32, topK int) ([]memory.MemoryResult, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	results := []memory.MemoryResult{}
	for _, rec := range v.s.memories[userID] {
		results = append(results, memory.MemoryResult{
			Memory:   rec,
			Distance: cosineDistance(embedding, rec.Embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// cosineDistance is 1 - cosine similarity, matching pgvector's <=> operator.
// A zero-norm operand yields the maximum distance 1 rather than NaN.
func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
