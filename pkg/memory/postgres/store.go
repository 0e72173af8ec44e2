package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/memory"
)

// Compile-time interface checks.
var (
	_ memory.UserStore       = (*UserStoreImpl)(nil)
	_ memory.ConversationLog = (*ConversationLogImpl)(nil)
	_ memory.TaskStore       = (*TaskStoreImpl)(nil)
	_ memory.MemoryIndex     = (*MemoryIndexImpl)(nil)
)

// Store is the central PostgreSQL-backed memory store. It holds a single
// [pgxpool.Pool] and exposes the four stores via accessors:
//
//   - [Store.Users] implements [memory.UserStore]
//   - [Store.Conversations] implements [memory.ConversationLog]
//   - [Store.Tasks] implements [memory.TaskStore]
//   - [Store.Memories] implements [memory.MemoryIndex]
//
// All operations are safe for concurrent use.
type Store struct {
	pool          *pgxpool.Pool
	users         *UserStoreImpl
	conversations *ConversationLogImpl
	tasks         *TaskStoreImpl
	memories      *MemoryIndexImpl
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, registers pgvector types on every connection,
// and runs [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the embedding model
// used to produce [memory.Memory.Embedding] values.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:          pool,
		users:         &UserStoreImpl{pool: pool},
		conversations: &ConversationLogImpl{pool: pool},
		tasks:         &TaskStoreImpl{pool: pool},
		memories:      &MemoryIndexImpl{pool: pool},
	}, nil
}

// Users returns the user profile store.
func (s *Store) Users() *UserStoreImpl { return s.users }

// Conversations returns the conversation log.
func (s *Store) Conversations() *ConversationLogImpl { return s.conversations }

// Tasks returns the to-do task store.
func (s *Store) Tasks() *TaskStoreImpl { return s.tasks }

// Memories returns the long-term memory index.
func (s *Store) Memories() *MemoryIndexImpl { return s.memories }

// Ping verifies database connectivity. Used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool. Typically
// called via defer once the Store is no longer needed.
func (s *Store) Close() {
	s.pool.Close()
}
