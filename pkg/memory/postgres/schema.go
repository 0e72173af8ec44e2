// Package postgres provides the PostgreSQL-backed implementation of the
// companion memory layer: user profiles, conversation logs, to-do tasks, and
// the pgvector-backed long-term memory index.
//
// All four stores share a single [pgxpool.Pool] connection pool. The pgvector
// extension must be available in the target database; [Migrate] installs it
// automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	user, _ := store.Users().GetOrCreate(ctx, "alex")
//	_ = store.Conversations().Append(ctx, user.ID, turn)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlUsers = `
CREATE TABLE IF NOT EXISTS users (
    id                  BIGSERIAL    PRIMARY KEY,
    username            TEXT         NOT NULL UNIQUE,
    personality_summary TEXT         NOT NULL DEFAULT '',
    behavioral_notes    TEXT         NOT NULL DEFAULT '',
    proactive_ok        BOOLEAN      NOT NULL DEFAULT FALSE,
    last_seen           TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlConversations = `
CREATE TABLE IF NOT EXISTS conversations (
    id         BIGSERIAL    PRIMARY KEY,
    user_id    BIGINT       NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    role       TEXT         NOT NULL,
    content    TEXT         NOT NULL,
    timestamp  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversations_user_timestamp
    ON conversations (user_id, timestamp);
`

const ddlTodos = `
CREATE TABLE IF NOT EXISTS todos (
    id       BIGSERIAL  PRIMARY KEY,
    user_id  BIGINT     NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    task     TEXT       NOT NULL,
    status   TEXT       NOT NULL DEFAULT 'pending'
);

CREATE INDEX IF NOT EXISTS idx_todos_user_status
    ON todos (user_id, status);
`

// ddlMemories returns the memory-index DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlMemories(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memories (
    id         BIGSERIAL    PRIMARY KEY,
    user_id    BIGINT       NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    content    TEXT         NOT NULL,
    embedding  vector(%d),
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_memories_user_id
    ON memories (user_id);

CREATE INDEX IF NOT EXISTS idx_memories_embedding
    ON memories USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required tables and extensions exist. It is
// idempotent and safe to call on every application start.
//
// embeddingDimensions must match the output dimension of the configured
// embedding model (e.g. 1536 for OpenAI text-embedding-3-small, 768 for
// nomic-embed-text). Changing it after the first migration requires a manual
// schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlUsers,
		ddlConversations,
		ddlTodos,
		ddlMemories(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
