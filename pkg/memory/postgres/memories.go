package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/memory"
)

// MemoryIndexImpl is the long-term memory index backed by a PostgreSQL
// memories table with a pgvector HNSW index for fast approximate
// nearest-neighbour search.
//
// Obtain one via [Store.Memories] rather than constructing directly.
// All methods are safe for concurrent use.
type MemoryIndexImpl struct {
	pool *pgxpool.Pool
}

// Add implements [memory.MemoryIndex]. Embeddings are validated before they
// reach the table: a NaN or zero-norm vector would break cosine ordering for
// every later search against this user.
func (s *MemoryIndexImpl) Add(ctx context.Context, userID int64, content string, embedding []float32) error {
	if !memory.ValidEmbedding(embedding) {
		return memory.ErrInvalidEmbedding
	}

	const q = `
		INSERT INTO memories (user_id, content, embedding)
		VALUES ($1, $2, $3)`

	_, err := s.pool.Exec(ctx, q, userID, content, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("memory index: add: %w", err)
	}
	return nil
}

// Search implements [memory.MemoryIndex]. Results are scoped to userID and
// ordered by ascending cosine distance (most similar first).
func (s *MemoryIndexImpl) Search(ctx context.Context, userID int64, embedding []float32, topK int) ([]memory.MemoryResult, error) {
	const q = `
		SELECT id, user_id, content, embedding, created_at,
		       embedding <=> $2 AS distance
		FROM   memories
		WHERE  user_id = $1
		ORDER  BY distance
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, userID, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("memory index: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.MemoryResult, error) {
		var (
			mr  memory.MemoryResult
			vec pgvector.Vector
		)
		if err := row.Scan(
			&mr.Memory.ID,
			&mr.Memory.UserID,
			&mr.Memory.Content,
			&vec,
			&mr.Memory.CreatedAt,
			&mr.Distance,
		); err != nil {
			return memory.MemoryResult{}, err
		}
		mr.Memory.Embedding = vec.Slice()
		return mr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("memory index: scan rows: %w", err)
	}
	if results == nil {
		results = []memory.MemoryResult{}
	}
	return results, nil
}
