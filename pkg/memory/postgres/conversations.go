package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/memory"
)

// ConversationLogImpl is the append-only per-user utterance log backed by the
// conversations table.
//
// Obtain one via [Store.Conversations] rather than constructing directly.
// All methods are safe for concurrent use.
type ConversationLogImpl struct {
	pool *pgxpool.Pool
}

// Append implements [memory.ConversationLog].
func (s *ConversationLogImpl) Append(ctx context.Context, userID int64, turn memory.Turn) error {
	const q = `
		INSERT INTO conversations (user_id, role, content, timestamp)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, q, userID, turn.Role, turn.Content, turn.Timestamp)
	if err != nil {
		return fmt.Errorf("conversation log: append: %w", err)
	}
	return nil
}

// Recent implements [memory.ConversationLog]. The inner query selects the
// newest limit rows; the outer one restores chronological order.
func (s *ConversationLogImpl) Recent(ctx context.Context, userID int64, limit int) ([]memory.Turn, error) {
	const q = `
		SELECT role, content, timestamp FROM (
		    SELECT id, role, content, timestamp
		    FROM   conversations
		    WHERE  user_id = $1
		    ORDER  BY timestamp DESC, id DESC
		    LIMIT  $2
		) latest
		ORDER BY timestamp, id`

	rows, err := s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation log: recent: %w", err)
	}

	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Turn, error) {
		var t memory.Turn
		err := row.Scan(&t.Role, &t.Content, &t.Timestamp)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("conversation log: scan rows: %w", err)
	}
	if turns == nil {
		turns = []memory.Turn{}
	}
	return turns, nil
}
