package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/memory"
)

// UserStoreImpl persists user profiles in the users table.
//
// Obtain one via [Store.Users] rather than constructing directly.
// All methods are safe for concurrent use.
type UserStoreImpl struct {
	pool *pgxpool.Pool
}

// GetOrCreate implements [memory.UserStore]. The insert races cleanly with
// concurrent first-sight requests for the same username: ON CONFLICT keeps
// the existing row and RETURNING always yields it.
func (s *UserStoreImpl) GetOrCreate(ctx context.Context, username string) (memory.User, error) {
	const q = `
		INSERT INTO users (username)
		VALUES ($1)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING id, username, personality_summary, behavioral_notes, proactive_ok, last_seen`

	var u memory.User
	err := s.pool.QueryRow(ctx, q, username).Scan(
		&u.ID,
		&u.Username,
		&u.PersonalitySummary,
		&u.BehavioralNotes,
		&u.ProactiveOK,
		&u.LastSeen,
	)
	if err != nil {
		return memory.User{}, fmt.Errorf("user store: get or create: %w", err)
	}
	return u, nil
}

// UpdateSummary implements [memory.UserStore].
func (s *UserStoreImpl) UpdateSummary(ctx context.Context, userID int64, summary string) error {
	return s.update(ctx, "personality_summary", userID, summary)
}

// UpdateBehavioralNotes implements [memory.UserStore].
func (s *UserStoreImpl) UpdateBehavioralNotes(ctx context.Context, userID int64, notes string) error {
	return s.update(ctx, "behavioral_notes", userID, notes)
}

// SetProactiveOK implements [memory.UserStore].
func (s *UserStoreImpl) SetProactiveOK(ctx context.Context, userID int64, ok bool) error {
	return s.update(ctx, "proactive_ok", userID, ok)
}

// TouchLastSeen implements [memory.UserStore].
func (s *UserStoreImpl) TouchLastSeen(ctx context.Context, userID int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET last_seen = now() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("user store: touch last seen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return memory.ErrNotFound
	}
	return nil
}

// update sets one column on one user row. column is always a compile-time
// constant from the methods above, never caller input.
func (s *UserStoreImpl) update(ctx context.Context, column string, userID int64, value any) error {
	q := fmt.Sprintf(`UPDATE users SET %s = $1 WHERE id = $2`, column)
	tag, err := s.pool.Exec(ctx, q, value, userID)
	if err != nil {
		return fmt.Errorf("user store: update %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return memory.ErrNotFound
	}
	return nil
}
