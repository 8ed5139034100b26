package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/revline/booking-platform/internal/model"
)

// RefreshTokenRepo persists salted refresh token hashes. Because every row
// carries its own salt, the hash is not directly lookupable; validation lists
// a user's rows and re-hashes against each. The scan is O(active sessions per
// user), which is fine at this scale.
type RefreshTokenRepo struct{ DB *sql.DB }

func NewRefreshTokenRepo(db *sql.DB) *RefreshTokenRepo { return &RefreshTokenRepo{DB: db} }

// Store inserts a refresh token row.
func (r *RefreshTokenRepo) Store(ctx context.Context, userID uint64, tokenHash, salt string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, salt, expires_at) VALUES (?,?,?,?)",
		userID, tokenHash, salt, expiresAt)
	return err
}

// ListByUser returns every stored token for a user, newest first.
func (r *RefreshTokenRepo) ListByUser(ctx context.Context, userID uint64) ([]model.RefreshToken, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, user_id, token_hash, salt, created_at, expires_at FROM refresh_tokens WHERE user_id=? ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RefreshToken
	for rows.Next() {
		var t model.RefreshToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Salt, &t.CreatedAt, &t.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteByID removes a single token row (rotation, logout of one session, or
// lazy cleanup of an expired match).
func (r *RefreshTokenRepo) DeleteByID(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE id=?", id)
	return err
}

// DeleteAllForUser removes every token row for the user. Used on explicit
// logout-everywhere and on password change.
func (r *RefreshTokenRepo) DeleteAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID)
	return err
}
