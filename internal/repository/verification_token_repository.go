package repository

import (
	"context"
	"database/sql"

	"github.com/revline/booking-platform/internal/model"
)

// VerificationTokenRepo persists single-use onboarding/reset tokens with the
// one-live-token-per-user invariant enforced in Replace.
type VerificationTokenRepo struct{ DB *sql.DB }

func NewVerificationTokenRepo(db *sql.DB) *VerificationTokenRepo {
	return &VerificationTokenRepo{DB: db}
}

// Replace deletes any existing token for the user and inserts the new one in
// a single transaction, so an old unconsumed link goes dead the moment a new
// one is requested.
func (r *VerificationTokenRepo) Replace(ctx context.Context, tok model.VerificationToken) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM verification_tokens WHERE user_id=?", tok.UserID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO verification_tokens (id, user_id, token, purpose, expires_at) VALUES (?,?,?,?,?)",
		tok.ID, tok.UserID, tok.Token, tok.Purpose, tok.ExpiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByToken fetches a token row by its raw value. sql.ErrNoRows is the miss
// signal; callers map it to a typed NotFound.
func (r *VerificationTokenRepo) GetByToken(ctx context.Context, raw string) (model.VerificationToken, error) {
	var t model.VerificationToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token, purpose, expires_at FROM verification_tokens WHERE token=? LIMIT 1",
		raw).Scan(&t.ID, &t.UserID, &t.Token, &t.Purpose, &t.ExpiresAt)
	return t, err
}

// Delete consumes a token after successful use. A crash between validate and
// delete leaves the row in place, so consumption is at-least-once.
func (r *VerificationTokenRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM verification_tokens WHERE id=?", id)
	return err
}
