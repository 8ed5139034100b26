package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/revline/booking-platform/internal/apperr"
	"github.com/revline/booking-platform/internal/model"
	"github.com/revline/booking-platform/internal/utils"
)

// VerificationTokenStore is the persistence surface of the verification
// token lifecycle. *repository.VerificationTokenRepo satisfies it.
type VerificationTokenStore interface {
	Replace(ctx context.Context, tok model.VerificationToken) error
	GetByToken(ctx context.Context, raw string) (model.VerificationToken, error)
	Delete(ctx context.Context, id string) error
}

// Verifier manages single-use, time-boxed verification tokens. The same
// lifecycle backs three flows (owner verification, worker welcome, password
// reset); the purpose field keeps a token minted for one flow out of the
// others.
type Verifier struct {
	store VerificationTokenStore
	ttl   time.Duration
}

func NewVerifier(store VerificationTokenStore, ttl time.Duration) *Verifier {
	return &Verifier{store: store, ttl: ttl}
}

// Generate mints a fresh token for the user, replacing any existing one.
// Generating is an idempotent replace: a previously emailed link becomes
// invalid the moment a new one is requested.
func (v *Verifier) Generate(ctx context.Context, userID uint64, purpose string) (string, error) {
	raw, err := utils.RandomHex(32)
	if err != nil {
		return "", err
	}
	tok := model.VerificationToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     raw,
		Purpose:   purpose,
		ExpiresAt: time.Now().UTC().Add(v.ttl),
	}
	if err := v.store.Replace(ctx, tok); err != nil {
		return "", err
	}
	return raw, nil
}

// Validate resolves a raw token for one of the given purposes. A miss or a
// purpose mismatch yields NotFound; a past deadline yields Expired with the
// row left in place so the UI can offer a resend.
func (v *Verifier) Validate(ctx context.Context, raw string, purposes ...string) (model.VerificationToken, error) {
	tok, err := v.store.GetByToken(ctx, raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.VerificationToken{}, apperr.NotFound("verification token not found")
		}
		return model.VerificationToken{}, err
	}
	match := false
	for _, p := range purposes {
		if tok.Purpose == p {
			match = true
			break
		}
	}
	if !match {
		return model.VerificationToken{}, apperr.NotFound("verification token not found")
	}
	if time.Now().UTC().After(tok.ExpiresAt) {
		return model.VerificationToken{}, apperr.Expired("verification token expired")
	}
	return tok, nil
}

// Consume deletes a token after successful use. A crash between Validate and
// Consume leaves the row behind, so consumption is at-least-once; callers
// must make the downstream effect idempotent.
func (v *Verifier) Consume(ctx context.Context, tok model.VerificationToken) error {
	return v.store.Delete(ctx, tok.ID)
}
