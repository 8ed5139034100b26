package model

import "time"

// RefreshToken mirrors the 'refresh_tokens' table. Only a salted SHA-256 hash
// of the signed token is stored; the raw value lives in the client cookie.
// A user may hold several rows at once (one per device), each individually
// revocable.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	Salt      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Verification token purposes. A token minted for one flow is rejected by the
// other flows' endpoints.
const (
	PurposeAccountVerification = "account_verification"
	PurposeWorkerWelcome       = "worker_welcome"
	PurposePasswordReset       = "password_reset"
)

// VerificationToken mirrors the 'verification_tokens' table. At most one row
// exists per user: generating a new token first deletes the old one, so an
// unconsumed link goes dead the moment a new one is requested.
type VerificationToken struct {
	ID        string
	UserID    uint64
	Token     string
	Purpose   string
	ExpiresAt time.Time
}
