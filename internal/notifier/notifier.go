// Package notifier delivers account emails as fire-and-forget events over
// the message broker. Delivery is at-least-once downstream; this core logs
// failures and never retries.
package notifier

import "context"

// Notifier sends the four account lifecycle emails. The verification/reset
// link is the sole capability in each message.
type Notifier interface {
	SendAccountVerification(ctx context.Context, email, link string) error
	SendPasswordReset(ctx context.Context, email, link string) error
	SendWorkerWelcome(ctx context.Context, email, link string) error
	SendWorkerSuspended(ctx context.Context, email string) error
}

// VerifyLink builds the account verification URL for an emailed token.
func VerifyLink(frontendURL, token string) string {
	return frontendURL + "/verify-account?token=" + token
}

// SetPasswordLink builds the password set/reset URL for an emailed token.
func SetPasswordLink(frontendURL, token string) string {
	return frontendURL + "/set-password?token=" + token
}
