// Package queue defines message payloads exchanged over the message broker
// and the background consumer that drains them.
package queue

// Email template identifiers understood by the mail worker.
const (
	TemplateAccountVerification = "account_verification"
	TemplatePasswordReset       = "password_reset"
	TemplateWorkerWelcome       = "worker_welcome"
	TemplateWorkerSuspended     = "worker_suspended"
)

// EmailEvent is published for every outbound account email. It carries
// enough for the mail worker to render and send without querying the primary
// database.
type EmailEvent struct {
	Template string `json:"template"`
	To       string `json:"to"`
	Link     string `json:"link,omitempty"`
	QueuedAt string `json:"queued_at"`
}
