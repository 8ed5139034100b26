package model

import "time"

// Role values stored in users.role. SUSPENDED is a real state rather than a
// boolean flag so that suspension is reversible and distinguishable from a
// worker who never accepted their invite.
const (
	RoleOwner     = "OWNER"
	RoleWorker    = "WORKER"
	RoleSuspended = "SUSPENDED"
)

// User mirrors the 'users' table. PasswordHash and LastPasswordChange are
// never serialized.
type User struct {
	ID                 uint64     `json:"id"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	Role               string     `json:"role"`
	BusinessID         *uint64    `json:"business_id,omitempty"`
	LastPasswordChange *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
