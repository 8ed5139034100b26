// Package repository persists the auth core's system of record: users,
// businesses, service catalogs, refresh tokens and verification tokens.
// Sentinel errors below let handlers distinguish failure scenarios without
// inspecting driver errors.
package repository

import "errors"

// ErrEmailExists is returned when a user insert violates the unique email
// constraint. Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by another tenant. Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")
