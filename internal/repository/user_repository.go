package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/revline/booking-platform/internal/model"
)

const userColumns = "id,email,password_hash,role,business_id,last_password_change,created_at,updated_at"

// UserRepo persists user credentials. Users are never hard-deleted here;
// deactivation is a role transition to SUSPENDED.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns its ID. passwordHash may be empty for
// invited workers who have not yet set a password; login rejects such
// accounts until set-password completes.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, role string, businessID *uint64) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, business_id) VALUES (?,?,?,?)",
		email, passwordHash, role, businessID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdatePassword stores a new password hash and bumps last_password_change.
// The timestamp is what invalidates access tokens issued before the change.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string, changedAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, last_password_change=? WHERE id=?",
		passwordHash, changedAt, id)
	return err
}

// UpdateRole performs a role transition (worker suspension/reactivation).
func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", role, id)
	return err
}

// AttachBusiness associates a user with a tenant, either as its owner or as
// an employed worker.
func (r *UserRepo) AttachBusiness(ctx context.Context, userID, businessID uint64) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET business_id=? WHERE id=?", businessID, userID)
	return err
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var (
		u          model.User
		businessID sql.NullInt64
		changedAt  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &businessID, &changedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if businessID.Valid {
		v := uint64(businessID.Int64)
		u.BusinessID = &v
	}
	if changedAt.Valid {
		t := changedAt.Time
		u.LastPasswordChange = &t
	}
	return u, nil
}
