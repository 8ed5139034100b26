package repository

import (
	"context"
	"database/sql"

	"github.com/revline/booking-platform/internal/model"
)

const businessColumns = "id,owner_id,name,address,phone,license_expiration_date,created_at,updated_at"

// BusinessRepo persists tenants. Reads on the hot paths go through the cache
// layer; this repo is always the compute source behind it.
type BusinessRepo struct{ DB *sql.DB }

func NewBusinessRepo(db *sql.DB) *BusinessRepo { return &BusinessRepo{DB: db} }

// Create inserts a business and returns its ID.
func (r *BusinessRepo) Create(ctx context.Context, b model.Business) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO businesses (owner_id, name, address, phone, license_expiration_date) VALUES (?,?,?,?,?)",
		b.OwnerID, b.Name, b.Address, b.Phone, b.LicenseExpirationDate)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a business by id.
func (r *BusinessRepo) GetByID(ctx context.Context, id uint64) (model.Business, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+businessColumns+" FROM businesses WHERE id=? LIMIT 1", id))
}

// Update rewrites the mutable tenant profile fields. Callers must clear the
// tenant cache afterwards.
func (r *BusinessRepo) Update(ctx context.Context, b model.Business) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE businesses SET name=?, address=?, phone=?, license_expiration_date=? WHERE id=?",
		b.Name, b.Address, b.Phone, b.LicenseExpirationDate, b.ID)
	return err
}

func (r *BusinessRepo) scanOne(row *sql.Row) (model.Business, error) {
	var b model.Business
	err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Address, &b.Phone,
		&b.LicenseExpirationDate, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}
