package repository

import (
	"context"
	"database/sql"

	"github.com/revline/booking-platform/internal/model"
)

// ServiceRepo persists a tenant's service catalog (the second warm-up target
// of the cache manager).
type ServiceRepo struct{ DB *sql.DB }

func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{DB: db} }

// Create inserts a catalog entry and returns its ID.
func (r *ServiceRepo) Create(ctx context.Context, s model.Service) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO services (business_id, name, description, price_cents, duration_min) VALUES (?,?,?,?,?)",
		s.BusinessID, s.Name, s.Description, s.PriceCents, s.DurationMin)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ListByBusiness returns the tenant's full catalog.
func (r *ServiceRepo) ListByBusiness(ctx context.Context, businessID uint64) ([]model.Service, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, business_id, name, description, price_cents, duration_min FROM services WHERE business_id=? ORDER BY id",
		businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Service{}
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Description, &s.PriceCents, &s.DurationMin); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a catalog entry scoped to its tenant. Returns ErrForbidden
// when the row belongs to another business.
func (r *ServiceRepo) Delete(ctx context.Context, id, businessID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM services WHERE id=? AND business_id=?", id, businessID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrForbidden
	}
	return nil
}
