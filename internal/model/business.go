package model

import "time"

// Business is the tenant every user's access is scoped to. The license
// expiration date is embedded in access tokens so that premium checks do not
// require a lookup on every request.
type Business struct {
	ID                    uint64    `json:"id"`
	OwnerID               uint64    `json:"owner_id"`
	Name                  string    `json:"name"`
	Address               string    `json:"address"`
	Phone                 string    `json:"phone"`
	LicenseExpirationDate time.Time `json:"license_expiration_date"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// LicenseActive reports whether the business license is still valid at t.
func (b Business) LicenseActive(t time.Time) bool {
	return b.LicenseExpirationDate.After(t)
}

// Service is one entry of a business's service catalog.
type Service struct {
	ID          uint64 `json:"id"`
	BusinessID  uint64 `json:"business_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  uint32 `json:"price_cents"`
	DurationMin uint32 `json:"duration_min"`
}
