package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/revline/booking-platform/internal/model"
)

// Tenant cache key helpers. Every key a tenant's data lands under starts
// with "business:<id>:", which is what makes bulk invalidation a pattern
// delete.
func TenantKey(businessID uint64, parts ...string) string {
	key := fmt.Sprintf("business:%d", businessID)
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// tenantPatterns are the regions cleared after any tenant-visible mutation.
func tenantPatterns(businessID uint64) []string {
	return []string{
		TenantKey(businessID, "profile"),
		TenantKey(businessID, "services") + "*",
		TenantKey(businessID, "customers") + "*",
		TenantKey(businessID, "bookings") + "*",
	}
}

// BusinessSource and ServiceSource are the compute sources behind warm-up.
type BusinessSource interface {
	GetByID(ctx context.Context, id uint64) (model.Business, error)
}

type ServiceSource interface {
	ListByBusiness(ctx context.Context, businessID uint64) ([]model.Service, error)
}

// Stats is a point-in-time snapshot of the cache backend, non-critical path.
type Stats struct {
	Enabled  bool          `json:"enabled"`
	Keys     int64         `json:"keys"`
	PingTime time.Duration `json:"ping_time"`
}

// Manager orchestrates warm-up and bulk invalidation across the cache
// regions tied to a tenant.
type Manager struct {
	cache      *Cache
	businesses BusinessSource
	services   ServiceSource
}

func NewManager(c *Cache, businesses BusinessSource, services ServiceSource) *Manager {
	return &Manager{cache: c, businesses: businesses, services: services}
}

// WarmUpTenant pre-populates the tenant's hot keys (profile and service
// catalog) best-effort. Tasks run concurrently and an individual failure
// never aborts the others; it is only logged.
func (m *Manager) WarmUpTenant(ctx context.Context, businessID uint64) {
	if !m.cache.Enabled() {
		return
	}
	opts := DefaultOptions()

	tasks := []struct {
		name string
		run  func() error
	}{
		{"profile", func() error {
			_, err := GetOrSet(ctx, m.cache, TenantKey(businessID, "profile"),
				func(ctx context.Context) (model.Business, error) {
					return m.businesses.GetByID(ctx, businessID)
				}, opts)
			return err
		}},
		{"services", func() error {
			_, err := GetOrSet(ctx, m.cache, TenantKey(businessID, "services"),
				func(ctx context.Context) ([]model.Service, error) {
					return m.services.ListByBusiness(ctx, businessID)
				}, opts)
			return err
		}},
	}

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(name string, run func() error) {
			defer wg.Done()
			if err := run(); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"business_id": businessID,
					"region":      name,
				}).Warn("cache warm-up task failed")
			}
		}(t.name, t.run)
	}
	wg.Wait()
}

// ClearTenantCache invalidates every region namespaced to the tenant. Called
// after any mutation that changes tenant-visible state. Failures are logged,
// never surfaced: a stale delete only costs freshness, and entries expire by
// TTL anyway.
func (m *Manager) ClearTenantCache(ctx context.Context, businessID uint64) int {
	removed := 0
	for _, pattern := range tenantPatterns(businessID) {
		n, err := m.cache.Invalidate(ctx, pattern)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"business_id": businessID,
				"pattern":     pattern,
			}).Warn("tenant cache invalidation failed")
			continue
		}
		removed += n
	}
	return removed
}

// GetCacheStats reports backend size and latency.
func (m *Manager) GetCacheStats(ctx context.Context) (Stats, error) {
	if !m.cache.Enabled() {
		return Stats{Enabled: false}, nil
	}
	start := time.Now()
	if err := m.cache.store.Ping(ctx); err != nil {
		return Stats{Enabled: true}, err
	}
	ping := time.Since(start)
	size, err := m.cache.store.DBSize(ctx)
	if err != nil {
		return Stats{Enabled: true, PingTime: ping}, err
	}
	return Stats{Enabled: true, Keys: size, PingTime: ping}, nil
}

// PerformMaintenance verifies backend liveness and logs a size snapshot.
// Redis expires entries on its own; there is nothing to sweep.
func (m *Manager) PerformMaintenance(ctx context.Context) error {
	stats, err := m.GetCacheStats(ctx)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"keys":    stats.Keys,
		"ping_ms": stats.PingTime.Milliseconds(),
	}).Info("cache maintenance")
	return nil
}
