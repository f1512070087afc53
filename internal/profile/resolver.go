// Package profile resolves which banking profile governs a merchant's
// gateway traffic. Profiles bind at store, site, or group scope; the
// narrowest active binding wins.
package profile

import (
	"context"
	"sync"
	"time"

	"github.com/FoodCourtHub/server/internal/cacheutil"
	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/storage"
)

// DefaultCacheTTL bounds how long a resolved profile is served without
// re-reading storage. Credential rotations take effect within one TTL.
const DefaultCacheTTL = 60 * time.Second

// Resolver resolves and caches banking profiles per merchant.
type Resolver struct {
	store storage.Store
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[int64]cacheutil.CachedValue[*storage.BankingProfile]
}

// NewResolver builds a Resolver over store. A non-positive ttl falls back
// to DefaultCacheTTL.
func NewResolver(store storage.Store, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{
		store: store,
		ttl:   ttl,
		cache: make(map[int64]cacheutil.CachedValue[*storage.BankingProfile]),
	}
}

// Resolve returns the banking profile governing m, walking store, site,
// then group scope. No active binding at any scope is an error; the hub
// never guesses credentials.
func (r *Resolver) Resolve(ctx context.Context, m *storage.Merchant) (*storage.BankingProfile, error) {
	return cacheutil.ReadThrough(
		&r.mu,
		func(now time.Time) (*storage.BankingProfile, bool) {
			if entry, ok := r.cache[m.ID]; ok && now.Sub(entry.FetchedAt) < r.ttl {
				return entry.Value, true
			}
			return nil, false
		},
		func(now time.Time) (*storage.BankingProfile, error) {
			p, err := r.lookup(ctx, m)
			if err != nil {
				return nil, err
			}
			r.cache[m.ID] = cacheutil.CachedValue[*storage.BankingProfile]{Value: p, FetchedAt: now}
			return p, nil
		},
	)
}

func (r *Resolver) lookup(ctx context.Context, m *storage.Merchant) (*storage.BankingProfile, error) {
	attempts := []struct {
		scope storage.ProfileScope
		key   int64
	}{
		{storage.ScopeStore, m.ID},
		{storage.ScopeSite, m.SiteID},
		{storage.ScopeGroup, m.GroupID},
	}
	for _, a := range attempts {
		p, err := r.store.FindActiveProfile(ctx, a.scope, a.key)
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "resolve banking profile")
		}
		return p, nil
	}
	return nil, errors.E(errors.ErrCodeProfileNotFound,
		"no active banking profile for store %d (site %d, group %d)", m.ID, m.SiteID, m.GroupID)
}

// Invalidate drops the cached profile for one merchant.
func (r *Resolver) Invalidate(merchantID int64) {
	r.mu.Lock()
	delete(r.cache, merchantID)
	r.mu.Unlock()
}

// InvalidateAll drops every cached profile. Called after profile writes,
// which can change resolution for any merchant in the affected scope.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[int64]cacheutil.CachedValue[*storage.BankingProfile])
	r.mu.Unlock()
}
