package profile

import (
	"context"
	"testing"
	"time"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/storage"
)

func seedMerchant(t *testing.T, s storage.Store) *storage.Merchant {
	t.Helper()
	m, err := s.CreateMerchant(context.Background(), &storage.Merchant{
		Name: "Noodle Corner", GroupID: 1, SiteID: 10, DefaultMenuID: 100,
		Token: "00100010000100000100", Active: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func seedProfile(t *testing.T, s storage.Store, scope storage.ProfileScope, key int64, provider string) {
	t.Helper()
	p := &storage.BankingProfile{Scope: scope, ProviderType: provider, Active: true}
	switch scope {
	case storage.ScopeGroup:
		p.GroupID = &key
	case storage.ScopeSite:
		p.SiteID = &key
	case storage.ScopeStore:
		p.StoreID = &key
	}
	if _, err := s.CreateBankingProfile(context.Background(), p); err != nil {
		t.Fatal(err)
	}
}

func TestResolvePrecedence(t *testing.T) {
	ctx := context.Background()

	t.Run("store scope wins over site and group", func(t *testing.T) {
		s := storage.NewMemoryStore()
		m := seedMerchant(t, s)
		seedProfile(t, s, storage.ScopeGroup, m.GroupID, "kbank")
		seedProfile(t, s, storage.ScopeSite, m.SiteID, "omise")
		seedProfile(t, s, storage.ScopeStore, m.ID, "scb")

		p, err := NewResolver(s, 0).Resolve(ctx, m)
		if err != nil {
			t.Fatal(err)
		}
		if p.ProviderType != "scb" {
			t.Errorf("resolved %s, want scb", p.ProviderType)
		}
	})

	t.Run("falls through to site then group", func(t *testing.T) {
		s := storage.NewMemoryStore()
		m := seedMerchant(t, s)
		seedProfile(t, s, storage.ScopeGroup, m.GroupID, "kbank")

		p, err := NewResolver(s, 0).Resolve(ctx, m)
		if err != nil {
			t.Fatal(err)
		}
		if p.ProviderType != "kbank" {
			t.Errorf("resolved %s, want kbank", p.ProviderType)
		}
	})

	t.Run("no binding anywhere is an error", func(t *testing.T) {
		s := storage.NewMemoryStore()
		m := seedMerchant(t, s)

		_, err := NewResolver(s, 0).Resolve(ctx, m)
		if !errors.Is(err, errors.ErrCodeProfileNotFound) {
			t.Errorf("want banking_profile_not_found, got %v", err)
		}
	})
}

func TestResolveCachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	m := seedMerchant(t, s)
	seedProfile(t, s, storage.ScopeGroup, m.GroupID, "kbank")

	r := NewResolver(s, time.Hour)
	p1, err := r.Resolve(ctx, m)
	if err != nil {
		t.Fatal(err)
	}

	// A newly bound narrower profile is invisible until invalidation.
	seedProfile(t, s, storage.ScopeStore, m.ID, "scb")
	p2, err := r.Resolve(ctx, m)
	if err != nil {
		t.Fatal(err)
	}
	if p2.ProviderType != p1.ProviderType {
		t.Errorf("cached resolve changed: %s -> %s", p1.ProviderType, p2.ProviderType)
	}

	r.Invalidate(m.ID)
	p3, err := r.Resolve(ctx, m)
	if err != nil {
		t.Fatal(err)
	}
	if p3.ProviderType != "scb" {
		t.Errorf("after invalidation resolved %s, want scb", p3.ProviderType)
	}
}
