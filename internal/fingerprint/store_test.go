package fingerprint

import (
	"context"
	"os"
	"testing"

	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "harrier-fp-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return NewStore(repo, cache.NewLRUCache(100))
}

func merchant() *domain.MerchantProfile {
	return &domain.MerchantProfile{
		ID:              "m-001",
		Category:        "Grocery",
		ContactNumber:   "9876543210",
		MonthlyRevenue:  90000,
		CreditScore:     780,
		YearsInBusiness: 5,
		MonthlyGMV:      []float64{400000, 420000},
	}
}

func TestComputeDeterministic(t *testing.T) {
	a, err := Compute(merchant())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	b, err := Compute(merchant())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if a != b {
		t.Errorf("expected identical fingerprints, got %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected sha256 hex digest, got %d chars", len(a))
	}
}

func TestComputeSensitivity(t *testing.T) {
	base, _ := Compute(merchant())

	t.Run("ScoringFieldChanges", func(t *testing.T) {
		m := merchant()
		m.CreditScore = 600
		fp, _ := Compute(m)
		if fp == base {
			t.Error("expected fingerprint to change with credit score")
		}
	})

	t.Run("ContactChanges", func(t *testing.T) {
		m := merchant()
		m.ContactNumber = "9999999999"
		fp, _ := Compute(m)
		if fp == base {
			t.Error("expected fingerprint to change with contact number")
		}
	})

	t.Run("CosmeticFieldIgnored", func(t *testing.T) {
		m := merchant()
		m.BusinessName = "Renamed Trading Co"
		m.LastNotificationStatus = "DELIVERED"
		fp, _ := Compute(m)
		if fp != base {
			t.Error("expected fingerprint unchanged by cosmetic fields")
		}
	})
}

func TestShouldProcessLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fp, err := Compute(merchant())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// No prior fingerprint: always process.
	changed, err := store.ShouldProcess(ctx, "m-001", fp)
	if err != nil {
		t.Fatalf("ShouldProcess failed: %v", err)
	}
	if !changed {
		t.Error("expected processing with no prior fingerprint")
	}

	if err := store.Commit(ctx, "m-001", fp); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	changed, err = store.ShouldProcess(ctx, "m-001", fp)
	if err != nil {
		t.Fatalf("ShouldProcess failed: %v", err)
	}
	if changed {
		t.Error("expected unchanged merchant skipped after commit")
	}

	m := merchant()
	m.CreditScore = 600
	newFP, _ := Compute(m)

	changed, err = store.ShouldProcess(ctx, "m-001", newFP)
	if err != nil {
		t.Fatalf("ShouldProcess failed: %v", err)
	}
	if !changed {
		t.Error("expected changed merchant to be processed")
	}
}

func TestClearAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"m-001", "m-002"} {
		if err := store.Commit(ctx, id, "abc123"); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
	}

	deleted, err := store.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 fingerprints cleared, got %d", deleted)
	}

	changed, err := store.ShouldProcess(ctx, "m-001", "abc123")
	if err != nil {
		t.Fatalf("ShouldProcess failed: %v", err)
	}
	if !changed {
		t.Error("expected cleared merchant to be processed again")
	}
}

func TestStoreWithoutCache(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "harrier-fp-nocache-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	store := NewStore(repo, nil)
	ctx := context.Background()

	if err := store.Commit(ctx, "m-001", "abc123"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	changed, err := store.ShouldProcess(ctx, "m-001", "abc123")
	if err != nil {
		t.Fatalf("ShouldProcess failed: %v", err)
	}
	if changed {
		t.Error("expected durable fingerprint honored without a cache")
	}
}
