// Package fingerprint implements change detection for merchant profiles.
// A fingerprint is a content hash of the scoring-relevant field set plus
// the contact channel; unchanged merchants are skipped by the monitor.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/scoring"
)

const cacheTTL = 10 * time.Minute

// Store backs fingerprints with the durable config store, with an
// optional cache fast path in front of it.
type Store struct {
	repo  domain.Repository
	cache domain.Cache // may be nil
}

// NewStore creates a fingerprint store.
func NewStore(repo domain.Repository, cache domain.Cache) *Store {
	return &Store{repo: repo, cache: cache}
}

// Compute hashes the merchant's scoring snapshot. The field set is
// declared once in scoring.Snapshot, keeping the hash in lockstep with
// what the scorer reads.
func Compute(m *domain.MerchantProfile) (string, error) {
	raw, err := json.Marshal(scoring.NewSnapshot(m))
	if err != nil {
		return "", fmt.Errorf("failed to serialize fingerprint snapshot: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// ShouldProcess reports whether the merchant changed since the last
// commit: true when no prior fingerprint exists or the stored value
// differs from current.
func (s *Store) ShouldProcess(ctx context.Context, merchantID string, current string) (bool, error) {
	key := configKey(merchantID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != nil {
			return string(cached) != current, nil
		}
	}

	stored, err := s.repo.GetConfig(ctx, key, "")
	if err != nil {
		return false, fmt.Errorf("failed to read fingerprint for %s: %w", merchantID, err)
	}
	return stored != current, nil
}

// Commit overwrites the stored fingerprint. Called only after the
// merchant's pipeline run completed successfully.
func (s *Store) Commit(ctx context.Context, merchantID string, fp string) error {
	key := configKey(merchantID)
	if err := s.repo.SetConfig(ctx, key, fp); err != nil {
		return &domain.PersistenceError{Op: "fingerprint commit", Err: err}
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, []byte(fp), cacheTTL)
	}
	return nil
}

// ClearAll removes every stored fingerprint, forcing every merchant to be
// treated as changed on the next cycle. Returns the number removed.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteConfigPrefix(ctx, domain.ConfigFingerprintKeyPrefix)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "fingerprint clear", Err: err}
	}
	if s.cache != nil {
		_, _ = s.cache.DeletePrefix(ctx, domain.ConfigFingerprintKeyPrefix)
	}
	return deleted, nil
}

func configKey(merchantID string) string {
	return domain.ConfigFingerprintKeyPrefix + merchantID
}
