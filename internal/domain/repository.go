// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// Decisions and notification outcomes are append-only; merchants are
// upserted; the config map is a durable key→string store that backs
// fingerprints, engine state, and the latest cycle summary.
type Repository interface {
	// Merchant operations
	SaveMerchant(ctx context.Context, m *MerchantProfile) error
	GetMerchant(ctx context.Context, merchantID string) (*MerchantProfile, error)
	ListMerchants(ctx context.Context) ([]*MerchantProfile, error)
	SetNotificationStatus(ctx context.Context, merchantID string, status string) error
	ResetNotificationStatuses(ctx context.Context) (int64, error)

	// Decision history (append-only)
	SaveDecision(ctx context.Context, d *Decision) error
	LatestDecision(ctx context.Context, merchantID string) (*Decision, error)
	ListDecisions(ctx context.Context, merchantID string, limit int) ([]*Decision, error)

	// Notification outcomes (append-only)
	SaveNotificationOutcome(ctx context.Context, o *NotificationOutcome) error
	LatestNotificationOutcome(ctx context.Context, merchantID string) (*NotificationOutcome, error)

	// Override policy rules
	SaveOverrideRule(ctx context.Context, rule *OverrideRule) error
	ListOverrideRules(ctx context.Context) ([]*OverrideRule, error)
	DeleteOverrideRule(ctx context.Context, ruleID string) error

	// Durable config store (key → string)
	GetConfig(ctx context.Context, key string, def string) (string, error)
	SetConfig(ctx context.Context, key string, value string) error
	DeleteConfigPrefix(ctx context.Context, prefix string) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Config store keys used by the engine.
const (
	ConfigKeyEngineState       = "engine_state"
	ConfigKeyLastCycleSummary  = "last_cycle_summary"
	ConfigKeyTestDestEnabled   = "test_destination_override_enabled"
	ConfigKeyTestDestination   = "test_destination"
	ConfigFingerprintKeyPrefix = "fp_"
)

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
