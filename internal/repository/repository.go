// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveMerchant upserts a merchant profile.
func (r *SQLRepository) SaveMerchant(ctx context.Context, m *domain.MerchantProfile) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: merchant id is required", ErrInvalidInput)
	}

	gmv, _ := json.Marshal(m.MonthlyGMV)
	now := time.Now().UTC()
	created := m.CreatedAt
	if created.IsZero() {
		created = now
	}

	query := `
		INSERT INTO merchants (
			id, business_name, category, contact_number, secure_token,
			monthly_revenue, credit_score, years_in_business, existing_loans,
			past_defaults, monthly_gmv, refund_rate, chargeback_rate,
			customer_return_rate, unique_customers, avg_order_value,
			seasonality_index, product_mode, last_notification_status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			business_name = excluded.business_name,
			category = excluded.category,
			contact_number = excluded.contact_number,
			secure_token = excluded.secure_token,
			monthly_revenue = excluded.monthly_revenue,
			credit_score = excluded.credit_score,
			years_in_business = excluded.years_in_business,
			existing_loans = excluded.existing_loans,
			past_defaults = excluded.past_defaults,
			monthly_gmv = excluded.monthly_gmv,
			refund_rate = excluded.refund_rate,
			chargeback_rate = excluded.chargeback_rate,
			customer_return_rate = excluded.customer_return_rate,
			unique_customers = excluded.unique_customers,
			avg_order_value = excluded.avg_order_value,
			seasonality_index = excluded.seasonality_index,
			product_mode = excluded.product_mode,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		m.ID, m.BusinessName, m.Category, m.ContactNumber, m.SecureToken,
		m.MonthlyRevenue, m.CreditScore, m.YearsInBusiness, m.ExistingLoans,
		m.PastDefaults, string(gmv), m.RefundRate, m.ChargebackRate,
		m.CustomerReturnRate, m.UniqueCustomers, m.AvgOrderValue,
		m.SeasonalityIndex, string(m.Mode()), m.LastNotificationStatus,
		created, now,
	)
	return err
}

const merchantColumns = `id, business_name, category, contact_number, secure_token,
	   monthly_revenue, credit_score, years_in_business, existing_loans,
	   past_defaults, monthly_gmv, refund_rate, chargeback_rate,
	   customer_return_rate, unique_customers, avg_order_value,
	   seasonality_index, product_mode, last_notification_status,
	   created_at, updated_at`

func scanMerchant(scan func(dest ...any) error) (*domain.MerchantProfile, error) {
	var m domain.MerchantProfile
	var gmv, mode, notifStatus sql.NullString

	err := scan(
		&m.ID, &m.BusinessName, &m.Category, &m.ContactNumber, &m.SecureToken,
		&m.MonthlyRevenue, &m.CreditScore, &m.YearsInBusiness, &m.ExistingLoans,
		&m.PastDefaults, &gmv, &m.RefundRate, &m.ChargebackRate,
		&m.CustomerReturnRate, &m.UniqueCustomers, &m.AvgOrderValue,
		&m.SeasonalityIndex, &mode, &notifStatus,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if gmv.String != "" {
		json.Unmarshal([]byte(gmv.String), &m.MonthlyGMV)
	}
	m.ProductMode = domain.ProductMode(mode.String)
	m.LastNotificationStatus = notifStatus.String

	return &m, nil
}

// GetMerchant retrieves a merchant profile by ID.
func (r *SQLRepository) GetMerchant(ctx context.Context, merchantID string) (*domain.MerchantProfile, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), merchantID)
	m, err := scanMerchant(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMerchants retrieves all merchant profiles.
func (r *SQLRepository) ListMerchants(ctx context.Context) ([]*domain.MerchantProfile, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var merchants []*domain.MerchantProfile
	for rows.Next() {
		m, err := scanMerchant(rows.Scan)
		if err != nil {
			return nil, err
		}
		merchants = append(merchants, m)
	}
	return merchants, rows.Err()
}

// SetNotificationStatus updates a merchant's latest dispatch status.
func (r *SQLRepository) SetNotificationStatus(ctx context.Context, merchantID string, status string) error {
	query := `UPDATE merchants SET last_notification_status = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), status, time.Now().UTC(), merchantID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetNotificationStatuses clears the dispatch status on all merchants.
func (r *SQLRepository) ResetNotificationStatuses(ctx context.Context) (int64, error) {
	query := `UPDATE merchants SET last_notification_status = '', updated_at = ? WHERE last_notification_status != ''`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SaveDecision appends a decision record.
func (r *SQLRepository) SaveDecision(ctx context.Context, d *domain.Decision) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("%w: decision id is required", ErrInvalidInput)
	}

	var offerJSON string
	if d.Offer != nil {
		raw, _ := json.Marshal(d.Offer)
		offerJSON = string(raw)
	}

	query := `
		INSERT INTO decisions (
			id, merchant_id, outcome, computed_outcome, override_rule_id,
			tier, score, rationale, advisory_source, offer, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		d.ID, d.MerchantID, string(d.Outcome), string(d.ComputedOutcome),
		d.OverrideRuleID, string(d.Tier), d.Score, d.Rationale,
		d.AdvisorySource, offerJSON, d.CreatedAt,
	)
	return err
}

const decisionColumns = `id, merchant_id, outcome, computed_outcome, override_rule_id,
	   tier, score, rationale, advisory_source, offer, created_at`

func scanDecision(scan func(dest ...any) error) (*domain.Decision, error) {
	var d domain.Decision
	var outcome, computed, tier string
	var offerJSON sql.NullString

	err := scan(
		&d.ID, &d.MerchantID, &outcome, &computed, &d.OverrideRuleID,
		&tier, &d.Score, &d.Rationale, &d.AdvisorySource, &offerJSON,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Outcome = domain.Outcome(outcome)
	d.ComputedOutcome = domain.Outcome(computed)
	d.Tier = domain.Tier(tier)
	if offerJSON.String != "" {
		var offer domain.FinancialOffer
		if err := json.Unmarshal([]byte(offerJSON.String), &offer); err == nil {
			d.Offer = &offer
		}
	}

	return &d, nil
}

// LatestDecision retrieves the most recent decision for a merchant, or
// ErrNotFound when none exists.
func (r *SQLRepository) LatestDecision(ctx context.Context, merchantID string) (*domain.Decision, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM decisions
		WHERE merchant_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), merchantID)
	d, err := scanDecision(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDecisions retrieves a merchant's decision history, newest first.
func (r *SQLRepository) ListDecisions(ctx context.Context, merchantID string, limit int) ([]*domain.Decision, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + decisionColumns + `
		FROM decisions
		WHERE merchant_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), merchantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.Decision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// SaveNotificationOutcome appends a dispatch outcome record.
func (r *SQLRepository) SaveNotificationOutcome(ctx context.Context, o *domain.NotificationOutcome) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("%w: outcome id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO notification_outcomes (
			id, merchant_id, destination, status, reason, provider_id, attempts, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		o.ID, o.MerchantID, o.Destination, o.Status, o.Reason,
		o.ProviderID, o.Attempts, o.CreatedAt,
	)
	return err
}

// LatestNotificationOutcome retrieves the most recent dispatch outcome
// for a merchant, or ErrNotFound when none exists.
func (r *SQLRepository) LatestNotificationOutcome(ctx context.Context, merchantID string) (*domain.NotificationOutcome, error) {
	query := `
		SELECT id, merchant_id, destination, status, reason, provider_id, attempts, created_at
		FROM notification_outcomes
		WHERE merchant_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var o domain.NotificationOutcome
	err := r.db.QueryRowContext(ctx, r.rebind(query), merchantID).Scan(
		&o.ID, &o.MerchantID, &o.Destination, &o.Status, &o.Reason,
		&o.ProviderID, &o.Attempts, &o.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveOverrideRule upserts an override policy rule.
func (r *SQLRepository) SaveOverrideRule(ctx context.Context, rule *domain.OverrideRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()
	created := rule.CreatedAt
	if created.IsZero() {
		created = now
	}

	query := `
		INSERT INTO override_rules (
			id, name, expression, outcome, reason, priority, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			expression = excluded.expression,
			outcome = excluded.outcome,
			reason = excluded.reason,
			priority = excluded.priority,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Expression, string(rule.Outcome),
		rule.Reason, rule.Priority, enabled, created, now,
	)
	return err
}

// ListOverrideRules retrieves all override rules, enabled or not.
func (r *SQLRepository) ListOverrideRules(ctx context.Context) ([]*domain.OverrideRule, error) {
	query := `
		SELECT id, name, expression, outcome, reason, priority, enabled, created_at, updated_at
		FROM override_rules
		ORDER BY priority, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.OverrideRule
	for rows.Next() {
		var rule domain.OverrideRule
		var outcome string
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Expression, &outcome, &rule.Reason,
			&rule.Priority, &enabled, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Outcome = domain.Outcome(outcome)
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// DeleteOverrideRule removes an override rule.
func (r *SQLRepository) DeleteOverrideRule(ctx context.Context, ruleID string) error {
	query := `DELETE FROM override_rules WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), ruleID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetConfig reads a config value, returning def when the key is absent.
func (r *SQLRepository) GetConfig(ctx context.Context, key string, def string) (string, error) {
	query := `SELECT value FROM config WHERE key = ?`

	var value string
	err := r.db.QueryRowContext(ctx, r.rebind(query), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetConfig upserts a config value.
func (r *SQLRepository) SetConfig(ctx context.Context, key string, value string) error {
	query := `
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query), key, value, time.Now().UTC())
	return err
}

// DeleteConfigPrefix removes every config key with the given prefix and
// returns the number removed.
func (r *SQLRepository) DeleteConfigPrefix(ctx context.Context, prefix string) (int64, error) {
	query := `DELETE FROM config WHERE key LIKE ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), prefix+"%")
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
