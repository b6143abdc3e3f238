package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaMerchants = `
CREATE TABLE IF NOT EXISTS merchants (
    id TEXT PRIMARY KEY,
    business_name TEXT NOT NULL,
    category TEXT,
    contact_number TEXT,
    secure_token TEXT,
    monthly_revenue REAL NOT NULL,
    credit_score INTEGER NOT NULL,
    years_in_business INTEGER NOT NULL DEFAULT 0,
    existing_loans INTEGER NOT NULL DEFAULT 0,
    past_defaults INTEGER NOT NULL DEFAULT 0,
    monthly_gmv TEXT,
    refund_rate REAL NOT NULL DEFAULT 0,
    chargeback_rate REAL NOT NULL DEFAULT 0,
    customer_return_rate REAL NOT NULL DEFAULT 0,
    unique_customers INTEGER NOT NULL DEFAULT 0,
    avg_order_value REAL NOT NULL DEFAULT 0,
    seasonality_index REAL NOT NULL DEFAULT 0,
    product_mode TEXT,
    last_notification_status TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_merchants_category ON merchants(category);
`

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    merchant_id TEXT NOT NULL,
    outcome TEXT NOT NULL,
    computed_outcome TEXT,
    override_rule_id TEXT,
    tier TEXT NOT NULL,
    score INTEGER NOT NULL,
    rationale TEXT,
    advisory_source TEXT,
    offer TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_merchant ON decisions(merchant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_outcome ON decisions(outcome);
`

const schemaNotificationOutcomes = `
CREATE TABLE IF NOT EXISTS notification_outcomes (
    id TEXT PRIMARY KEY,
    merchant_id TEXT NOT NULL,
    destination TEXT,
    status TEXT NOT NULL,
    reason TEXT,
    provider_id TEXT,
    attempts INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notification_outcomes_merchant ON notification_outcomes(merchant_id, created_at);
`

const schemaOverrideRules = `
CREATE TABLE IF NOT EXISTS override_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    expression TEXT NOT NULL,
    outcome TEXT NOT NULL,
    reason TEXT,
    priority INTEGER NOT NULL DEFAULT 100,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_override_rules_enabled ON override_rules(enabled);
`

// schemaConfig backs the durable key→value store: fingerprints, engine
// state, last cycle summary, test destination override.
const schemaConfig = `
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaMerchants,
		schemaDecisions,
		schemaNotificationOutcomes,
		schemaOverrideRules,
		schemaConfig,
	}
}
