package sqlite

import "database/sql"

// schema sets up the database on startup.
// Customers are created before properties because properties reference their owner.
// Money columns are TEXT holding canonical decimal strings so that equality
// comparisons in duplicate queries are exact.
const schema = `
CREATE TABLE IF NOT EXISTS customers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    is_property_owner INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS properties (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    address_line1 TEXT NOT NULL DEFAULT '',
    address_line2 TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    postcode TEXT NOT NULL DEFAULT '',
    commission_rate TEXT,
    owner_id INTEGER,
    FOREIGN KEY (owner_id) REFERENCES customers(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS property_owners (
    property_id INTEGER NOT NULL,
    customer_id INTEGER NOT NULL,
    ownership_type TEXT NOT NULL DEFAULT 'OWNER',
    PRIMARY KEY (property_id, customer_id),
    FOREIGN KEY (property_id) REFERENCES properties(id) ON DELETE CASCADE,
    FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS leases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    reference TEXT NOT NULL UNIQUE,
    property_id INTEGER NOT NULL,
    customer_id INTEGER NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT,
    monthly_rent TEXT NOT NULL DEFAULT '0',
    FOREIGN KEY (property_id) REFERENCES properties(id) ON DELETE CASCADE,
    FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS payment_sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    transaction_date TEXT NOT NULL,
    amount TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    transaction_type TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    subcategory TEXT NOT NULL DEFAULT '',
    property_id INTEGER,
    customer_id INTEGER,
    lease_id INTEGER,
    beneficiary_type TEXT NOT NULL DEFAULT '',
    payment_source_id INTEGER,
    incoming_transaction_id INTEGER,
    incoming_transaction_amount TEXT,
    commission_rate TEXT,
    commission_amount TEXT,
    net_to_owner_amount TEXT,
    source TEXT NOT NULL,
    bank_reference TEXT NOT NULL DEFAULT '',
    payment_method TEXT NOT NULL DEFAULT '',
    counterparty_name TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    batch_id TEXT NOT NULL DEFAULT '',
    created_by TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    FOREIGN KEY (property_id) REFERENCES properties(id),
    FOREIGN KEY (customer_id) REFERENCES customers(id),
    FOREIGN KEY (lease_id) REFERENCES leases(id),
    FOREIGN KEY (payment_source_id) REFERENCES payment_sources(id),
    FOREIGN KEY (incoming_transaction_id) REFERENCES transactions(id)
);

CREATE TABLE IF NOT EXISTS balance_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL,
    property_id INTEGER NOT NULL,
    period TEXT NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('allocation', 'expense', 'payment')),
    amount TEXT NOT NULL,
    transaction_id INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (owner_id) REFERENCES customers(id),
    FOREIGN KEY (property_id) REFERENCES properties(id),
    FOREIGN KEY (transaction_id) REFERENCES transactions(id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_fingerprint ON transactions(transaction_date, amount, transaction_type);
CREATE INDEX IF NOT EXISTS idx_transactions_batch_id ON transactions(batch_id);
CREATE INDEX IF NOT EXISTS idx_transactions_incoming ON transactions(incoming_transaction_id);
CREATE INDEX IF NOT EXISTS idx_leases_property_customer ON leases(property_id, customer_id);
CREATE INDEX IF NOT EXISTS idx_balance_events_key ON balance_events(owner_id, property_id, period);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
