package database

import (
	"fmt"

	"go.uber.org/zap"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the embedded, ordered schema history. Append-only: never
// edit an applied entry, add a new version instead.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		SQL: `
			CREATE TABLE IF NOT EXISTS invoices (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				company_id INTEGER NOT NULL,
				number TEXT NOT NULL,
				customer_name TEXT NOT NULL,
				amount INTEGER NOT NULL,
				currency TEXT NOT NULL DEFAULT 'USD',
				due_date DATETIME,
				status TEXT NOT NULL DEFAULT 'DRAFT',
				version INTEGER NOT NULL DEFAULT 1,
				requires_approval BOOLEAN NOT NULL DEFAULT 0,
				approved_by TEXT,
				approved_at DATETIME,
				rejected_by TEXT,
				rejected_at DATETIME,
				rejection_reason TEXT,
				created_by TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_invoices_company ON invoices(company_id);
			CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);

			CREATE TABLE IF NOT EXISTS expenses (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				company_id INTEGER NOT NULL,
				description TEXT NOT NULL,
				amount INTEGER NOT NULL,
				currency TEXT NOT NULL DEFAULT 'USD',
				category TEXT NOT NULL,
				receipt_url TEXT,
				status TEXT NOT NULL DEFAULT 'DRAFT',
				version INTEGER NOT NULL DEFAULT 1,
				requires_approval BOOLEAN NOT NULL DEFAULT 0,
				approved_by TEXT,
				approved_at DATETIME,
				rejected_by TEXT,
				rejected_at DATETIME,
				rejection_reason TEXT,
				created_by TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_expenses_company ON expenses(company_id);
			CREATE INDEX IF NOT EXISTS idx_expenses_status ON expenses(status);
		`,
	},
	{
		Version: 2,
		Name:    "workflow_history",
		SQL: `
			CREATE TABLE IF NOT EXISTS workflow_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				entity_type TEXT NOT NULL,
				entity_id INTEGER NOT NULL,
				from_status TEXT NOT NULL,
				to_status TEXT NOT NULL,
				actor_id TEXT NOT NULL,
				reason TEXT,
				timestamp DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_workflow_history_entity
				ON workflow_history(entity_type, entity_id);
		`,
	},
	{
		Version: 3,
		Name:    "audit_log",
		SQL: `
			CREATE TABLE IF NOT EXISTS audit_log (
				id TEXT PRIMARY KEY,
				timestamp DATETIME NOT NULL,
				actor_id TEXT NOT NULL,
				action TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				entity_id INTEGER NOT NULL,
				change_set TEXT NOT NULL,
				checksum TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_audit_log_entity
				ON audit_log(entity_type, entity_id);
			CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp
				ON audit_log(timestamp);
		`,
	},
	{
		Version: 4,
		Name:    "business_rules",
		SQL: `
			CREATE TABLE IF NOT EXISTS business_rules (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				entity_type TEXT NOT NULL,
				rule_type TEXT NOT NULL,
				condition TEXT NOT NULL,
				action TEXT NOT NULL,
				action_params TEXT,
				severity TEXT NOT NULL,
				message TEXT NOT NULL,
				priority INTEGER NOT NULL DEFAULT 0,
				is_active BOOLEAN NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_business_rules_entity
				ON business_rules(entity_type, is_active);
		`,
	},
	{
		Version: 5,
		Name:    "notifications",
		SQL: `
			CREATE TABLE IF NOT EXISTS notifications (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				recipient_id TEXT NOT NULL,
				channel TEXT NOT NULL,
				subject TEXT NOT NULL,
				body TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				entity_id INTEGER NOT NULL,
				status TEXT NOT NULL DEFAULT 'PENDING',
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_notifications_status
				ON notifications(status);
			CREATE INDEX IF NOT EXISTS idx_notifications_entity
				ON notifications(entity_type, entity_id);
		`,
	},
}

// Migrator handles database migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// createMigrationsTable creates the migrations tracking table
func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := m.db.Exec(query)
	return err
}

// getAppliedMigrations returns the list of applied migration versions
func (m *Migrator) getAppliedMigrations() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// RunMigrations executes all pending embedded migrations
func (m *Migrator) RunMigrations() error {
	m.logger.Info("Starting database migrations")

	// Create migrations table if it doesn't exist
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get applied migrations
	applied, err := m.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	// Apply pending migrations
	for _, migration := range migrations {
		if applied[migration.Version] {
			m.logger.Debug("Skipping applied migration",
				zap.Int("version", migration.Version),
				zap.String("name", migration.Name))
			continue
		}

		m.logger.Info("Applying migration",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name))

		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	m.logger.Info("Database migrations completed successfully")
	return nil
}

// applyMigration applies a single migration within a transaction
func (m *Migrator) applyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(migration.SQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		migration.Version,
		migration.Name,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
