// Package migrator applies versioned schema migrations in strict version
// order, exactly once, tracked in a persisted ledger table.
//
// Each migration runs inside its own transaction together with its ledger
// record, so on engines with transactional DDL a failed migration leaves no
// trace. Engines whose DDL commits implicitly (MySQL) cannot roll DDL back;
// there a failure is surfaced as fatal and the migration is not recorded,
// leaving manual cleanup to the operator. Failures never allow later
// migrations to run.
package migrator

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/societal-sandpaper/partsdb/dbschema"
)

// MigrationStatus represents the current state of migrations
type MigrationStatus struct {
	CurrentVersion    int   `json:"current_version"`
	PendingMigrations []int `json:"pending_migrations"`
	TotalMigrations   int   `json:"total_migrations"`
	HasPendingChanges bool  `json:"has_pending_changes"`
}

// Migrator applies migrations from a provider against a database connection
type Migrator struct {
	conn              *dbschema.DatabaseConnection
	migrationProvider MigrationProvider
	initialized       bool
	logger            *slog.Logger
}

// NewFSMigrator creates a migrator that loads migrations from a filesystem.
// It scans for migration files following the YYYY-MM-DD_NN_description
// naming convention and registers them. Returns an error if the filesystem
// cannot be scanned or if any migration is missing its up or down file.
func NewFSMigrator(conn *dbschema.DatabaseConnection, fsys fs.FS) (*Migrator, error) {
	provider, err := NewFSMigrationProvider(fsys)
	if err != nil {
		return nil, err
	}
	return NewMigrator(conn, provider), nil
}

// NewMigrator creates a new migrator with the given database connection
func NewMigrator(conn *dbschema.DatabaseConnection, provider MigrationProvider) *Migrator {
	return &Migrator{
		conn:              conn,
		migrationProvider: provider,
		logger:            slog.Default(),
	}
}

// WithLogger sets the logger for the migrator
func (m *Migrator) WithLogger(l *slog.Logger) *Migrator {
	tmp := *m
	tmp.logger = l
	return &tmp
}

// MigrationProvider returns the migration provider
func (m *Migrator) MigrationProvider() MigrationProvider {
	return m.migrationProvider
}

// Initialize creates the ledger table if it doesn't exist. In dry-run mode
// the bootstrap is logged, not executed, so the target database stays
// untouched.
func (m *Migrator) Initialize(ctx context.Context) error {
	if m.initialized {
		return nil
	}

	if m.conn.Writer().IsDryRun() {
		return m.conn.Writer().ExecuteSQL(migrationsSchemaSQL)
	}

	if _, err := m.conn.ExecContext(ctx, migrationsSchemaSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	m.initialized = true
	return nil
}

// GetCurrentVersion returns the highest applied migration version, or 0 for
// a database with no applied migrations
func (m *Migrator) GetCurrentVersion(ctx context.Context) (int, error) {
	if err := m.Initialize(ctx); err != nil {
		return 0, fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	var version int
	row := m.conn.QueryRowContext(ctx, getVersionSQL)
	if err := row.Scan(&version); err != nil {
		// A dry run against a database whose ledger was never created
		// treats it as unmigrated.
		if m.conn.Writer().IsDryRun() {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	return version, nil
}

// GetAppliedMigrations returns the applied migration versions in ascending order
func (m *Migrator) GetAppliedMigrations(ctx context.Context) ([]int, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	rows, err := m.conn.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		if m.conn.Writer().IsDryRun() {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []int
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied = append(applied, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migration rows: %w", err)
	}

	return applied, nil
}

// GetPendingMigrations returns the versions newer than the current one, in
// ascending order
func (m *Migrator) GetPendingMigrations(ctx context.Context) ([]int, error) {
	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	var pending []int
	for _, migration := range m.migrationProvider.Migrations() {
		if migration.Version > currentVersion {
			pending = append(pending, migration.Version)
		}
	}

	sort.Ints(pending)
	return pending, nil
}

// GetPreviousMigrationVersion finds the migration version preceding the
// current one. Returns an error and -1 if no previous migration exists.
func (m *Migrator) GetPreviousMigrationVersion(ctx context.Context) (int, error) {
	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return -1, fmt.Errorf("failed to get current version: %w", err)
	}

	if currentVersion == 0 {
		return -1, fmt.Errorf("no previous migrations exist")
	}

	previousVersion := 0
	for _, migration := range m.migrationProvider.Migrations() {
		if migration.Version >= currentVersion {
			break
		}
		previousVersion = migration.Version
	}

	return previousVersion, nil
}

// GetMigrationStatus returns information about the current migration state
func (m *Migrator) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}

	pendingMigrations, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending migrations: %w", err)
	}

	return &MigrationStatus{
		CurrentVersion:    currentVersion,
		PendingMigrations: pendingMigrations,
		TotalMigrations:   len(m.migrationProvider.Migrations()),
		HasPendingChanges: len(pendingMigrations) > 0,
	}, nil
}

// MigrateUp applies all pending migrations
func (m *Migrator) MigrateUp(ctx context.Context) error {
	return m.migrateUpTo(ctx, maxVersion)
}

// MigrateDown rolls the database back to the previous migration version
func (m *Migrator) MigrateDown(ctx context.Context) error {
	targetVersion, err := m.GetPreviousMigrationVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get previous version: %w", err)
	}

	return m.MigrateDownTo(ctx, targetVersion)
}

// MigrateTo migrates the database to a specific version, up or down
func (m *Migrator) MigrateTo(ctx context.Context, targetVersion int) error {
	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	switch {
	case targetVersion == currentVersion:
		m.logger.Info("Already at target version", "version", targetVersion)
		return nil
	case targetVersion > currentVersion:
		return m.migrateUpTo(ctx, targetVersion)
	default:
		return m.MigrateDownTo(ctx, targetVersion)
	}
}

// maxVersion is an upper bound meaning "apply everything"
const maxVersion = int(^uint(0) >> 1)

func (m *Migrator) migrateUpTo(ctx context.Context, targetVersion int) error {
	if err := m.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	migrations := m.migrationProvider.Migrations()
	m.logger.Info("Migrating up", "currentVersion", currentVersion, "totalMigrations", len(migrations))

	for _, migration := range migrations {
		if migration.Version <= currentVersion || migration.Version > targetVersion {
			continue
		}
		if err := m.applyMigration(ctx, migration); err != nil {
			return err
		}
	}

	m.logger.Info("All migrations applied successfully")
	return nil
}

// MigrateDownTo rolls the database back to the specified target version
func (m *Migrator) MigrateDownTo(ctx context.Context, targetVersion int) error {
	if err := m.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if targetVersion >= currentVersion {
		m.logger.Info("Already at or below target version", "targetVersion", targetVersion, "currentVersion", currentVersion)
		return nil
	}

	migrations := m.migrationProvider.Migrations()
	m.logger.Info("Migrating down", "targetVersion", targetVersion, "currentVersion", currentVersion)

	// Roll back newest first
	reversed := make([]*Migration, len(migrations))
	copy(reversed, migrations)
	sort.Slice(reversed, func(i, j int) bool {
		return reversed[i].Version > reversed[j].Version
	})

	for _, migration := range reversed {
		if migration.Version <= targetVersion || migration.Version > currentVersion {
			continue
		}
		if err := m.revertMigration(ctx, migration); err != nil {
			return err
		}
	}

	m.logger.Info("All migrations rolled back successfully")
	return nil
}

// applyMigration runs a single up migration and its ledger record in one
// transaction. A failure aborts the whole run; the migration is not marked
// as applied.
func (m *Migrator) applyMigration(ctx context.Context, migration *Migration) error {
	m.logger.Info("Applying migration", "version", migration.Version, "description", migration.Description)

	if err := m.conn.Writer().BeginTransaction(); err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
	}

	if err := migration.Up(ctx, m.conn); err != nil {
		_ = m.conn.Writer().RollbackTransaction()
		return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Description, err)
	}

	timestamp := FormatTimestampForDatabase(m.conn.Info().Dialect)
	recordSQL := fmt.Sprintf(recordMigrationSQL, migration.Version, quoteLedgerString(migration.Description), timestamp)
	if err := m.conn.Writer().ExecuteSQL(recordSQL); err != nil {
		_ = m.conn.Writer().RollbackTransaction()
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := m.conn.Writer().CommitTransaction(); err != nil {
		return fmt.Errorf("failed to commit transaction for migration %d: %w", migration.Version, err)
	}

	m.logger.Info("Applied migration", "version", migration.Version, "description", migration.Description)
	return nil
}

// revertMigration runs a single down migration and removes its ledger
// record in one transaction
func (m *Migrator) revertMigration(ctx context.Context, migration *Migration) error {
	m.logger.Info("Rolling back migration", "version", migration.Version, "description", migration.Description)

	if err := m.conn.Writer().BeginTransaction(); err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
	}

	if err := migration.Down(ctx, m.conn); err != nil {
		_ = m.conn.Writer().RollbackTransaction()
		return fmt.Errorf("failed to revert migration %d (%s): %w", migration.Version, migration.Description, err)
	}

	deleteSQL := fmt.Sprintf(deleteMigrationSQL, migration.Version)
	if err := m.conn.Writer().ExecuteSQL(deleteSQL); err != nil {
		_ = m.conn.Writer().RollbackTransaction()
		return fmt.Errorf("failed to record migration reversion %d: %w", migration.Version, err)
	}

	if err := m.conn.Writer().CommitTransaction(); err != nil {
		return fmt.Errorf("failed to commit transaction for migration %d: %w", migration.Version, err)
	}

	m.logger.Info("Rolled back migration", "version", migration.Version, "description", migration.Description)
	return nil
}
