package migrator

import (
	"context"
	_ "embed"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/societal-sandpaper/partsdb/core/sqlutil"
	"github.com/societal-sandpaper/partsdb/dbschema"
)

//go:embed base/schema.sql
var migrationsSchemaSQL string

//go:embed base/get_version.sql
var getVersionSQL string

//go:embed base/record_migration.sql
var recordMigrationSQL string

//go:embed base/delete_migration.sql
var deleteMigrationSQL string

// MigrationFunc represents a migration function that operates on a database connection
type MigrationFunc func(context.Context, *dbschema.DatabaseConnection) error

// Migration represents a single versioned schema change. Migrations are
// not idempotent by themselves; the ledger guarantees exactly-once
// application.
type Migration struct {
	Version     int
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

// SplitSQLStatements splits a SQL script into individual statements.
// This is needed because the MySQL driver rejects multiple statements in a
// single Exec call. Semicolons inside string literals, quoted identifiers
// and comments are handled correctly.
func SplitSQLStatements(sql string) []string {
	return sqlutil.SplitSQLStatements(sqlutil.StripComments(sql))
}

// MigrationFuncFromSQLFilename returns a migration function that reads SQL
// from a file in the provided filesystem and executes it, statement by
// statement, through the connection's writer
func MigrationFuncFromSQLFilename(filename string, fsys fs.FS) MigrationFunc {
	return func(ctx context.Context, conn *dbschema.DatabaseConnection) error {
		sql, err := fs.ReadFile(fsys, filename)
		if err != nil {
			return fmt.Errorf("failed to read migration file: %w", err)
		}

		for _, stmt := range SplitSQLStatements(string(sql)) {
			if err := conn.Writer().ExecuteSQL(stmt); err != nil {
				return fmt.Errorf("failed to execute migration SQL: %w", err)
			}
		}

		return nil
	}
}

// NoopMigrationFunc is a no-op migration function
func NoopMigrationFunc(_ context.Context, _ *dbschema.DatabaseConnection) error {
	return nil
}

// CreateMigrationFromSQL creates a migration from SQL strings. This is
// useful for programmatically creating migrations.
func CreateMigrationFromSQL(version int, description, upSQL, downSQL string) *Migration {
	run := func(sql string) MigrationFunc {
		return func(ctx context.Context, conn *dbschema.DatabaseConnection) error {
			for _, stmt := range SplitSQLStatements(sql) {
				if err := conn.Writer().ExecuteSQL(stmt); err != nil {
					return fmt.Errorf("failed to execute SQL statement: %w", err)
				}
			}
			return nil
		}
	}

	return &Migration{
		Version:     version,
		Description: description,
		Up:          run(upSQL),
		Down:        run(downSQL),
	}
}

// FormatTimestampForDatabase returns the applied_at value recorded in the
// ledger. The ledger stores it as text, so the format is dialect-independent.
func FormatTimestampForDatabase(_dialect string) string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

// quoteLedgerString escapes single quotes for inclusion in ledger SQL
func quoteLedgerString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
