// Package catalog ships the versioned schema for the electronic-component
// catalog as an embedded, ordered set of SQL migrations, one rendering per
// supported database dialect.
//
// The migration history is append-only:
//
//  1. 2024-06-01_01 create_base_schema — the four catalog tables and their
//     five indexes, with no foreign keys yet.
//  2. 2024-06-15_01 add_foreign_keys — the four CASCADE foreign keys; acts
//     as a consistency gate over any pre-existing rows.
//  3. 2024-07-02_01 convert_timestamps — components.last_on_stock and
//     components.last_update from Unix epoch integers to date-time values.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/societal-sandpaper/partsdb/dbschema"
	"github.com/societal-sandpaper/partsdb/migration/migrator"
)

//go:embed migrations
var migrationsFS embed.FS

// Catalog table names
const (
	TableCategories      = "categories"
	TableManufacturers   = "manufacturers"
	TableComponents      = "components"
	TableComponentsBasic = "jlcpcb_components_basic"
)

// Tables lists the catalog tables in dependency order, reference data first
var Tables = []string{
	TableCategories,
	TableManufacturers,
	TableComponents,
	TableComponentsBasic,
}

// MigrationsFor returns the embedded migration file set rendered for the
// given dialect
func MigrationsFor(dialect string) (fs.FS, error) {
	switch dialect {
	case dbschema.DialectPostgres, dbschema.DialectMySQL, dbschema.DialectSQLite:
	default:
		return nil, fmt.Errorf("no catalog migrations for dialect %q", dialect)
	}

	sub, err := fs.Sub(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations for dialect %q: %w", dialect, err)
	}
	return sub, nil
}

// NewMigrator creates a migrator loaded with the catalog migration set
// matching the connection's dialect
func NewMigrator(conn *dbschema.DatabaseConnection) (*migrator.Migrator, error) {
	fsys, err := MigrationsFor(conn.Info().Dialect)
	if err != nil {
		return nil, err
	}
	return migrator.NewFSMigrator(conn, fsys)
}
