package migrator_test

import (
	"context"
	"testing"
	"testing/fstest"

	qt "github.com/frankban/quicktest"

	"github.com/societal-sandpaper/partsdb/migration/migrator"
)

func TestRegisteredMigrationProvider_SortsByVersion(t *testing.T) {
	c := qt.New(t)

	provider := migrator.NewRegisteredMigrationProvider(
		migrator.CreateMigrationFromSQL(2024070201, "Convert Timestamps", "SELECT 1;", "SELECT 1;"),
		migrator.CreateMigrationFromSQL(2024060101, "Create Base Schema", "SELECT 1;", "SELECT 1;"),
	)
	provider.Register(migrator.CreateMigrationFromSQL(2024061501, "Add Foreign Keys", "SELECT 1;", "SELECT 1;"))

	migrations := provider.Migrations()
	c.Assert(migrations, qt.HasLen, 3)
	c.Assert(migrations[0].Version, qt.Equals, 2024060101)
	c.Assert(migrations[1].Version, qt.Equals, 2024061501)
	c.Assert(migrations[2].Version, qt.Equals, 2024070201)
}

func TestNewFSMigrationProvider(t *testing.T) {
	c := qt.New(t)

	fsys := fstest.MapFS{
		"2024-06-01_01_create_base_schema.up.sql":   {Data: []byte("CREATE TABLE categories (id INTEGER PRIMARY KEY);")},
		"2024-06-01_01_create_base_schema.down.sql": {Data: []byte("DROP TABLE categories;")},
		"2024-06-15_01_add_foreign_keys.up.sql":     {Data: []byte("SELECT 1;")},
		"2024-06-15_01_add_foreign_keys.down.sql":   {Data: []byte("SELECT 1;")},
		"README.md": {Data: []byte("not a migration")},
	}

	provider, err := migrator.NewFSMigrationProvider(fsys)
	c.Assert(err, qt.IsNil)

	migrations := provider.Migrations()
	c.Assert(migrations, qt.HasLen, 2)
	c.Assert(migrations[0].Version, qt.Equals, 2024060101)
	c.Assert(migrations[0].Description, qt.Equals, "Create Base Schema")
	c.Assert(migrations[1].Version, qt.Equals, 2024061501)
	c.Assert(migrations[1].Description, qt.Equals, "Add Foreign Keys")
	c.Assert(migrations[0].Up, qt.IsNotNil)
	c.Assert(migrations[0].Down, qt.IsNotNil)
}

func TestNewFSMigrationProvider_MissingDownFile(t *testing.T) {
	c := qt.New(t)

	fsys := fstest.MapFS{
		"2024-06-01_01_create_base_schema.up.sql":   {Data: []byte("SELECT 1;")},
		"2024-06-01_01_create_base_schema.down.sql": {Data: []byte("SELECT 1;")},
		"2024-06-15_01_add_foreign_keys.up.sql":     {Data: []byte("SELECT 1;")},
	}

	_, err := migrator.NewFSMigrationProvider(fsys)
	c.Assert(err, qt.IsNotNil)
	c.Assert(err.Error(), qt.Contains, "incomplete migrations")
	c.Assert(err.Error(), qt.Contains, "2024061501")
}

func TestNewFSMigrationProvider_MissingUpFile(t *testing.T) {
	c := qt.New(t)

	fsys := fstest.MapFS{
		"2024-06-01_01_create_base_schema.down.sql": {Data: []byte("SELECT 1;")},
	}

	_, err := migrator.NewFSMigrationProvider(fsys)
	c.Assert(err, qt.IsNotNil)
	c.Assert(err.Error(), qt.Contains, "incomplete migrations")
}

func TestNoopMigrationFunc(t *testing.T) {
	c := qt.New(t)
	c.Assert(migrator.NoopMigrationFunc(context.Background(), nil), qt.IsNil)
}
