package catalog_test

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/societal-sandpaper/partsdb/catalog"
	"github.com/societal-sandpaper/partsdb/dbschema"
	"github.com/societal-sandpaper/partsdb/migration/migrator"
)

const (
	versionBaseSchema  = 2024060101
	versionForeignKeys = 2024061501
	versionTimestamps  = 2024070201
)

func newTestConnection(t *testing.T) *dbschema.DatabaseConnection {
	t.Helper()
	conn, err := dbschema.ConnectToDatabase("sqlite::memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newCatalogMigrator(t *testing.T, conn *dbschema.DatabaseConnection) *migrator.Migrator {
	t.Helper()
	m, err := catalog.NewMigrator(conn)
	if err != nil {
		t.Fatalf("failed to create catalog migrator: %v", err)
	}
	return m.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedCategory(t *testing.T, conn *dbschema.DatabaseConnection, id int, category, subcategory string) {
	t.Helper()
	_, err := conn.Exec("INSERT INTO categories (id, category, subcategory) VALUES (?, ?, ?)",
		id, category, subcategory)
	if err != nil {
		t.Fatalf("failed to insert category: %v", err)
	}
}

func seedManufacturer(t *testing.T, conn *dbschema.DatabaseConnection, id int, name string) {
	t.Helper()
	_, err := conn.Exec("INSERT INTO manufacturers (id, name) VALUES (?, ?)", id, name)
	if err != nil {
		t.Fatalf("failed to insert manufacturer: %v", err)
	}
}

func seedComponent(t *testing.T, conn *dbschema.DatabaseConnection, lcsc, categoryID, manufacturerID int) error {
	t.Helper()
	_, err := conn.Exec(`
		INSERT INTO components
			(lcsc, category_id, manufacturer_id, mfr, package, description, datasheet, price)
		VALUES (?, ?, ?, 'RC0402FR-0710KL', '0402', '10k 1% resistor', 'https://example.com/ds.pdf', '[]')`,
		lcsc, categoryID, manufacturerID)
	return err
}

func countRows(t *testing.T, conn *dbschema.DatabaseConnection, table string) int {
	t.Helper()
	var n int
	if err := conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("failed to count rows in %s: %v", table, err)
	}
	return n
}

func TestMigrationsFor(t *testing.T) {
	tests := []struct {
		dialect string
		wantErr bool
	}{
		{dialect: dbschema.DialectPostgres},
		{dialect: dbschema.DialectMySQL},
		{dialect: dbschema.DialectSQLite},
		{dialect: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			c := qt.New(t)
			fsys, err := catalog.MigrationsFor(tt.dialect)
			if tt.wantErr {
				c.Assert(err, qt.IsNotNil)
				return
			}
			c.Assert(err, qt.IsNil)

			// Three migrations, one up and one down file each
			entries, err := fs.ReadDir(fsys, ".")
			c.Assert(err, qt.IsNil)
			c.Assert(entries, qt.HasLen, 6)

			provider, err := migrator.NewFSMigrationProvider(fsys)
			c.Assert(err, qt.IsNil)
			migrations := provider.Migrations()
			c.Assert(migrations, qt.HasLen, 3)
			c.Assert(migrations[0].Version, qt.Equals, versionBaseSchema)
			c.Assert(migrations[1].Version, qt.Equals, versionForeignKeys)
			c.Assert(migrations[2].Version, qt.Equals, versionTimestamps)
		})
	}
}

func TestMigrateUp_FullHistory(t *testing.T) {
	c := qt.New(t)
	conn := newTestConnection(t)
	ctx := context.Background()

	m := newCatalogMigrator(t, conn)
	c.Assert(m.MigrateUp(ctx), qt.IsNil)

	version, err := m.GetCurrentVersion(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(version, qt.Equals, versionTimestamps)

	schema, err := conn.Reader().ReadSchema()
	c.Assert(err, qt.IsNil)

	tables := make(map[string]bool)
	for _, table := range schema.Tables {
		tables[table.Name] = true
	}
	for _, name := range catalog.Tables {
		c.Assert(tables[name], qt.IsTrue, qt.Commentf("table %s not created", name))
	}
	c.Assert(schema.Indexes, qt.HasLen, 5)

	c.Assert(catalog.Verify(ctx, conn), qt.IsNil)
}

func TestVerify_FailsBeforeForeignKeys(t *testing.T) {
	c := qt.New(t)
	conn := newTestConnection(t)
	ctx := context.Background()

	m := newCatalogMigrator(t, conn)
	c.Assert(m.MigrateTo(ctx, versionBaseSchema), qt.IsNil)

	err := catalog.Verify(ctx, conn)
	c.Assert(err, qt.IsNotNil)
	c.Assert(err.Error(), qt.Contains, "foreign key components.category_id -> categories is missing")
	c.Assert(err.Error(), qt.Contains, "components.last_update has type")
}

func TestTimestampConversion(t *testing.T) {
	c := qt.New(t)
	conn := newTestConnection(t)
	ctx := context.Background()

	m := newCatalogMigrator(t, conn)
	c.Assert(m.MigrateTo(ctx, versionForeignKeys), qt.IsNil)

	seedCategory(t, conn, 1, "Resistors", "Chip Resistor - Surface Mount")
	seedManufacturer(t, conn, 1, "YAGEO")
	c.Assert(seedComponent(t, conn, 12345, 1, 1), qt.IsNil)
	_, err := conn.Exec("UPDATE components SET last_update = 1700000000 WHERE lcsc = 12345")
	c.Assert(err, qt.IsNil)

	c.Assert(m.MigrateUp(ctx), qt.IsNil)

	// The driver hands DATETIME columns back as time.Time values
	var lastOnStock, lastUpdate time.Time
	row := conn.QueryRow("SELECT last_on_stock, last_update FROM components WHERE lcsc = 12345")
	c.Assert(row.Scan(&lastOnStock, &lastUpdate), qt.IsNil)

	// Epoch 0 is the default for components never seen in stock
	c.Assert(lastOnStock.Unix(), qt.Equals, int64(0))
	c.Assert(lastUpdate.Unix(), qt.Equals, int64(1700000000))

	// The stored text itself is the epoch-exact UTC rendering
	var stored string
	row = conn.QueryRow("SELECT CAST(last_update AS TEXT) FROM components WHERE lcsc = 12345")
	c.Assert(row.Scan(&stored), qt.IsNil)
	c.Assert(stored, qt.Equals, "2023-11-14 22:13:20")
}

func TestTimestampConversion_RoundTrip(t *testing.T) {
	c := qt.New(t)
	conn := newTestConnection(t)
	ctx := context.Background()

	m := newCatalogMigrator(t, conn)
	c.Assert(m.MigrateTo(ctx, versionForeignKeys), qt.IsNil)

	seedCategory(t, conn, 1, "Resistors", "Chip Resistor - Surface Mount")
	seedManufacturer(t, conn, 1, "YAGEO")
	c.Assert(seedComponent(t, conn, 12345, 1, 1), qt.IsNil)
	_, err := conn.Exec("UPDATE components SET last_update = 1700000000 WHERE lcsc = 12345")
	c.Assert(err, qt.IsNil)

	c.Assert(m.MigrateUp(ctx), qt.IsNil)
	c.Assert(m.MigrateDownTo(ctx, versionForeignKeys), qt.IsNil)

	var lastUpdate int64
	row := conn.QueryRow("SELECT last_update FROM components WHERE lcsc = 12345")
	c.Assert(row.Scan(&lastUpdate), qt.IsNil)
	c.Assert(lastUpdate, qt.Equals, int64(1700000000))
}

func TestForeignKeyMigration_RejectsOrphanedRows(t *testing.T) {
	c := qt.New(t)
	conn := newTestConnection(t)
	ctx := context.Background()

	m := newCatalogMigrator(t, conn)
	c.Assert(m.MigrateTo(ctx, versionBaseSchema), qt.IsNil)

	// An orphan is legal before the foreign keys exist
	c.Assert(seedComponent(t, conn, 99999, 42, 42), qt.IsNil)

	err := m.MigrateUp(ctx)
	c.Assert(err, qt.IsNotNil)

	// The failed migration left no trace and blocked the rest of the run
	version, err := m.GetCurrentVersion(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(version, qt.Equals, versionBaseSchema)
	c.Assert(countRows(t, conn, "components"), qt.Equals, 1)
}

func TestForeignKeys_RejectOrphanInserts(t *testing.T) {
	c := qt.New(t)
	conn := newTestConnection(t)
	ctx := context.Background()

	m := newCatalogMigrator(t, conn)
	c.Assert(m.MigrateUp(ctx), qt.IsNil)

	err := seedComponent(t, conn, 99999, 42, 42)
	c.Assert(err, qt.IsNotNil)
}

func TestForeignKeys_CascadeDelete(t *testing.T) {
	c := qt.New(t)
	conn := newTestConnection(t)
	ctx := context.Background()

	m := newCatalogMigrator(t, conn)
	c.Assert(m.MigrateUp(ctx), qt.IsNil)

	seedCategory(t, conn, 1, "Resistors", "Chip Resistor - Surface Mount")
	seedManufacturer(t, conn, 1, "YAGEO")
	c.Assert(seedComponent(t, conn, 12345, 1, 1), qt.IsNil)

	_, err := conn.Exec(`
		INSERT INTO jlcpcb_components_basic
			(lcsc, category_id, category, subcategory, mfr, package, manufacturer,
			 description, datasheet, price)
		VALUES (12345, 1, 'Resistors', 'Chip Resistor - Surface Mount',
			'RC0402FR-0710KL', '0402', 'YAGEO', '10k 1% resistor',
			'https://example.com/ds.pdf', '[]')`)
	c.Assert(err, qt.IsNil)

	// Deleting the category cascades through components into the basic table
	_, err = conn.Exec("DELETE FROM categories WHERE id = 1")
	c.Assert(err, qt.IsNil)

	c.Assert(countRows(t, conn, "components"), qt.Equals, 0)
	c.Assert(countRows(t, conn, "jlcpcb_components_basic"), qt.Equals, 0)
	c.Assert(countRows(t, conn, "manufacturers"), qt.Equals, 1)
}

func TestForeignKeys_CascadeUpdate(t *testing.T) {
	c := qt.New(t)
	conn := newTestConnection(t)
	ctx := context.Background()

	m := newCatalogMigrator(t, conn)
	c.Assert(m.MigrateUp(ctx), qt.IsNil)

	seedCategory(t, conn, 1, "Resistors", "Chip Resistor - Surface Mount")
	seedManufacturer(t, conn, 1, "YAGEO")
	c.Assert(seedComponent(t, conn, 12345, 1, 1), qt.IsNil)

	_, err := conn.Exec("UPDATE categories SET id = 7 WHERE id = 1")
	c.Assert(err, qt.IsNil)

	var categoryID int
	row := conn.QueryRow("SELECT category_id FROM components WHERE lcsc = 12345")
	c.Assert(row.Scan(&categoryID), qt.IsNil)
	c.Assert(categoryID, qt.Equals, 7)
}

func TestMigrateDown_RemovesEverything(t *testing.T) {
	c := qt.New(t)
	conn := newTestConnection(t)
	ctx := context.Background()

	m := newCatalogMigrator(t, conn)
	c.Assert(m.MigrateUp(ctx), qt.IsNil)
	c.Assert(m.MigrateDownTo(ctx, 0), qt.IsNil)

	version, err := m.GetCurrentVersion(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(version, qt.Equals, 0)

	schema, err := conn.Reader().ReadSchema()
	c.Assert(err, qt.IsNil)
	c.Assert(schema.Tables, qt.HasLen, 0)

	// And the history can be replayed
	c.Assert(m.MigrateUp(ctx), qt.IsNil)
	c.Assert(catalog.Verify(ctx, conn), qt.IsNil)
}

func TestBaseSchema_NotIdempotent(t *testing.T) {
	c := qt.New(t)
	conn := newTestConnection(t)

	fsys, err := catalog.MigrationsFor(dbschema.DialectSQLite)
	c.Assert(err, qt.IsNil)
	script, err := fs.ReadFile(fsys, "2024-06-01_01_create_base_schema.up.sql")
	c.Assert(err, qt.IsNil)

	run := func() error {
		for _, stmt := range migrator.SplitSQLStatements(string(script)) {
			if err := conn.Writer().ExecuteSQL(stmt); err != nil {
				return err
			}
		}
		return nil
	}

	c.Assert(run(), qt.IsNil)

	// Without the ledger there is nothing to make a re-run a no-op
	err = run()
	c.Assert(err, qt.IsNotNil)
	c.Assert(err.Error(), qt.Contains, "categories")
}

func TestCategories_PrimaryKeyUniqueness(t *testing.T) {
	c := qt.New(t)
	conn := newTestConnection(t)
	ctx := context.Background()

	m := newCatalogMigrator(t, conn)
	c.Assert(m.MigrateUp(ctx), qt.IsNil)

	seedCategory(t, conn, 1, "Resistors", "Chip Resistor - Surface Mount")

	// The identical triple collides on the primary key
	_, err := conn.Exec("INSERT INTO categories (id, category, subcategory) VALUES (1, 'Resistors', 'Chip Resistor - Surface Mount')")
	c.Assert(err, qt.IsNotNil)

	// So does the same id under different names
	_, err = conn.Exec("INSERT INTO categories (id, category, subcategory) VALUES (1, 'Capacitors', 'MLCC')")
	c.Assert(err, qt.IsNotNil)
}

func TestCategories_AllowDuplicateNamesAcrossIDs(t *testing.T) {
	c := qt.New(t)
	conn := newTestConnection(t)
	ctx := context.Background()

	m := newCatalogMigrator(t, conn)
	c.Assert(m.MigrateUp(ctx), qt.IsNil)

	// The unique index covers the (id, category, subcategory) triple, so the
	// same names may repeat under different ids
	seedCategory(t, conn, 1, "Resistors", "Chip Resistor - Surface Mount")
	seedCategory(t, conn, 2, "Resistors", "Chip Resistor - Surface Mount")
	c.Assert(countRows(t, conn, "categories"), qt.Equals, 2)
}
