package migrator

import (
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"sort"
)

// MigrationProvider provides a list of migrations
type MigrationProvider interface {
	// Migrations provides a list of migrations sorted by version in ascending order
	Migrations() []*Migration
}

// RegisteredMigrationProvider is a simple in-memory implementation of MigrationProvider
type RegisteredMigrationProvider struct {
	migrations []*Migration
	sorted     bool
}

// NewRegisteredMigrationProvider creates a new in-memory migration provider
// with the given migrations. The migrations are sorted by version when
// accessed through the Migrations() method.
func NewRegisteredMigrationProvider(migrations ...*Migration) *RegisteredMigrationProvider {
	return &RegisteredMigrationProvider{
		migrations: migrations,
	}
}

// Register adds a migration to the provider
func (p *RegisteredMigrationProvider) Register(migration *Migration) {
	p.migrations = append(p.migrations, migration)
	p.sorted = false
}

// Migrations returns the list of migrations sorted by version in ascending order
func (p *RegisteredMigrationProvider) Migrations() []*Migration {
	p.maybeSort()
	return p.migrations
}

func (p *RegisteredMigrationProvider) maybeSort() {
	if p.sorted {
		return
	}
	sortMigrations(p.migrations)
	p.sorted = true
}

// FSMigrationProvider loads migrations from a filesystem. It scans for
// files matching the YYYY-MM-DD_NN_description.up.sql / .down.sql naming
// convention and builds one Migration per version.
type FSMigrationProvider struct {
	fsys       fs.FS
	migrations []*Migration
}

// NewFSMigrationProvider creates a new filesystem-based migration provider.
// It validates that every migration has both an up and a down file and
// returns an error otherwise.
func NewFSMigrationProvider(fsys fs.FS) (*FSMigrationProvider, error) {
	p := &FSMigrationProvider{fsys: fsys}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// Migrations returns the migrations loaded from the filesystem, sorted by
// version in ascending order
func (p *FSMigrationProvider) Migrations() []*Migration {
	return p.migrations
}

func (p *FSMigrationProvider) load() error {
	migrationsMap := make(map[int]*Migration) // version -> migration
	seen := make(map[int]map[string]bool)     // version -> directions present

	err := fs.WalkDir(p.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		migrationFile, err := ParseMigrationFileName(d.Name())
		if err != nil {
			// Skip files that don't match the migration pattern
			return nil
		}

		if _, exists := migrationsMap[migrationFile.Version]; !exists {
			migrationsMap[migrationFile.Version] = &Migration{
				Version:     migrationFile.Version,
				Description: migrationFile.Name,
			}
			seen[migrationFile.Version] = make(map[string]bool)
		}
		seen[migrationFile.Version][migrationFile.Direction] = true

		switch migrationFile.Direction {
		case "up":
			migrationsMap[migrationFile.Version].Up = MigrationFuncFromSQLFilename(path, p.fsys)
		case "down":
			migrationsMap[migrationFile.Version].Down = MigrationFuncFromSQLFilename(path, p.fsys)
		default:
			return fmt.Errorf("invalid migration direction: %s", migrationFile.Direction)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan migrations directory: %w", err)
	}

	var incompleteMigrations []int
	for version, directions := range seen {
		if !directions["up"] || !directions["down"] {
			incompleteMigrations = append(incompleteMigrations, version)
		}
	}
	if len(incompleteMigrations) > 0 {
		sort.Ints(incompleteMigrations)
		return fmt.Errorf("incomplete migrations found (missing up or down files): %v", incompleteMigrations)
	}

	p.migrations = slices.Collect(maps.Values(migrationsMap))
	sortMigrations(p.migrations)

	return nil
}

func sortMigrations(migrations []*Migration) {
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
}
