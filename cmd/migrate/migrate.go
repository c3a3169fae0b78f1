// Package migrate implements the partsdb migrate command tree.
package migrate

import (
	"fmt"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/societal-sandpaper/partsdb/catalog"
	"github.com/societal-sandpaper/partsdb/config"
	"github.com/societal-sandpaper/partsdb/dbschema"
	"github.com/societal-sandpaper/partsdb/migration/migrator"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|to|status]",
	Short: "Apply or roll back catalog schema migrations",
	Long: `Apply or roll back the component-catalog schema migrations.

Migrations are applied in strict version order, each inside its own
transaction, tracked in the schema_migrations ledger. A failing migration
aborts the run and is not recorded as applied.

Available subcommands:
  up      - Apply all pending migrations
  down    - Roll back the most recent migration
  to      - Migrate up or down to a specific version
  status  - Show applied and pending migrations`,
}

const (
	dbURLFlag         = "db-url"
	migrationsDirFlag = "migrations-dir"
	dryRunFlag        = "dry-run"
	versionFlag       = "version"
)

var migrateFlags = map[string]cobraflags.Flag{
	dbURLFlag: &cobraflags.StringFlag{
		Name:  dbURLFlag,
		Value: "",
		Usage: "Database URL (postgres://, mysql:// or sqlite://); env: PARTSDB_DB_URL",
	},
	migrationsDirFlag: &cobraflags.StringFlag{
		Name:  migrationsDirFlag,
		Value: "",
		Usage: "Directory with migration files; empty uses the embedded catalog set",
	},
	dryRunFlag: &cobraflags.BoolFlag{
		Name:  dryRunFlag,
		Value: false,
		Usage: "Log the SQL that would run without executing it",
	},
}

var toFlags = map[string]cobraflags.Flag{
	versionFlag: &cobraflags.IntFlag{
		Name:  versionFlag,
		Value: 0,
		Usage: "Target migration version, e.g. 2024061501 (required)",
	},
}

// NewMigrateCommand creates the migrate command with its subcommands
func NewMigrateCommand() *cobra.Command {
	cobraflags.RegisterMap(migrateCmd, migrateFlags)

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  upCommand,
	}
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE:  downCommand,
	}
	toCmd := &cobra.Command{
		Use:   "to",
		Short: "Migrate up or down to a specific version",
		RunE:  toCommand,
	}
	cobraflags.RegisterMap(toCmd, toFlags)
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE:  statusCommand,
	}

	migrateCmd.AddCommand(upCmd, downCmd, toCmd, statusCmd)
	return migrateCmd
}

func optionsFromFlags() *config.Options {
	return config.DefaultOptions().
		WithDatabaseURL(migrateFlags[dbURLFlag].GetString()).
		WithMigrationsDir(migrateFlags[migrationsDirFlag].GetString()).
		WithDryRun(migrateFlags[dryRunFlag].GetBool())
}

// newMigrator connects to the database and loads the migration set selected
// by the options. The caller closes the returned connection.
func newMigrator(opts *config.Options) (*migrator.Migrator, *dbschema.DatabaseConnection, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}

	conn, err := dbschema.ConnectToDatabase(opts.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var m *migrator.Migrator
	if opts.MigrationsDir != "" {
		m, err = migrator.NewFSMigrator(conn, os.DirFS(opts.MigrationsDir))
	} else {
		m, err = catalog.NewMigrator(conn)
	}
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	conn.Writer().SetDryRun(opts.DryRun)
	return m, conn, nil
}

func upCommand(cmd *cobra.Command, _ []string) error {
	m, conn, err := newMigrator(optionsFromFlags())
	if err != nil {
		return err
	}
	defer conn.Close()

	return m.MigrateUp(cmd.Context())
}

func downCommand(cmd *cobra.Command, _ []string) error {
	m, conn, err := newMigrator(optionsFromFlags())
	if err != nil {
		return err
	}
	defer conn.Close()

	return m.MigrateDown(cmd.Context())
}

func toCommand(cmd *cobra.Command, _ []string) error {
	targetVersion := toFlags[versionFlag].GetInt()
	if targetVersion <= 0 {
		return fmt.Errorf("target version is required (use --version flag)")
	}

	m, conn, err := newMigrator(optionsFromFlags())
	if err != nil {
		return err
	}
	defer conn.Close()

	return m.MigrateTo(cmd.Context(), targetVersion)
}

func statusCommand(cmd *cobra.Command, _ []string) error {
	m, conn, err := newMigrator(optionsFromFlags())
	if err != nil {
		return err
	}
	defer conn.Close()

	status, err := m.GetMigrationStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	fmt.Printf("Current version:  %d\n", status.CurrentVersion)
	fmt.Printf("Total migrations: %d\n", status.TotalMigrations)
	if status.HasPendingChanges {
		fmt.Printf("Pending:\n")
		for _, version := range status.PendingMigrations {
			fmt.Printf("  %d\n", version)
		}
	} else {
		fmt.Printf("Database is up to date\n")
	}

	return nil
}
