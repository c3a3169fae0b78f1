// Command partsdb applies and inspects the versioned schema of the
// electronic-component catalog.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/societal-sandpaper/partsdb/cmd/migrate"
	"github.com/societal-sandpaper/partsdb/cmd/verify"
)

var rootCmd = &cobra.Command{
	Use:   "partsdb",
	Short: "Schema migrations for the component catalog",
	Long: `partsdb manages the versioned relational schema of the
electronic-component catalog (categories, manufacturers, components and
the JLCPCB basic-parts table).

Migrations apply in strict version order, exactly once, tracked in the
schema_migrations ledger. Flags can also be set through environment
variables with the PARTSDB_ prefix, e.g. PARTSDB_DB_URL.`,
	SilenceUsage: true,
}

func init() {
	viper.SetEnvPrefix("PARTSDB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	rootCmd.AddCommand(migrate.NewMigrateCommand())
	rootCmd.AddCommand(verify.NewVerifyCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
