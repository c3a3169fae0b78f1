// Package verify implements the partsdb verify command.
package verify

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/societal-sandpaper/partsdb/catalog"
	"github.com/societal-sandpaper/partsdb/dbschema"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a migrated database against the catalog schema invariants",
	Long: `Check that a fully migrated database satisfies the catalog's schema
invariants: all four catalog tables exist, the temporal columns on
components hold date-time values rather than epoch integers, and the four
CASCADE foreign keys are in place.`,
	RunE: verifyCommand,
}

const dbURLFlag = "db-url"

var verifyFlags = map[string]cobraflags.Flag{
	dbURLFlag: &cobraflags.StringFlag{
		Name:  dbURLFlag,
		Value: "",
		Usage: "Database URL (postgres://, mysql:// or sqlite://); env: PARTSDB_DB_URL",
	},
}

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	cobraflags.RegisterMap(verifyCmd, verifyFlags)
	return verifyCmd
}

func verifyCommand(cmd *cobra.Command, _ []string) error {
	dbURL := verifyFlags[dbURLFlag].GetString()
	if dbURL == "" {
		return fmt.Errorf("database URL is required (use --db-url flag or PARTSDB_DB_URL)")
	}

	conn, err := dbschema.ConnectToDatabase(dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if err := catalog.Verify(cmd.Context(), conn); err != nil {
		return fmt.Errorf("schema verification failed:\n%w", err)
	}

	fmt.Println("Schema verification passed")
	return nil
}
