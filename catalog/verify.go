package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/societal-sandpaper/partsdb/dbschema"
	"github.com/societal-sandpaper/partsdb/dbschema/types"
)

// foreignKey describes one of the catalog's required CASCADE foreign keys
type foreignKey struct {
	table        string
	column       string
	foreignTable string
}

var requiredForeignKeys = []foreignKey{
	{TableComponents, "category_id", TableCategories},
	{TableComponents, "manufacturer_id", TableManufacturers},
	{TableComponentsBasic, "lcsc", TableComponents},
	{TableComponentsBasic, "category_id", TableCategories},
}

// temporal columns on components that must be date-time after the
// convert_timestamps migration
var temporalColumns = []string{"last_on_stock", "last_update"}

// Verify checks that a fully migrated database satisfies the catalog's
// schema invariants: all four tables exist, the temporal columns on
// components are date-time values rather than epoch integers, and the four
// foreign keys are in place with CASCADE delete and update rules.
//
// All violations found are reported together in the returned error.
func Verify(ctx context.Context, conn *dbschema.DatabaseConnection) error {
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	schema, err := conn.Reader().ReadSchema()
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	var problems []error

	tables := make(map[string]*types.DBTable, len(schema.Tables))
	for i := range schema.Tables {
		tables[schema.Tables[i].Name] = &schema.Tables[i]
	}
	for _, name := range Tables {
		if _, ok := tables[name]; !ok {
			problems = append(problems, fmt.Errorf("table %s is missing", name))
		}
	}

	if components, ok := tables[TableComponents]; ok {
		for _, colName := range temporalColumns {
			col := findColumn(components, colName)
			switch {
			case col == nil:
				problems = append(problems, fmt.Errorf("column %s.%s is missing", TableComponents, colName))
			case !isDateTimeType(col.DataType):
				problems = append(problems, fmt.Errorf(
					"column %s.%s has type %s, want a date-time type", TableComponents, colName, col.DataType))
			}
		}
	}

	for _, want := range requiredForeignKeys {
		got := findForeignKey(schema.Constraints, want)
		if got == nil {
			problems = append(problems, fmt.Errorf(
				"foreign key %s.%s -> %s is missing", want.table, want.column, want.foreignTable))
			continue
		}
		if !ruleEquals(got.DeleteRule, "CASCADE") {
			problems = append(problems, fmt.Errorf(
				"foreign key %s.%s has delete rule %s, want CASCADE", want.table, want.column, ruleString(got.DeleteRule)))
		}
		if !ruleEquals(got.UpdateRule, "CASCADE") {
			problems = append(problems, fmt.Errorf(
				"foreign key %s.%s has update rule %s, want CASCADE", want.table, want.column, ruleString(got.UpdateRule)))
		}
	}

	return errors.Join(problems...)
}

func findColumn(table *types.DBTable, name string) *types.DBColumn {
	for i := range table.Columns {
		if table.Columns[i].Name == name {
			return &table.Columns[i]
		}
	}
	return nil
}

func findForeignKey(constraints []types.DBConstraint, want foreignKey) *types.DBConstraint {
	for i := range constraints {
		c := &constraints[i]
		if c.Type != "FOREIGN KEY" || c.TableName != want.table || c.ColumnName != want.column {
			continue
		}
		if c.ForeignTable != nil && *c.ForeignTable == want.foreignTable {
			return c
		}
	}
	return nil
}

// isDateTimeType reports whether a column type is a native date-time type
// in any supported dialect (TIMESTAMP in PostgreSQL, DATETIME in MySQL and
// SQLite)
func isDateTimeType(dataType string) bool {
	t := strings.ToLower(dataType)
	return strings.Contains(t, "timestamp") || strings.Contains(t, "datetime")
}

func ruleEquals(rule *string, want string) bool {
	return rule != nil && strings.EqualFold(*rule, want)
}

func ruleString(rule *string) string {
	if rule == nil {
		return "<none>"
	}
	return *rule
}
