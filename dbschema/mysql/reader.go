package mysql

import (
	"database/sql"
	"fmt"

	"github.com/societal-sandpaper/partsdb/dbschema/types"
)

// Reader reads schema from MySQL and MariaDB databases
type Reader struct {
	db     *sql.DB
	schema string
}

// NewMySQLReader creates a new MySQL schema reader. If schema is empty,
// the current database of the connection is used.
func NewMySQLReader(db *sql.DB, schema string) *Reader {
	return &Reader{
		db:     db,
		schema: schema,
	}
}

func (r *Reader) schemaExpr() (string, []any) {
	if r.schema == "" {
		return "DATABASE()", nil
	}
	return "?", []any{r.schema}
}

// ReadSchema reads the complete database schema
func (r *Reader) ReadSchema() (*types.DBSchema, error) {
	schema := &types.DBSchema{}

	tables, err := r.readTables()
	if err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}
	schema.Tables = tables

	indexes, err := r.readIndexes()
	if err != nil {
		return nil, fmt.Errorf("failed to read indexes: %w", err)
	}
	schema.Indexes = indexes

	constraints, err := r.readConstraints()
	if err != nil {
		return nil, fmt.Errorf("failed to read constraints: %w", err)
	}
	schema.Constraints = constraints

	for _, constraint := range schema.Constraints {
		for i := range schema.Tables {
			if schema.Tables[i].Name != constraint.TableName {
				continue
			}
			for j := range schema.Tables[i].Columns {
				if schema.Tables[i].Columns[j].Name != constraint.ColumnName {
					continue
				}
				switch constraint.Type {
				case "PRIMARY KEY":
					schema.Tables[i].Columns[j].IsPrimaryKey = true
				case "UNIQUE":
					schema.Tables[i].Columns[j].IsUnique = true
				}
			}
		}
	}

	return schema, nil
}

func (r *Reader) readTables() ([]types.DBTable, error) {
	expr, args := r.schemaExpr()
	tablesQuery := fmt.Sprintf(`
		SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = %s
		AND table_name NOT IN ('schema_migrations')
		ORDER BY table_name`, expr)

	rows, err := r.db.Query(tablesQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []types.DBTable
	for rows.Next() {
		var table types.DBTable
		if err := rows.Scan(&table.Name, &table.Type); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}

	for i := range tables {
		columns, err := r.readColumns(tables[i].Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read columns for table %s: %w", tables[i].Name, err)
		}
		tables[i].Columns = columns
	}

	return tables, nil
}

func (r *Reader) readColumns(tableName string) ([]types.DBColumn, error) {
	expr, args := r.schemaExpr()
	columnsQuery := fmt.Sprintf(`
		SELECT column_name, data_type, is_nullable, column_default, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = ?
		ORDER BY ordinal_position`, expr)
	args = append(args, tableName)

	rows, err := r.db.Query(columnsQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var columns []types.DBColumn
	for rows.Next() {
		var col types.DBColumn
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.ColumnDefault, &col.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}

	return columns, nil
}

func (r *Reader) readIndexes() ([]types.DBIndex, error) {
	expr, args := r.schemaExpr()
	indexesQuery := fmt.Sprintf(`
		SELECT index_name, table_name, column_name, non_unique
		FROM information_schema.statistics
		WHERE table_schema = %s
		AND table_name NOT IN ('schema_migrations')
		ORDER BY table_name, index_name, seq_in_index`, expr)

	rows, err := r.db.Query(indexesQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]*types.DBIndex)
	var order []string
	for rows.Next() {
		var name, table, column string
		var nonUnique int
		if err := rows.Scan(&name, &table, &column, &nonUnique); err != nil {
			return nil, fmt.Errorf("failed to scan index row: %w", err)
		}
		key := table + "." + name
		idx, ok := byName[key]
		if !ok {
			idx = &types.DBIndex{
				Name:      name,
				TableName: table,
				IsUnique:  nonUnique == 0,
				IsPrimary: name == "PRIMARY",
			}
			byName[key] = idx
			order = append(order, key)
		}
		idx.Columns = append(idx.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index rows: %w", err)
	}

	indexes := make([]types.DBIndex, 0, len(order))
	for _, key := range order {
		indexes = append(indexes, *byName[key])
	}
	return indexes, nil
}

func (r *Reader) readConstraints() ([]types.DBConstraint, error) {
	expr, args := r.schemaExpr()
	constraintsQuery := fmt.Sprintf(`
		SELECT tc.constraint_name,
		       tc.table_name,
		       tc.constraint_type,
		       kcu.column_name,
		       kcu.referenced_table_name,
		       kcu.referenced_column_name,
		       rc.delete_rule,
		       rc.update_rule
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.table_schema = tc.table_schema
		 AND kcu.table_name = tc.table_name
		LEFT JOIN information_schema.referential_constraints rc
		  ON rc.constraint_name = tc.constraint_name AND rc.constraint_schema = tc.table_schema
		WHERE tc.table_schema = %s
		AND tc.table_name NOT IN ('schema_migrations')
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`, expr)

	rows, err := r.db.Query(constraintsQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query constraints: %w", err)
	}
	defer rows.Close()

	var constraints []types.DBConstraint
	for rows.Next() {
		var c types.DBConstraint
		if err := rows.Scan(&c.Name, &c.TableName, &c.Type, &c.ColumnName,
			&c.ForeignTable, &c.ForeignColumn, &c.DeleteRule, &c.UpdateRule); err != nil {
			return nil, fmt.Errorf("failed to scan constraint row: %w", err)
		}
		constraints = append(constraints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating constraint rows: %w", err)
	}

	return constraints, nil
}
