package postgres

import (
	"database/sql"
	"fmt"

	"github.com/societal-sandpaper/partsdb/dbschema/types"
)

// Reader reads schema from PostgreSQL databases
type Reader struct {
	db     *sql.DB
	schema string
}

// NewPostgreSQLReader creates a new PostgreSQL schema reader
func NewPostgreSQLReader(db *sql.DB, schema string) *Reader {
	if schema == "" {
		schema = "public"
	}
	return &Reader{
		db:     db,
		schema: schema,
	}
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

	r.enhanceTablesWithConstraints(schema.Tables, schema.Constraints)

	return schema, nil
}

// readTables reads all tables and their columns
func (r *Reader) readTables() ([]types.DBTable, error) {
	// Read tables, excluding the migration ledger
	tablesQuery := `
		SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = $1
		AND table_name NOT IN ('schema_migrations')
		ORDER BY table_name`

	rows, err := r.db.Query(tablesQuery, r.schema)
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

// readColumns reads all columns for a table
func (r *Reader) readColumns(tableName string) ([]types.DBColumn, error) {
	columnsQuery := `
		SELECT column_name, data_type, is_nullable, column_default, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := r.db.Query(columnsQuery, r.schema, tableName)
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

// readIndexes reads all indexes in the schema
func (r *Reader) readIndexes() ([]types.DBIndex, error) {
	indexesQuery := `
		SELECT i.relname AS index_name,
		       t.relname AS table_name,
		       a.attname AS column_name,
		       ix.indisunique,
		       ix.indisprimary
		FROM pg_index ix
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1 AND t.relname NOT IN ('schema_migrations')
		ORDER BY i.relname, a.attnum`

	rows, err := r.db.Query(indexesQuery, r.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]*types.DBIndex)
	var order []string
	for rows.Next() {
		var name, table, column string
		var isUnique, isPrimary bool
		if err := rows.Scan(&name, &table, &column, &isUnique, &isPrimary); err != nil {
			return nil, fmt.Errorf("failed to scan index row: %w", err)
		}
		idx, ok := byName[name]
		if !ok {
			idx = &types.DBIndex{Name: name, TableName: table, IsUnique: isUnique, IsPrimary: isPrimary}
			byName[name] = idx
			order = append(order, name)
		}
		idx.Columns = append(idx.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index rows: %w", err)
	}

	indexes := make([]types.DBIndex, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *byName[name])
	}
	return indexes, nil
}

// readConstraints reads primary key, unique and foreign key constraints
func (r *Reader) readConstraints() ([]types.DBConstraint, error) {
	constraintsQuery := `
		SELECT tc.constraint_name,
		       tc.table_name,
		       tc.constraint_type,
		       kcu.column_name,
		       ccu.table_name AS foreign_table,
		       ccu.column_name AS foreign_column,
		       rc.delete_rule,
		       rc.update_rule
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		LEFT JOIN information_schema.referential_constraints rc
		  ON rc.constraint_name = tc.constraint_name AND rc.constraint_schema = tc.table_schema
		LEFT JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = rc.unique_constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.table_schema = $1
		AND tc.table_name NOT IN ('schema_migrations')
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`

	rows, err := r.db.Query(constraintsQuery, r.schema)
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

// enhanceTablesWithConstraints marks primary key and unique columns on tables
func (r *Reader) enhanceTablesWithConstraints(tables []types.DBTable, constraints []types.DBConstraint) {
	for _, constraint := range constraints {
		for i := range tables {
			if tables[i].Name != constraint.TableName {
				continue
			}
			for j := range tables[i].Columns {
				if tables[i].Columns[j].Name != constraint.ColumnName {
					continue
				}
				switch constraint.Type {
				case "PRIMARY KEY":
					tables[i].Columns[j].IsPrimaryKey = true
				case "UNIQUE":
					tables[i].Columns[j].IsUnique = true
				}
			}
		}
	}
}
