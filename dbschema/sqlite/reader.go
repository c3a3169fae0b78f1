package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/societal-sandpaper/partsdb/dbschema/types"
)

// Reader reads schema from SQLite databases.
//
// SQLite has no information_schema; tables come from sqlite_master and
// columns, indexes and foreign keys from the table_info, index_list and
// foreign_key_list pragmas. Foreign keys are unnamed in the pragma output,
// so constraint names are synthesized as fk_<table>_<column>.
type Reader struct {
	db *sql.DB
}

// NewSQLiteReader creates a new SQLite schema reader
func NewSQLiteReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// ReadSchema reads the complete database schema
func (r *Reader) ReadSchema() (*types.DBSchema, error) {
	schema := &types.DBSchema{}

	tables, err := r.readTables()
	if err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}
	schema.Tables = tables

	for i := range tables {
		indexes, err := r.readIndexes(tables[i].Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read indexes for table %s: %w", tables[i].Name, err)
		}
		schema.Indexes = append(schema.Indexes, indexes...)

		constraints, err := r.readForeignKeys(tables[i].Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read foreign keys for table %s: %w", tables[i].Name, err)
		}
		schema.Constraints = append(schema.Constraints, constraints...)
	}

	return schema, nil
}

func (r *Reader) readTables() ([]types.DBTable, error) {
	rows, err := r.db.Query(`
		SELECT name, type FROM sqlite_master
		WHERE type IN ('table', 'view')
		AND name NOT LIKE 'sqlite_%'
		AND name NOT IN ('schema_migrations')
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []types.DBTable
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		tables = append(tables, types.DBTable{Name: name, Type: strings.ToUpper(typ)})
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
	rows, err := r.db.Query(fmt.Sprintf(`PRAGMA table_info(%q)`, tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query table_info: %w", err)
	}
	defer rows.Close()

	var columns []types.DBColumn
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table_info row: %w", err)
		}

		col := types.DBColumn{
			Name:            name,
			DataType:        strings.ToUpper(typ),
			IsNullable:      "YES",
			OrdinalPosition: cid + 1,
			IsPrimaryKey:    pk > 0,
		}
		if notNull == 1 || pk > 0 {
			col.IsNullable = "NO"
		}
		if defaultVal.Valid {
			v := defaultVal.String
			col.ColumnDefault = &v
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table_info rows: %w", err)
	}

	return columns, nil
}

func (r *Reader) readIndexes(tableName string) ([]types.DBIndex, error) {
	rows, err := r.db.Query(fmt.Sprintf(`PRAGMA index_list(%q)`, tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query index_list: %w", err)
	}
	defer rows.Close()

	type indexMeta struct {
		name   string
		unique bool
		origin string
	}
	var metas []indexMeta
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("failed to scan index_list row: %w", err)
		}
		metas = append(metas, indexMeta{name: name, unique: unique == 1, origin: origin})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index_list rows: %w", err)
	}

	var indexes []types.DBIndex
	for _, meta := range metas {
		columns, err := r.readIndexColumns(meta.name)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, types.DBIndex{
			Name:      meta.name,
			TableName: tableName,
			Columns:   columns,
			IsUnique:  meta.unique,
			IsPrimary: meta.origin == "pk",
		})
	}

	return indexes, nil
}

func (r *Reader) readIndexColumns(indexName string) ([]string, error) {
	rows, err := r.db.Query(fmt.Sprintf(`PRAGMA index_info(%q)`, indexName))
	if err != nil {
		return nil, fmt.Errorf("failed to query index_info: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("failed to scan index_info row: %w", err)
		}
		if name.Valid {
			columns = append(columns, name.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index_info rows: %w", err)
	}

	return columns, nil
}

func (r *Reader) readForeignKeys(tableName string) ([]types.DBConstraint, error) {
	rows, err := r.db.Query(fmt.Sprintf(`PRAGMA foreign_key_list(%q)`, tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign_key_list: %w", err)
	}
	defer rows.Close()

	var constraints []types.DBConstraint
	for rows.Next() {
		var (
			id, seq                  int
			refTable, from           string
			to                       sql.NullString
			onUpdate, onDelete, mtch string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &mtch); err != nil {
			return nil, fmt.Errorf("failed to scan foreign_key_list row: %w", err)
		}

		c := types.DBConstraint{
			Name:       fmt.Sprintf("fk_%s_%s", tableName, from),
			TableName:  tableName,
			Type:       "FOREIGN KEY",
			ColumnName: from,
		}
		rt := refTable
		c.ForeignTable = &rt
		if to.Valid {
			fc := to.String
			c.ForeignColumn = &fc
		}
		du := onUpdate
		dd := onDelete
		c.UpdateRule = &du
		c.DeleteRule = &dd
		constraints = append(constraints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign_key_list rows: %w", err)
	}

	return constraints, nil
}
