package postgres

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Writer executes DDL against PostgreSQL databases
type Writer struct {
	db     *sql.DB
	tx     *sql.Tx
	schema string
	dryRun bool
}

// NewPostgreSQLWriter creates a new PostgreSQL schema writer
func NewPostgreSQLWriter(db *sql.DB, schema string) *Writer {
	if schema == "" {
		schema = "public"
	}
	return &Writer{
		db:     db,
		schema: schema,
	}
}

// SetDryRun enables or disables dry-run mode
func (w *Writer) SetDryRun(dryRun bool) {
	w.dryRun = dryRun
}

// IsDryRun returns whether the writer is in dry-run mode
func (w *Writer) IsDryRun() bool {
	return w.dryRun
}

// ExecuteSQL executes a SQL statement, within the active transaction if one exists
func (w *Writer) ExecuteSQL(sqlStr string) error {
	if w.dryRun {
		slog.Info("dry run", "sql", sqlStr)
		return nil
	}

	var err error
	if w.tx != nil {
		_, err = w.tx.Exec(sqlStr)
	} else {
		_, err = w.db.Exec(sqlStr)
	}
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w\nSQL: %s", err, sqlStr)
	}
	return nil
}

// BeginTransaction starts a new transaction
func (w *Writer) BeginTransaction() error {
	if w.dryRun {
		return nil
	}
	if w.tx != nil {
		return fmt.Errorf("transaction already in progress")
	}
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	w.tx = tx
	return nil
}

// CommitTransaction commits the active transaction
func (w *Writer) CommitTransaction() error {
	if w.dryRun {
		return nil
	}
	if w.tx == nil {
		return fmt.Errorf("no transaction in progress")
	}
	err := w.tx.Commit()
	w.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the active transaction
func (w *Writer) RollbackTransaction() error {
	if w.dryRun {
		return nil
	}
	if w.tx == nil {
		return fmt.Errorf("no transaction in progress")
	}
	err := w.tx.Rollback()
	w.tx = nil
	if err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// DropAllTables drops all tables in the schema, including the migration ledger
func (w *Writer) DropAllTables() error {
	rows, err := w.db.Query(`SELECT tablename FROM pg_tables WHERE schemaname = $1 ORDER BY tablename`, w.schema)
	if err != nil {
		return fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating tables: %w", err)
	}

	for _, table := range tables {
		if err := w.ExecuteSQL(fmt.Sprintf(`DROP TABLE IF EXISTS %q CASCADE`, table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}
