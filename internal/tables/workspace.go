// Package tables loads extracted sheet rows into a per-record DuckDB file so
// downstream reporting queries can run over real tables instead of raw cells.
package tables

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/excel-reporter/backend/internal/excel"
)

// Workspace wraps one record's DuckDB database.
type Workspace struct {
	db   *sql.DB
	path string
}

// ColumnInfo describes one column of a loaded table.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableInfo is the schema plus row count of a loaded table.
type TableInfo struct {
	TableName string       `json:"tableName"`
	Columns   []ColumnInfo `json:"columns"`
	RowCount  int          `json:"rowCount"`
}

// Open creates or reopens the workspace database for a record.
func Open(dir, recordID string) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating tables directory: %w", err)
	}
	dbPath := filepath.Join(dir, fmt.Sprintf("record_%s.duckdb", recordID))

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='512MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	return &Workspace{db: sql.OpenDB(connector), path: dbPath}, nil
}

// LoadSheet creates (or replaces) a table from header names, inferred type
// tags, and raw rows. Ragged rows are padded with NULLs by the rectangular
// reshaping done at extraction time.
func (w *Workspace) LoadSheet(tableName string, fields []string, types map[string]string, rows [][]string) error {
	name, err := sanitizeTableName(tableName)
	if err != nil {
		return err
	}

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = fmt.Sprintf("%q %s", f, columnType(types[f]))
	}

	if _, err := w.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", name)); err != nil {
		return fmt.Errorf("drop existing table %s: %w", name, err)
	}
	if _, err := w.db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(cols, ", "))); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin load transaction: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(fields)), ",")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)", name, placeholders))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert for %s: %w", name, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(fields))
		for i, f := range fields {
			var cell string
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			args[i] = convertCell(cell, types[f])
		}
		if _, err := stmt.Exec(args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert into %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load for %s: %w", name, err)
	}
	return nil
}

// Tables lists the loaded table names.
func (w *Workspace) Tables() ([]string, error) {
	rows, err := w.db.Query("SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Info returns the schema and row count of a loaded table.
func (w *Workspace) Info(tableName string) (*TableInfo, error) {
	name, err := sanitizeTableName(tableName)
	if err != nil {
		return nil, err
	}

	rows, err := w.db.Query(
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position", name)
	if err != nil {
		return nil, fmt.Errorf("describe table %s: %w", name, err)
	}
	defer rows.Close()

	info := &TableInfo{TableName: name}
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, err
		}
		info.Columns = append(info.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(info.Columns) == 0 {
		return nil, fmt.Errorf("table not found: %s", name)
	}

	if err := w.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", name)).Scan(&info.RowCount); err != nil {
		return nil, fmt.Errorf("count rows of %s: %w", name, err)
	}
	return info, nil
}

// Preview returns up to limit rows of a loaded table, with values rendered
// through their driver types.
func (w *Workspace) Preview(tableName string, limit int) ([]string, [][]any, error) {
	name, err := sanitizeTableName(tableName)
	if err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := w.db.Query(fmt.Sprintf("SELECT * FROM %s LIMIT %d", name, limit))
	if err != nil {
		return nil, nil, fmt.Errorf("preview %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}

// Close closes the underlying database.
func (w *Workspace) Close() error {
	return w.db.Close()
}

// convertCell coerces a raw cell toward the column's tag. Cells that do not
// parse degrade to NULL rather than failing the whole load.
func convertCell(cell, tag string) any {
	if cell == "" {
		return nil
	}
	switch tag {
	case excel.TypeInteger:
		if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return v
		}
		return nil
	case excel.TypeFloat:
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			return v
		}
		return nil
	case excel.TypeBoolean:
		if v, err := strconv.ParseBool(strings.ToLower(cell)); err == nil {
			return v
		}
		return nil
	case excel.TypeDatetime:
		for _, layout := range []string{"2006-01-02", "2006/01/02", "2006-01-02 15:04:05", time.RFC3339} {
			if v, err := time.Parse(layout, cell); err == nil {
				return v
			}
		}
		return nil
	default:
		return cell
	}
}

// columnType maps the extractor's type tags onto DuckDB column types.
func columnType(tag string) string {
	switch tag {
	case excel.TypeInteger:
		return "BIGINT"
	case excel.TypeFloat:
		return "DOUBLE"
	case excel.TypeBoolean:
		return "BOOLEAN"
	case excel.TypeDatetime:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// sanitizeTableName accepts alphanumeric and underscore names only, so
// caller-supplied names can never smuggle SQL.
func sanitizeTableName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("table name must not be empty")
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			continue
		}
		return "", fmt.Errorf("invalid table name: %s", name)
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "", fmt.Errorf("table name must not start with a digit: %s", name)
	}
	return name, nil
}
