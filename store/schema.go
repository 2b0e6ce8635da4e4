package store

import (
	"context"
	"fmt"
	"strings"
)

// SchemaText renders the schema of the active database as one line per
// table: "- table(col1 (TYPE1), col2 (TYPE2), ...)". Tables appear in
// sqlite's enumeration order. The result is recomputed on every call because
// imports may change the schema between runs.
func (s *Session) SchemaText(ctx context.Context) (string, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		return "", fmt.Errorf("failed to enumerate tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to enumerate tables: %w", err)
	}

	var lines []string
	for _, table := range tables {
		cols, err := s.tableColumns(ctx, table)
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("- %s(%s)", table, strings.Join(cols, ", ")))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Session) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			dfltValue  any
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &primaryKey); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols = append(cols, fmt.Sprintf("%s (%s)", name, typ))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	return cols, nil
}
