package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	activeDBFile   = "database.db"
	backupDBFile   = "database_backup.db"
	customDBDir    = "custom_databases"
	managerCfgFile = "database_config.json"

	// DefaultKey identifies the built-in sample database.
	DefaultKey = "default"
)

// Manager administers the database files under a data directory: the active
// database, imported custom databases, and switching between them.
type Manager struct {
	dataDir string
}

func NewManager(dataDir string) *Manager {
	return &Manager{dataDir: dataDir}
}

// ActivePath returns the location of the active database file.
func (m *Manager) ActivePath() string {
	return filepath.Join(m.dataDir, activeDBFile)
}

// TableInfo summarizes one table of a stored database.
type TableInfo struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	RowCount int      `json:"row_count"`
}

// DatabaseInfo describes a stored database file.
type DatabaseInfo struct {
	Key    string      `json:"key"`
	Path   string      `json:"path"`
	Tables []TableInfo `json:"tables"`
}

type managerConfig struct {
	ActiveDatabase string `json:"active_database"`
}

func (m *Manager) ensureDirs() error {
	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(m.dataDir, customDBDir), 0o755); err != nil {
		return fmt.Errorf("failed to create custom database directory: %w", err)
	}
	return nil
}

// List returns the default database (if present) followed by all imported
// custom databases.
func (m *Manager) List(ctx context.Context) ([]DatabaseInfo, error) {
	if err := m.ensureDirs(); err != nil {
		return nil, err
	}

	var infos []DatabaseInfo
	if _, err := os.Stat(m.ActivePath()); err == nil {
		info, err := m.describe(ctx, DefaultKey, m.ActivePath())
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	matches, err := filepath.Glob(filepath.Join(m.dataDir, customDBDir, "*.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan custom databases: %w", err)
	}
	for _, path := range matches {
		key := strings.TrimSuffix(filepath.Base(path), ".db")
		info, err := m.describe(ctx, key, path)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (m *Manager) describe(ctx context.Context, key, path string) (DatabaseInfo, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return DatabaseInfo{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer db.Close()

	info := DatabaseInfo{Key: key, Path: path}

	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		return DatabaseInfo{}, fmt.Errorf("failed to enumerate tables of %s: %w", path, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return DatabaseInfo{}, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return DatabaseInfo{}, fmt.Errorf("failed to enumerate tables of %s: %w", path, err)
	}

	for _, table := range tables {
		ti := TableInfo{Name: table}

		colRows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
		if err != nil {
			return DatabaseInfo{}, fmt.Errorf("failed to read columns of %s: %w", table, err)
		}
		for colRows.Next() {
			var (
				cid, notnull, pk int
				name, typ        string
				dflt             any
			)
			if err := colRows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
				colRows.Close()
				return DatabaseInfo{}, fmt.Errorf("failed to scan column of %s: %w", table, err)
			}
			ti.Columns = append(ti.Columns, fmt.Sprintf("%s (%s)", name, typ))
		}
		if err := colRows.Err(); err != nil {
			colRows.Close()
			return DatabaseInfo{}, fmt.Errorf("failed to read columns of %s: %w", table, err)
		}
		colRows.Close()

		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&ti.RowCount); err != nil {
			return DatabaseInfo{}, fmt.Errorf("failed to count rows of %s: %w", table, err)
		}
		info.Tables = append(info.Tables, ti)
	}
	return info, nil
}

// ImportDatabase copies an existing sqlite file into the custom database
// directory under the given name.
func (m *Manager) ImportDatabase(srcPath, name string) (string, error) {
	if err := m.ensureDirs(); err != nil {
		return "", err
	}
	dst := m.customPath(name)
	if err := copyFile(srcPath, dst); err != nil {
		return "", fmt.Errorf("failed to copy database: %w", err)
	}
	return dst, nil
}

// ImportSQL creates a new custom database by running the statements of a SQL
// script file against it.
func (m *Manager) ImportSQL(ctx context.Context, sqlPath, name string) (string, error) {
	if err := m.ensureDirs(); err != nil {
		return "", err
	}

	script, err := os.ReadFile(sqlPath)
	if err != nil {
		return "", fmt.Errorf("failed to read SQL script: %w", err)
	}

	dst := m.customPath(name)
	db, err := sql.Open("sqlite3", dst)
	if err != nil {
		return "", fmt.Errorf("failed to create database %s: %w", dst, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, string(script)); err != nil {
		return "", fmt.Errorf("failed to run SQL script: %w", err)
	}
	return dst, nil
}

// ImportCSV creates a new custom database with a single table loaded from a
// CSV file. All columns are TEXT; the header row supplies column names. When
// tableName is empty the CSV base name is used.
func (m *Manager) ImportCSV(ctx context.Context, csvPath, name, tableName string) (string, error) {
	if err := m.ensureDirs(); err != nil {
		return "", err
	}
	if tableName == "" {
		tableName = strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return "", fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return "", fmt.Errorf("failed to read CSV header: %w", err)
	}

	dst := m.customPath(name)
	db, err := sql.Open("sqlite3", dst)
	if err != nil {
		return "", fmt.Errorf("failed to create database %s: %w", dst, err)
	}
	defer db.Close()

	colDefs := make([]string, len(headers))
	for i, h := range headers {
		colDefs[i] = quoteIdent(h) + " TEXT"
	}
	createStmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(tableName), strings.Join(colDefs, ", "))
	if _, err := db.ExecContext(ctx, createStmt); err != nil {
		return "", fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(headers)), ", ")
	insertStmt := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(tableName), placeholders)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertStmt)
	if err != nil {
		return "", fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read CSV record: %w", err)
		}
		// pad short rows, truncate long ones
		row := make([]any, len(headers))
		for i := range headers {
			if i < len(record) {
				row[i] = record[i]
			} else {
				row[i] = ""
			}
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return "", fmt.Errorf("failed to insert CSV record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit import: %w", err)
	}
	return dst, nil
}

// SetActive makes the named database the active one, backing up the current
// active file first and recording the choice in the config file.
func (m *Manager) SetActive(ctx context.Context, key string) error {
	infos, err := m.List(ctx)
	if err != nil {
		return err
	}

	var src string
	for _, info := range infos {
		if info.Key == key {
			src = info.Path
			break
		}
	}
	if src == "" {
		return fmt.Errorf("database %q not found", key)
	}

	active := m.ActivePath()
	if _, err := os.Stat(active); err == nil {
		if err := copyFile(active, filepath.Join(m.dataDir, backupDBFile)); err != nil {
			return fmt.Errorf("failed to back up active database: %w", err)
		}
	}
	if src != active {
		if err := copyFile(src, active); err != nil {
			return fmt.Errorf("failed to activate database %q: %w", key, err)
		}
	}

	cfg, err := json.MarshalIndent(managerConfig{ActiveDatabase: key}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode database config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dataDir, managerCfgFile), cfg, 0o644); err != nil {
		return fmt.Errorf("failed to write database config: %w", err)
	}
	return nil
}

// ActiveKey returns the key recorded by the last SetActive call, or
// DefaultKey when none was recorded.
func (m *Manager) ActiveKey() string {
	data, err := os.ReadFile(filepath.Join(m.dataDir, managerCfgFile))
	if err != nil {
		return DefaultKey
	}
	var cfg managerConfig
	if err := json.Unmarshal(data, &cfg); err != nil || cfg.ActiveDatabase == "" {
		return DefaultKey
	}
	return cfg.ActiveDatabase
}

func (m *Manager) customPath(name string) string {
	return filepath.Join(m.dataDir, customDBDir, name+".db")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
