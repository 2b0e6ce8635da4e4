// Package store provides sqlite access for the pipeline: opening and seeding
// the sample database, per-run sessions with savepoint support, schema
// introspection and management of stored database files.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// sampleBaseDate anchors the generated order dates.
var sampleBaseDate = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// Store wraps the active sqlite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the sqlite database at path, creating and seeding it with the
// sample Customers/Orders/OrderDetails/Products dataset when the file does
// not exist yet. Use ":memory:" for an ephemeral database (always seeded).
func Open(path string) (*Store, error) {
	seed := true
	if path != ":memory:" {
		if _, err := os.Stat(path); err == nil {
			seed = false
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if path == ":memory:" {
		// every pool connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, path: path}
	if seed {
		slog.Info("setting up sample database", "path", path)
		if err := s.seed(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to seed database: %w", err)
		}
	} else {
		slog.Debug("database already exists, skipping setup", "path", path)
	}
	return s, nil
}

// OpenEmpty opens the database without seeding, regardless of whether the
// file exists. Used by import utilities that bring their own data.
func OpenEmpty(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the location the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying pool for administrative queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Session pins a single connection from the pool for the duration of one
// pipeline run. Savepoints are per-connection in sqlite, so every run must
// validate and execute on the same session; the pool must not swap
// connections underneath it.
func (s *Store) Session(ctx context.Context) (*Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Session is a dedicated database connection for one pipeline run.
type Session struct {
	conn *sql.Conn
}

// Close returns the connection to the pool. Safe to call on every exit path.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, query, args...)
}

func (s *Session) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, query, args...)
}

// Validate executes sqlQuery inside a savepoint and rolls it back
// unconditionally, so the attempt never leaves a visible change — even when
// the statement is a successful mutation. A non-nil error describes why the
// statement failed to execute.
func (s *Session) Validate(ctx context.Context, sqlQuery string) error {
	if _, err := s.conn.ExecContext(ctx, "SAVEPOINT sql_check"); err != nil {
		return fmt.Errorf("failed to establish savepoint: %w", err)
	}

	execErr := s.tryStatement(ctx, sqlQuery)

	// ROLLBACK TO rewinds the work but keeps the savepoint on the stack;
	// RELEASE pops it so the implicit transaction ends with nothing in it.
	if _, err := s.conn.ExecContext(ctx, "ROLLBACK TO sql_check"); err != nil {
		return fmt.Errorf("failed to roll back savepoint: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, "RELEASE sql_check"); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}

	return execErr
}

// tryStatement runs the statement and drains any result set. SELECTs must be
// iterated for sqlite to surface row-level errors during validation.
func (s *Session) tryStatement(ctx context.Context, sqlQuery string) error {
	rows, err := s.conn.QueryContext(ctx, sqlQuery)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

func (s *Store) seed(ctx context.Context) error {
	if err := s.createTables(ctx); err != nil {
		return err
	}
	return s.populateTables(ctx)
}

func (s *Store) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS Customers (
			CustomerID INTEGER PRIMARY KEY,
			CustomerName TEXT,
			ContactName TEXT,
			Address TEXT,
			City TEXT,
			PostalCode TEXT,
			Country TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS Orders (
			OrderID INTEGER PRIMARY KEY,
			CustomerID INTEGER,
			OrderDate TEXT,
			FOREIGN KEY (CustomerID) REFERENCES Customers (CustomerID)
		)`,
		`CREATE TABLE IF NOT EXISTS OrderDetails (
			OrderDetailID INTEGER PRIMARY KEY,
			OrderID INTEGER,
			ProductID INTEGER,
			Quantity INTEGER,
			FOREIGN KEY (OrderID) REFERENCES Orders (OrderID),
			FOREIGN KEY (ProductID) REFERENCES Products (ProductID)
		)`,
		`CREATE TABLE IF NOT EXISTS Products (
			ProductID INTEGER PRIMARY KEY,
			ProductName TEXT,
			Price REAL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (s *Store) populateTables(ctx context.Context) error {
	if err := s.populateIfEmpty(ctx, "Customers",
		"INSERT INTO Customers (CustomerID, CustomerName, ContactName, Address, City, PostalCode, Country) VALUES (?, ?, ?, ?, ?, ?, ?)",
		func(i int) []any {
			return []any{
				i,
				fmt.Sprintf("Customer %d", i),
				fmt.Sprintf("Contact %d", i),
				fmt.Sprintf("Address %d", i),
				fmt.Sprintf("City %d", i%10),
				fmt.Sprintf("%d", 10000+i),
				fmt.Sprintf("Country %d", i%5),
			}
		}); err != nil {
		return err
	}

	if err := s.populateIfEmpty(ctx, "Products",
		"INSERT INTO Products (ProductID, ProductName, Price) VALUES (?, ?, ?)",
		func(i int) []any {
			return []any{i, fmt.Sprintf("Product %d", i), 10 + float64(i)*0.5}
		}); err != nil {
		return err
	}

	if err := s.populateIfEmpty(ctx, "Orders",
		"INSERT INTO Orders (OrderID, CustomerID, OrderDate) VALUES (?, ?, ?)",
		func(i int) []any {
			date := sampleBaseDate.AddDate(0, 0, i)
			return []any{i, i%50 + 1, date.Format("2006-01-02")}
		}); err != nil {
		return err
	}

	return s.populateIfEmpty(ctx, "OrderDetails",
		"INSERT INTO OrderDetails (OrderDetailID, OrderID, ProductID, Quantity) VALUES (?, ?, ?, ?)",
		func(i int) []any {
			return []any{i, i%50 + 1, i%50 + 1, (i%5 + 1) * 2}
		})
}

const sampleRowCount = 50

func (s *Store) populateIfEmpty(ctx context.Context, table, insert string, row func(i int) []any) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return fmt.Errorf("failed to count %s: %w", table, err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for i := 1; i <= sampleRowCount; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return tx.Commit()
}
