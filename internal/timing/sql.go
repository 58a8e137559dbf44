package timing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jstemmer/go-junit-report/v2/junit"
	_ "modernc.org/sqlite"
)

// SQL drivers accepted as timing sources
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// TableName is the table holding per-test timings
const TableName = "test_timings"

// SQLBackend stores timings in a test_timings table
type SQLBackend struct {
	db     *sql.DB
	driver string
}

// OpenSQL connects to the database and verifies the connection
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLBackend, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to timing database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping timing database: %w", err)
	}
	return &SQLBackend{db: db, driver: driver}, nil
}

// DB exposes the connection for schema management
func (s *SQLBackend) DB() *sql.DB {
	return s.db
}

// Driver returns the SQL driver name
func (s *SQLBackend) Driver() string {
	return s.driver
}

// EnsureSchema creates the timing table if it does not exist
func (s *SQLBackend) EnsureSchema(ctx context.Context) error {
	query := "CREATE TABLE IF NOT EXISTS " + TableName + " (" +
		"test_id VARCHAR(512) NOT NULL PRIMARY KEY, " +
		"duration_ms BIGINT NOT NULL, " +
		"updated_at BIGINT NOT NULL)"
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", TableName, err)
	}
	return nil
}

// Load reads every stored timing
func (s *SQLBackend) Load(ctx context.Context) (MapStore, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT test_id, duration_ms FROM "+TableName)
	if err != nil {
		return nil, fmt.Errorf("query timings: %w", err)
	}
	defer rows.Close()

	store := MapStore{}
	for rows.Next() {
		var id string
		var ms int64
		if err := rows.Scan(&id, &ms); err != nil {
			return nil, fmt.Errorf("scan timing row: %w", err)
		}
		store[id] = time.Duration(ms) * time.Millisecond
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read timings: %w", err)
	}
	return store, nil
}

// Upload upserts the duration of every timed, non-skipped case in one transaction
func (s *SQLBackend) Upload(ctx context.Context, suites *junit.Testsuites) error {
	timings, err := FromJUnit(suites)
	if err != nil {
		return err
	}
	if len(timings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin timing upload: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.upsertQuery())
	if err != nil {
		return fmt.Errorf("prepare timing upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, id := range timings.IDs() {
		if _, err := stmt.ExecContext(ctx, id, timings[id].Milliseconds(), now); err != nil {
			return fmt.Errorf("upsert timing %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit timing upload: %w", err)
	}
	return nil
}

func (s *SQLBackend) upsertQuery() string {
	if s.driver == DriverMySQL {
		return "INSERT INTO " + TableName + " (test_id, duration_ms, updated_at) VALUES (?, ?, ?) " +
			"ON DUPLICATE KEY UPDATE duration_ms = VALUES(duration_ms), updated_at = VALUES(updated_at)"
	}
	return "INSERT INTO " + TableName + " (test_id, duration_ms, updated_at) VALUES (?, ?, ?) " +
		"ON CONFLICT(test_id) DO UPDATE SET duration_ms = excluded.duration_ms, updated_at = excluded.updated_at"
}

// Close closes the database connection
func (s *SQLBackend) Close() error {
	return s.db.Close()
}
