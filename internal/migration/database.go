package migration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"

	"flank/internal/timing"
)

// DatabaseManager makes sure the database behind a SQL timing source exists
type DatabaseManager struct{}

// NewDatabaseManager creates a new DatabaseManager
func NewDatabaseManager() *DatabaseManager {
	return &DatabaseManager{}
}

// EnsureDatabase creates the database of src if it does not exist yet.
// It reports whether the database was created.
func (dm *DatabaseManager) EnsureDatabase(ctx context.Context, src timing.Source) (bool, error) {
	switch src.Driver {
	case timing.DriverMySQL:
		return dm.ensureMySQL(ctx, src.DSN)
	case timing.DriverSQLite:
		return dm.ensureSQLite(src.DSN)
	}
	return false, fmt.Errorf("unsupported timing database driver %q", src.Driver)
}

func (dm *DatabaseManager) ensureMySQL(ctx context.Context, dsn string) (bool, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return false, fmt.Errorf("parse mysql dsn: %w", err)
	}
	dbName := cfg.DBName
	if dbName == "" {
		return false, fmt.Errorf("mysql dsn has no database name")
	}

	// Connect to MySQL server (without specifying database)
	cfg.DBName = ""
	db, err := sql.Open(timing.DriverMySQL, cfg.FormatDSN())
	if err != nil {
		return false, fmt.Errorf("failed to connect to database server: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return false, fmt.Errorf("failed to ping database server: %w", err)
	}

	exists, err := dm.databaseExists(ctx, db, dbName)
	if err != nil {
		return false, fmt.Errorf("failed to check database %s: %w", dbName, err)
	}
	if exists {
		return false, nil
	}
	if err := dm.createDatabase(ctx, db, dbName); err != nil {
		return false, fmt.Errorf("failed to create database %s: %w", dbName, err)
	}
	return true, nil
}

func (dm *DatabaseManager) ensureSQLite(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("create database directory: %w", err)
	}
	// The driver creates the file on first connection
	return true, nil
}

// databaseExists checks if a database exists
func (dm *DatabaseManager) databaseExists(ctx context.Context, db *sql.DB, dbName string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?)"
	err := db.QueryRowContext(ctx, query, dbName).Scan(&exists)
	return exists, err
}

// createDatabase creates a new database
func (dm *DatabaseManager) createDatabase(ctx context.Context, db *sql.DB, dbName string) error {
	if !dm.isValidDatabaseName(dbName) {
		return fmt.Errorf("invalid database name: %s", dbName)
	}

	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName)
	_, err := db.ExecContext(ctx, query)
	return err
}

// isValidDatabaseName validates database name (basic check)
func (dm *DatabaseManager) isValidDatabaseName(name string) bool {
	if len(name) == 0 || len(name) > 64 {
		return false
	}
	invalidChars := []string{"'", "\"", "`", ";", "--", "/*", "*/", "DROP", "DELETE", "TRUNCATE"}
	upperName := strings.ToUpper(name)
	for _, char := range invalidChars {
		if strings.Contains(upperName, char) {
			return false
		}
	}
	return true
}
