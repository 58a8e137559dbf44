package migration

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"

	"flank/internal/timing"
)

// ErrNotSQLSource is returned when migrating a timing source that is not a database
var ErrNotSQLSource = errors.New("migrate needs a mysql:// or sqlite:// timing source")

// TimingMigrator implements Migrator for the SQL timing table
type TimingMigrator struct {
	source          timing.Source
	databaseManager *DatabaseManager
}

var _ Migrator = (*TimingMigrator)(nil)

// NewTimingMigrator creates a new TimingMigrator
func NewTimingMigrator(src timing.Source, dbManager *DatabaseManager) *TimingMigrator {
	return &TimingMigrator{
		source:          src,
		databaseManager: dbManager,
	}
}

// Run creates the database and the timing table, optionally seeding it from a JUnit report
func (tm *TimingMigrator) Run(ctx context.Context, opts Options) error {
	if tm.source.Kind != timing.SourceSQL {
		return ErrNotSQLSource
	}

	color.Cyan("\n╔════════════════════════════════════════════════════════════╗")
	color.Cyan("║                 Migrating Timing Database                  ║")
	color.Cyan("╚════════════════════════════════════════════════════════════╝\n")

	created, err := tm.databaseManager.EnsureDatabase(ctx, tm.source)
	if err != nil {
		return fmt.Errorf("failed to check database: %w", err)
	}
	if created {
		log.WithField("source", tm.source.String()).Info("Created timing database")
	}

	backend, err := timing.OpenSQL(ctx, tm.source.Driver, tm.source.DSN)
	if err != nil {
		return err
	}
	defer backend.Close()

	if opts.Fresh {
		if _, err := backend.DB().ExecContext(ctx, "DROP TABLE IF EXISTS "+timing.TableName); err != nil {
			return fmt.Errorf("drop %s: %w", timing.TableName, err)
		}
		log.WithField("table", timing.TableName).Info("Dropped stored timings")
	}
	if err := backend.EnsureSchema(ctx); err != nil {
		return err
	}

	if opts.Seed != "" {
		if err := tm.seed(ctx, backend, opts.Seed); err != nil {
			return err
		}
	}

	stored, err := backend.Load(ctx)
	if err != nil {
		return err
	}
	color.Green("✓ Timing table %s ready with %d timing(s)", timing.TableName, stored.Len())
	return nil
}

func (tm *TimingMigrator) seed(ctx context.Context, backend *timing.SQLBackend, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed report: %w", err)
	}
	defer file.Close()

	suites, err := timing.DecodeJUnit(file)
	if err != nil {
		return err
	}
	if err := backend.Upload(ctx, suites); err != nil {
		return fmt.Errorf("seed timings: %w", err)
	}
	log.WithField("report", path).Info("Seeded timings")
	return nil
}
