package migration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flank/internal/timing"
)

const seedReport = `<testsuites>
  <testsuite name="Suite">
    <testcase classname="Suite" name="testA" time="3.5"></testcase>
    <testcase classname="Suite" name="testB" time="12"></testcase>
  </testsuite>
</testsuites>`

func sqliteSource(t *testing.T) timing.Source {
	t.Helper()
	src, err := timing.ParseSource("sqlite://" + filepath.Join(t.TempDir(), "db", "timings.db"))
	require.NoError(t, err)
	return src
}

func loadTimings(t *testing.T, src timing.Source) timing.MapStore {
	t.Helper()
	backend, err := timing.OpenSQL(context.Background(), src.Driver, src.DSN)
	require.NoError(t, err)
	defer backend.Close()
	store, err := backend.Load(context.Background())
	require.NoError(t, err)
	return store
}

func TestTimingMigrator_CreatesAndSeeds(t *testing.T) {
	src := sqliteSource(t)
	seed := filepath.Join(t.TempDir(), "seed.xml")
	require.NoError(t, os.WriteFile(seed, []byte(seedReport), 0644))

	m := NewTimingMigrator(src, NewDatabaseManager())
	require.NoError(t, m.Run(context.Background(), Options{Seed: seed}))

	assert.Equal(t, timing.MapStore{
		"Suite/testA": 3500 * time.Millisecond,
		"Suite/testB": 12 * time.Second,
	}, loadTimings(t, src))

	// Running again keeps the stored timings
	require.NoError(t, m.Run(context.Background(), Options{}))
	assert.Len(t, loadTimings(t, src), 2)
}

func TestTimingMigrator_Fresh(t *testing.T) {
	src := sqliteSource(t)
	seed := filepath.Join(t.TempDir(), "seed.xml")
	require.NoError(t, os.WriteFile(seed, []byte(seedReport), 0644))

	m := NewTimingMigrator(src, NewDatabaseManager())
	require.NoError(t, m.Run(context.Background(), Options{Seed: seed}))
	require.NoError(t, m.Run(context.Background(), Options{Fresh: true}))

	assert.Empty(t, loadTimings(t, src))
}

func TestTimingMigrator_RejectsNonSQLSource(t *testing.T) {
	src, err := timing.ParseSource("JUnitReport.xml")
	require.NoError(t, err)

	err = NewTimingMigrator(src, NewDatabaseManager()).Run(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNotSQLSource)
}

func TestDatabaseManager_IsValidDatabaseName(t *testing.T) {
	dm := NewDatabaseManager()
	tests := []struct {
		name  string
		valid bool
	}{
		{"flank", true},
		{"flank_timings_2", true},
		{"", false},
		{"flank`; DROP", false},
		{"x'y", false},
	}
	for _, tt := range tests {
		if got := dm.isValidDatabaseName(tt.name); got != tt.valid {
			t.Errorf("isValidDatabaseName(%q) = %v, want %v", tt.name, got, tt.valid)
		}
	}
}
