package timing

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Source
		wantErr bool
	}{
		{name: "empty", raw: "", want: Source{Kind: SourceNone}},
		{name: "file", raw: "results/JUnitReport.xml", want: Source{Kind: SourceFile, Path: "results/JUnitReport.xml"}},
		{name: "gcs", raw: "gs://bucket/path/JUnitReport.xml", want: Source{Kind: SourceGCS, Bucket: "bucket", Path: "path/JUnitReport.xml"}},
		{name: "gcs without object", raw: "gs://bucket", wantErr: true},
		{name: "mysql", raw: "mysql://u:p@tcp(db:3306)/flank", want: Source{Kind: SourceSQL, Driver: DriverMySQL, DSN: "u:p@tcp(db:3306)/flank"}},
		{name: "sqlite", raw: "sqlite:///tmp/t.db", want: Source{Kind: SourceSQL, Driver: DriverSQLite, DSN: "/tmp/t.db"}},
		{name: "sqlite without path", raw: "sqlite://", wantErr: true},
		{name: "unknown scheme", raw: "s3://bucket/key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSource(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSource)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSource_MySQLFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_USERNAME", "flank")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_DATABASE", "timings")

	src, err := ParseSource("mysql://")
	require.NoError(t, err)
	assert.Equal(t, "flank:secret@tcp(db.internal:3307)/timings", src.DSN)
	assert.False(t, strings.Contains(src.String(), "secret"))
}

func TestSQLBackend_SQLite(t *testing.T) {
	ctx := context.Background()
	src, err := ParseSource("sqlite://" + filepath.Join(t.TempDir(), "timings.db"))
	require.NoError(t, err)

	backend, err := Open(ctx, src)
	require.NoError(t, err)
	defer backend.Close()

	sqlBackend := backend.(*SQLBackend)
	require.NoError(t, sqlBackend.EnsureSchema(ctx))
	require.NoError(t, sqlBackend.EnsureSchema(ctx), "schema creation is idempotent")

	store, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())

	suites, err := DecodeJUnit(strings.NewReader(sampleReport))
	require.NoError(t, err)
	require.NoError(t, backend.Upload(ctx, suites))

	// second upload updates existing rows
	suites.Suites[0].Testcases[0].Time = "5"
	require.NoError(t, backend.Upload(ctx, suites))

	store, err = backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())
	d, ok := store.Lookup("EarlGreyExampleTests/testBasicSelection")
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, d)
}

func TestOpen_None(t *testing.T) {
	backend, err := Open(context.Background(), Source{Kind: SourceNone})
	require.NoError(t, err)
	assert.Nil(t, backend)
}
