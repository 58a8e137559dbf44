package timing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalidSource is returned for a malformed timing source
var ErrInvalidSource = errors.New("invalid timing source")

// SourceKind identifies where timing data lives
type SourceKind string

const (
	SourceNone SourceKind = "none"
	SourceFile SourceKind = "file"
	SourceGCS  SourceKind = "gcs"
	SourceSQL  SourceKind = "sql"
)

// Source is a parsed timing source location
type Source struct {
	Kind   SourceKind
	Path   string // file path or GCS object name
	Bucket string
	Driver string
	DSN    string
}

// ParseSource parses "", a file path, "gs://bucket/object", "mysql://dsn" or "sqlite://path"
func ParseSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Source{Kind: SourceNone}, nil
	case strings.HasPrefix(raw, "gs://"):
		rest := strings.TrimPrefix(raw, "gs://")
		bucket, object, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || object == "" {
			return Source{}, fmt.Errorf("%w: %q needs gs://bucket/object", ErrInvalidSource, raw)
		}
		return Source{Kind: SourceGCS, Bucket: bucket, Path: object}, nil
	case strings.HasPrefix(raw, "mysql://"):
		dsn := strings.TrimPrefix(raw, "mysql://")
		if dsn == "" {
			dsn = MySQLDSNFromEnv()
		}
		return Source{Kind: SourceSQL, Driver: DriverMySQL, DSN: dsn}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return Source{}, fmt.Errorf("%w: %q needs a database path", ErrInvalidSource, raw)
		}
		return Source{Kind: SourceSQL, Driver: DriverSQLite, DSN: path}, nil
	case strings.Contains(raw, "://"):
		return Source{}, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidSource, raw)
	}
	return Source{Kind: SourceFile, Path: raw}, nil
}

// String renders the source without credentials
func (s Source) String() string {
	switch s.Kind {
	case SourceFile:
		return s.Path
	case SourceGCS:
		return "gs://" + s.Bucket + "/" + s.Path
	case SourceSQL:
		return s.Driver + " timing table"
	}
	return "none"
}

// MySQLDSNFromEnv builds a DSN from DB_HOST, DB_PORT, DB_USERNAME, DB_PASSWORD and DB_DATABASE
func MySQLDSNFromEnv() string {
	get := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s",
		get("DB_USERNAME", "root"),
		os.Getenv("DB_PASSWORD"),
		get("DB_HOST", "127.0.0.1"),
		get("DB_PORT", "3306"),
		get("DB_DATABASE", "flank"),
	)
}

// Open connects to the backend for a source. SourceNone yields a nil Backend.
func Open(ctx context.Context, src Source) (Backend, error) {
	switch src.Kind {
	case SourceNone:
		return nil, nil
	case SourceFile:
		return NewFileBackend(src.Path), nil
	case SourceGCS:
		backend, err := NewGCSBackend(ctx, src.Bucket, src.Path)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case SourceSQL:
		backend, err := OpenSQL(ctx, src.Driver, src.DSN)
		if err != nil {
			return nil, err
		}
		return backend, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSource, src.Kind)
}
