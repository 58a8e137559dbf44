package migration

import "context"

// Migrator prepares the storage behind a timing source
type Migrator interface {
	Run(ctx context.Context, opts Options) error
}

// Options controls a migration run
type Options struct {
	Fresh bool   // Drop stored timings before migrating
	Seed  string // JUnit report to import after migrating
}
