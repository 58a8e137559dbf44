package timing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jstemmer/go-junit-report/v2/junit"
)

const gcsTimeout = 5 * time.Minute

// GCSBackend reads and writes a JUnit timing report stored in a GCS bucket
type GCSBackend struct {
	client *storage.Client
	bucket string
	object string
}

// NewGCSBackend creates a storage client using application default credentials
func NewGCSBackend(ctx context.Context, bucket, object string) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSBackend{client: client, bucket: bucket, object: object}, nil
}

// Load downloads the timing report. A missing object is an empty store.
func (g *GCSBackend) Load(ctx context.Context) (MapStore, error) {
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	rc, err := g.client.Bucket(g.bucket).Object(g.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return MapStore{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("download gs://%s/%s: %w", g.bucket, g.object, err)
	}
	defer rc.Close()

	suites, err := DecodeJUnit(rc)
	if err != nil {
		return nil, err
	}
	return FromJUnit(suites)
}

// Upload overwrites the timing report object
func (g *GCSBackend) Upload(ctx context.Context, suites *junit.Testsuites) error {
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	wc := g.client.Bucket(g.bucket).Object(g.object).NewWriter(ctx)
	wc.ContentType = "application/xml"
	if err := EncodeJUnit(wc, suites); err != nil {
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("upload gs://%s/%s: %w", g.bucket, g.object, err)
	}
	return nil
}

// Close releases the storage client
func (g *GCSBackend) Close() error {
	return g.client.Close()
}
