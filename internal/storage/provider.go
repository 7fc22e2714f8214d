// Package storage persists encoded frame snapshots. Providers stream:
// writers hand bytes over as batches are encoded, so snapshot size never
// dictates memory usage.
package storage

import (
	"context"
	"io"
)

// Provider is the destination for frame snapshots.
type Provider interface {
	// StreamToFile returns a WriteCloser; data written to it is streamed to
	// the storage destination under key. The returned channel receives a
	// single error (or nil) when the storage operation completes.
	StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error)

	// OpenFile opens a stored snapshot for reading.
	OpenFile(ctx context.Context, key string) (io.ReadCloser, error)

	// GetDownloadURL returns a viewable/downloadable URL for the snapshot.
	GetDownloadURL(key string) string
}
