package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore defines the blob operations the pipeline needs.
type ObjectStore interface {
	// Get returns a reader for the given URI (s3://bucket/key or file://path).
	Get(ctx context.Context, uri string) (io.ReadCloser, int64, error)
	// Put writes content to the given URI; returns final URI.
	Put(ctx context.Context, uri string, body io.Reader, contentType string) (string, error)
	// Delete removes the given objects; missing objects are not an error.
	Delete(ctx context.Context, uris ...string) error
}

// PutWithRetry uploads body with a bounded number of attempts and a fixed
// backoff between them, since transient store failures are expected. The
// body is a byte slice so each attempt re-reads from the start.
func PutWithRetry(ctx context.Context, store ObjectStore, uri string, body []byte, contentType string, attempts int, backoff time.Duration) (string, error) {
	if attempts <= 0 {
		attempts = 3
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		final, err := store.Put(ctx, uri, bytesReader(body), contentType)
		if err == nil {
			return final, nil
		}
		lastErr = err
		if i == attempts-1 || ctx.Err() != nil {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	return "", lastErr
}
