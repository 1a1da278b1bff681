package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/formstamp/internal/formfill"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// An existing object is not a failure: outputs are keyed by content.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, content []byte) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		return classifyWriteErr(objectName, err, "failed to write to GCS")
	}
	if err := writer.Close(); err != nil {
		return classifyWriteErr(objectName, err, "failed to finalize GCS write")
	}
	return nil
}

// SaveToGCSWithRetry retries SaveToGCSAtomically with exponential backoff.
func SaveToGCSWithRetry(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, content []byte, maxRetries int) error {
	backoff := 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
		err := SaveToGCSAtomically(writeCtx, bucket, objectName, contentType, content)
		cancel()
		if err == nil {
			return nil
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", objectName,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", objectName, "error", ctx.Err())
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload for %s failed after all retries: %w", objectName, lastErr)
}

func classifyWriteErr(objectName string, err error, msg string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 412 {
		slog.Info("Object already exists. Skipping.", "gcsObject", objectName)
		return nil
	}
	slog.Error(msg, "gcsObject", objectName, "error", err)
	return fmt.Errorf("%s: %w", msg, err)
}

// ReadObject reads a whole GCS object into memory.
func ReadObject(ctx context.Context, bucket *storage.BucketHandle, objectName string) ([]byte, error) {
	r, err := bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for %s: %w", objectName, err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", objectName, err)
	}
	return b, nil
}

// BucketSource serves form assets from a GCS bucket.
type BucketSource struct {
	Bucket *storage.BucketHandle
}

var _ formfill.Source = BucketSource{}

func (s BucketSource) ReadAsset(ctx context.Context, name string) ([]byte, error) {
	b, err := ReadObject(ctx, s.Bucket, name)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", name, formfill.ErrAssetNotFound)
	}
	return b, err
}
