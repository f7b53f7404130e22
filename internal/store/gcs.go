package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSStore uploads blobs to a Google Cloud Storage bucket.
type GCSStore struct {
	bucket     *storage.BucketHandle
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// GCSConfig holds the GCS store's configuration.
type GCSConfig struct {
	BucketName string
	MaxRetries int           // attempts per object; 0 means 3
	RetryDelay time.Duration // base delay, grows linearly per attempt
	Logger     *slog.Logger
}

// NewGCS creates a GCSStore using application default credentials.
func NewGCS(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot create storage client: %w", err)
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	return &GCSStore{
		bucket:     client.Bucket(cfg.BucketName),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
	}, nil
}

func (s *GCSStore) Put(ctx context.Context, key, localPath string) error {
	var lastErr error

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err := s.putOnce(ctx, key, localPath)
		if err == nil {
			return nil
		}
		lastErr = err

		var upErr *UploadError
		if errors.As(err, &upErr) && !upErr.IsRetryable() {
			return err
		}
		if ctx.Err() != nil {
			return lastErr
		}

		if s.logger != nil {
			s.logger.Warn("upload attempt failed",
				"key", key,
				"attempt", attempt,
				"max_attempts", s.maxRetries,
				"error", err,
			)
		}

		if attempt < s.maxRetries {
			select {
			case <-time.After(s.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return lastErr
			}
		}
	}

	return lastErr
}

func (s *GCSStore) putOnce(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return &UploadError{Reason: ReasonTransportFailure, Key: key, Err: err}
	}
	defer f.Close()

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentTypeFor(key)

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return classifyGCS(key, err)
	}
	if err := w.Close(); err != nil {
		return classifyGCS(key, err)
	}

	if s.logger != nil {
		s.logger.Info("uploaded object", "key", key, "content_type", w.ContentType)
	}
	return nil
}

func classifyGCS(key string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusUnauthorized {
			return &UploadError{Reason: ReasonPermissionDenied, Key: key, Err: err}
		}
	}
	return &UploadError{Reason: ReasonTransportFailure, Key: key, Err: err}
}

func contentTypeFor(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
