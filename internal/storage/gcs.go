package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore keeps objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	// publicURL overrides the default https://storage.googleapis.com/<bucket> base.
	publicURL string
}

var _ ObjectStore = (*GCSStore)(nil)

func NewGCSStore(ctx context.Context, bucket, credentialsFile, publicURL string) (*GCSStore, error) {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if publicURL == "" || strings.HasPrefix(publicURL, "/") {
		publicURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, r io.Reader) (*Object, error) {
	key = cleanKey(key)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write object to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close GCS writer: %w", err)
	}
	return &Object{Key: key, URL: s.URL(key), ContentType: contentType, Size: n}, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(cleanKey(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete GCS object: %w", err)
	}
	return nil
}

func (s *GCSStore) URL(key string) string {
	return s.publicURL + "/" + cleanKey(key)
}

func (s *GCSStore) Close() error { return s.client.Close() }
