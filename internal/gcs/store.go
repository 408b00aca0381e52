// Package gcs lists and reads cover photos from a Google Cloud Storage
// bucket and derives image identity (filename, owner label) from object
// paths.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png"}

// Store wraps a bucket handle for listing and reading input images.
type Store struct {
	client *storage.Client
	bucket string
}

// New connects to GCS using application default credentials. Credential
// failures surface here, before any listing is attempted.
func New(ctx context.Context, bucket string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCS authentication failed, check GOOGLE_APPLICATION_CREDENTIALS: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// ListImages returns the object names of all images under prefix, in
// listing order.
func (s *Store) ListImages(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, s.classifyError(err)
		}
		if isImage(attrs.Name) {
			names = append(names, attrs.Name)
		}
	}
	return names, nil
}

// Read downloads one object.
func (s *Store) Read(ctx context.Context, object string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, object, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", s.bucket, object, err)
	}
	return data, nil
}

// OwnerFolders lists the distinct owner labels derivable from image paths
// under prefix. Used to scope playlist building to the folders a custom
// prefix actually covers.
func (s *Store) OwnerFolders(ctx context.Context, prefix string) (map[string]bool, error) {
	names, err := s.ListImages(ctx, prefix)
	if err != nil {
		return nil, err
	}
	owners := make(map[string]bool)
	for _, name := range names {
		if owner := OwnerFromURI(URI(s.bucket, name), s.bucket, prefix); owner != "" {
			owners[owner] = true
		}
	}
	return owners, nil
}

// classifyError maps remote failures onto distinct user-facing messages so a
// misconfigured bucket reads differently from a missing permission.
func (s *Store) classifyError(err error) error {
	if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("GCS bucket %q not found: %w", s.bucket, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 403:
			return fmt.Errorf("permission denied accessing GCS bucket %q, check that the service account has Storage Object Viewer: %w", s.bucket, err)
		case 404:
			return fmt.Errorf("GCS bucket %q not found: %w", s.bucket, err)
		case 401:
			return fmt.Errorf("GCS authentication failed, check GOOGLE_APPLICATION_CREDENTIALS: %w", err)
		}
	}
	return fmt.Errorf("failed to list GCS bucket %q: %w", s.bucket, err)
}

func isImage(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
