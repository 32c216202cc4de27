package filestore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var (
	ErrStorageFailure = errors.New("storage_failure")
	ErrObjectNotFound = errors.New("object_not_found")
	ErrInvalidKey     = errors.New("invalid_object_key")
)

// Store persists opaque blobs under caller-chosen keys and returns the stored reference.
type Store interface {
	Save(ctx context.Context, key string, content io.Reader, contentType string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Delete removes a stored reference. Missing objects are not an error.
	Delete(ctx context.Context, ref string) error
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
