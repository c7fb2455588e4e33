package storage

import (
	"context"
	"io"
)

// FileStorage keeps rendered payroll documents under slash-separated keys.
type FileStorage interface {
	// Upload stores the file and returns the key it can be read back with
	Upload(ctx context.Context, file io.Reader, path string, contentType string) (string, error)

	// Download retrieves a file
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a file
	Delete(ctx context.Context, path string) error

	// Exists checks if file exists
	Exists(ctx context.Context, path string) (bool, error)
}
