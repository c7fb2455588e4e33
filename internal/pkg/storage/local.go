package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidPath = errors.New("invalid file path")

type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}

	// Create base directory if not exists
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{basePath: abs}, nil
}

var _ FileStorage = (*LocalStorage)(nil)

// resolve maps a key onto a file below basePath, rejecting traversal.
func (s *LocalStorage) resolve(path string) (string, string, error) {
	cleanPath := filepath.Clean("/" + filepath.FromSlash(path))
	cleanPath = strings.TrimPrefix(cleanPath, string(filepath.Separator))
	if cleanPath == "" || cleanPath == "." {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	fullPath := filepath.Join(s.basePath, cleanPath)
	if !strings.HasPrefix(fullPath, s.basePath+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.ToSlash(cleanPath), fullPath, nil
}

// Upload writes to a temporary file first and renames it into place, so a
// concurrent reader sees either the old or the new document.
func (s *LocalStorage) Upload(ctx context.Context, file io.Reader, path string, contentType string) (string, error) {
	key, fullPath, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	// Create directory structure
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	return key, nil
}

func (s *LocalStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	_, fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	_, fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, fullPath, err := s.resolve(path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
