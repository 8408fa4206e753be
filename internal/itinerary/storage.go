package itinerary

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage defines the interface for document storage operations
type Storage interface {
	// Bucket names the storage so trigger events can be matched to it
	Bucket() string

	// Save saves an object and returns its path
	Save(objectPath string, data []byte) (string, error)

	// Get retrieves an object by path
	Get(objectPath string) ([]byte, error)

	// Delete removes an object
	Delete(objectPath string) error
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
	bucket   string
}

// NewLocalStorage creates a new LocalStorage rooted at basePath.
// The bucket name defaults to the base directory name.
func NewLocalStorage(basePath string, bucket string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	if bucket == "" {
		bucket = filepath.Base(filepath.Clean(basePath))
	}

	return &LocalStorage{
		basePath: basePath,
		bucket:   bucket,
	}, nil
}

// Bucket returns the storage name
func (l *LocalStorage) Bucket() string {
	return l.bucket
}

// resolve maps an object path to a file below the base path
func (l *LocalStorage) resolve(objectPath string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(objectPath))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(l.basePath, strings.TrimPrefix(clean, string(filepath.Separator))), nil
}

// Save saves an object to local storage
func (l *LocalStorage) Save(objectPath string, data []byte) (string, error) {
	path, err := l.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return objectPath, nil
}

// Get retrieves an object from local storage
func (l *LocalStorage) Get(objectPath string) ([]byte, error) {
	path, err := l.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes an object from local storage
func (l *LocalStorage) Delete(objectPath string) error {
	path, err := l.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
