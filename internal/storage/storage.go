// Package storage contains the uploads layout abstraction: one directory (or key prefix)
// per category under a single uploads root, with a local-disk and an S3-compatible backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a category or file does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidPath is returned when a category or file name would resolve outside the uploads root.
	ErrInvalidPath = errors.New("storage: invalid path")
)

// PutObjectOptions define optional parameters for storing files.
// Size should be the exact number of bytes if known; if unknown, set to -1.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored file.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the uploads root. Category and name are single path segments.
type Storage interface {
	// List returns the entry names of a category in lexical order.
	// It returns ErrNotFound when the category does not exist.
	List(ctx context.Context, category string) ([]string, error)
	// Get opens a file of a category for streaming alongside its info.
	// It returns ErrNotFound when the file does not exist or is a directory.
	Get(ctx context.Context, category, name string) (io.ReadCloser, ObjectInfo, error)
	// Put stores a file under a category, creating the category when needed.
	Put(ctx context.Context, category, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
}

// validSegment rejects anything that is not a plain file or directory name.
func validSegment(s string) error {
	switch {
	case s == "", s == ".", s == "..":
		return fmt.Errorf("%w: %q", ErrInvalidPath, s)
	case strings.ContainsAny(s, "/\\\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}
	return nil
}

// Key returns the slash-separated key of a file relative to the uploads root.
func Key(category, name string) (string, error) {
	if err := validSegment(category); err != nil {
		return "", err
	}
	if err := validSegment(name); err != nil {
		return "", err
	}
	return category + "/" + name, nil
}
