// Package archive stores run artifacts (reports, frames, charts) on a
// local directory or an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"
)

// Storage is a flat key/blob store addressed by slash-separated paths.
type Storage interface {
	// Write stores data at the given path, replacing any previous content
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)

	// Location renders path as a user-facing file path or URL
	Location(path string) string
}

// Config selects and configures a backend.
type Config struct {
	Type string // "localfs" (default) or "s3"
	Path string // base directory for localfs
	S3   S3Config
}

// Open builds the backend named by cfg.Type.
func Open(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "localfs":
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
