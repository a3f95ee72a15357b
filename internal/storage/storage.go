// Package storage keeps binary evidence, such as signature images, outside
// the database.
package storage

import (
	"context"
	"io"
)

// Storage is a flat key/value blob store.
type Storage interface {
	// Put stores content under key and returns the URL it is served from.
	Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error)

	// Get opens the object at key. The caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	URL(key string) string

	Exists(ctx context.Context, key string) (bool, error)
}

// Config selects and configures a backend.
type Config struct {
	Provider  string // "local", "r2" or "none"
	LocalPath string
	PublicURL string
	R2        R2Config
}

// New returns the configured backend, or nil for provider "none".
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalStorage(cfg.LocalPath, cfg.PublicURL)
	case "r2":
		r2 := cfg.R2
		if r2.PublicURL == "" {
			r2.PublicURL = cfg.PublicURL
		}
		return NewR2Storage(ctx, r2)
	case "none":
		return nil, nil
	default:
		return nil, ErrUnknownProvider(cfg.Provider)
	}
}
