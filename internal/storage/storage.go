// Package storage keeps document bytes outside the database.
//
// Objects are addressed by flat keys. Deletes that must line up with a
// database transaction go through Quarantine: the object is moved aside and
// later either purged (commit) or restored (rollback).
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound   = errors.New("storage: object not found")
	ErrExists     = errors.New("storage: object already exists")
	ErrTooLarge   = errors.New("storage: object exceeds size limit")
	ErrInvalidKey = errors.New("storage: invalid key")
)

type Blobs interface {
	// Write stores at most limit bytes from r under key and returns the
	// number of bytes written. Larger payloads fail with ErrTooLarge and
	// leave nothing behind.
	Write(ctx context.Context, key string, r io.Reader, limit int64) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Quarantine(ctx context.Context, key string) (Held, error)
	Location(key string) string
}

// Held is an object moved aside pending the outcome of a transaction.
type Held interface {
	Restore() error
	Purge() error
}
