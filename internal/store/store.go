// Package store persists whole named documents. Every Save replaces the
// previous contents of the document; there are no partial updates.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when the named document was never saved.
var ErrNotFound = errors.New("document not found")

type Store interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}
