package blobstore

import (
	"context"

	crerr "github.com/cockroachdb/errors"
)

// ErrNotFound is returned by Get when no blob has ever been written under the
// requested key.
var ErrNotFound = crerr.New("blob not found")

// Store is a key to bytes snapshot store. Put overwrites the previous value
// under the key; readers always see the last fully written version.
type Store interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
