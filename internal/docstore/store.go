// Package docstore stores JSON documents grouped into named collections.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// Document is one stored record
type Document struct {
	Collection string
	ID         string
	Data       []byte
}

// Reader reads documents
type Reader interface {
	// Get returns the document body or ErrNotFound
	Get(ctx context.Context, collection, id string) ([]byte, error)
	// List returns every document of a collection ordered by id
	List(ctx context.Context, collection string) ([]Document, error)
}

// Writer writes documents. Put creates or replaces; Delete of a missing
// document is not an error.
type Writer interface {
	Put(ctx context.Context, collection, id string, data []byte) error
	Delete(ctx context.Context, collection, id string) error
}

// Tx is a read-write view that commits only if the callback succeeds
type Tx interface {
	Reader
	Writer
}

// Store is a document database
type Store interface {
	Reader
	Writer
	// Update runs fn in a single transaction. Returning an error rolls back.
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
