package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"babyofficehours/internal/database"
	"babyofficehours/internal/docstore"
)

// DocumentRepository stores JSON documents in the documents table and
// satisfies docstore.Store for every SQL dialect.
type DocumentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Get retrieves a document body
func (r *DocumentRepository) Get(ctx context.Context, collection, id string) ([]byte, error) {
	return getDocument(ctx, r.db, collection, id, "")
}

// List retrieves all documents in a collection ordered by id
func (r *DocumentRepository) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	return listDocuments(ctx, r.db, collection)
}

// Put creates or replaces a document
func (r *DocumentRepository) Put(ctx context.Context, collection, id string, data []byte) error {
	return putDocument(ctx, r.db, collection, id, data)
}

// Delete removes a document
func (r *DocumentRepository) Delete(ctx context.Context, collection, id string) error {
	return deleteDocument(ctx, r.db, collection, id)
}

// Update runs fn in a database transaction. Reads inside the transaction
// lock the rows they touch where the dialect supports it.
func (r *DocumentRepository) Update(ctx context.Context, fn func(tx docstore.Tx) error) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		return fn(&documentTx{tx: tx})
	})
}

// Close closes the underlying database
func (r *DocumentRepository) Close() error {
	return r.db.Close()
}

type documentTx struct {
	tx *database.Tx
}

func (t *documentTx) Get(ctx context.Context, collection, id string) ([]byte, error) {
	return getDocument(ctx, t.tx, collection, id, t.tx.GetDialect().LockForUpdate())
}

func (t *documentTx) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	return listDocuments(ctx, t.tx, collection)
}

func (t *documentTx) Put(ctx context.Context, collection, id string, data []byte) error {
	return putDocument(ctx, t.tx, collection, id, data)
}

func (t *documentTx) Delete(ctx context.Context, collection, id string) error {
	return deleteDocument(ctx, t.tx, collection, id)
}

func getDocument(ctx context.Context, db database.DBTX, collection, id, lock string) ([]byte, error) {
	query := "SELECT body FROM documents WHERE collection = ? AND id = ?" + lock

	var body string
	err := db.QueryRowContext(ctx, query, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return []byte(body), nil
}

func listDocuments(ctx context.Context, db database.DBTX, collection string) ([]docstore.Document, error) {
	query := "SELECT id, body FROM documents WHERE collection = ? ORDER BY id"

	rows, err := db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, docstore.Document{Collection: collection, ID: id, Data: []byte(body)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	return docs, nil
}

func putDocument(ctx context.Context, db database.DBTX, collection, id string, data []byte) error {
	query := db.GetDialect().UpsertDocument()
	if _, err := db.ExecContext(ctx, query, collection, id, string(data)); err != nil {
		return fmt.Errorf("failed to put document %s/%s: %w", collection, id, err)
	}
	return nil
}

func deleteDocument(ctx context.Context, db database.DBTX, collection, id string) error {
	query := "DELETE FROM documents WHERE collection = ? AND id = ?"
	if _, err := db.ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}
