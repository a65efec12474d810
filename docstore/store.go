package docstore

import (
	"context"

	"github.com/wippyai/hostbridge/errors"
)

// Document is a JSON object.
type Document = map[string]any

// IDField is the document field that carries a caller-chosen identity.
const IDField = "id"

// Store is a search-engine backed document store. Every method blocks until
// the store has answered. Failures are I/O errors: transport errors carry
// no status, server errors carry the HTTP status (see errors.Status).
type Store interface {
	// CreateIndex creates an index. Creating an existing index fails.
	CreateIndex(ctx context.Context, name string) error

	// DeleteIndex deletes an index. Deleting a missing index succeeds.
	DeleteIndex(ctx context.Context, name string) error

	// Index stores doc under a new store-assigned id and returns that id.
	Index(ctx context.Context, index string, doc Document) (string, error)

	// BulkIndex stores docs in one request. Documents with a string "id"
	// field keep that id; others get a new one.
	BulkIndex(ctx context.Context, index string, docs []Document) error

	// Delete removes one document.
	Delete(ctx context.Context, index, id string) error

	// DeleteAll removes every document of an index, keeping the index.
	DeleteAll(ctx context.Context, index string) error

	// Search returns the source of every document in an index. A missing
	// index yields no documents.
	Search(ctx context.Context, index string) ([]Document, error)
}

// DocumentID returns the caller-chosen id of doc, if any.
func DocumentID(doc Document) (string, bool) {
	id, ok := doc[IDField].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// IsNotFound reports whether err is a server error with status 404.
func IsNotFound(err error) bool {
	status, ok := errors.Status(err)
	return ok && status == 404
}

// IsTransport reports whether err is an I/O error that never reached the
// server.
func IsTransport(err error) bool {
	e, ok := errors.Find(err, errors.KindIO)
	if !ok {
		return false
	}
	_, hasStatus := e.Value.(int)
	return !hasStatus
}
