// Package storage defines the normalized persistence layer for a single shard.
//
// A shard stores namespaces, documents, content rows and vectors. Every
// content row belongs to one document and every document to one namespace.
// Parents carry reference counters (namespaces.document_count and
// documents.content_count) and are removed when their counter reaches zero.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

const (
	// DefaultNamespace is used when a caller does not name a namespace.
	DefaultNamespace = "default"

	// LegacyOwner owns namespaces imported from the flat legacy table, which
	// has no notion of ownership.
	LegacyOwner = ""
)

// Driver persists one shard. All reads and writes go through a transaction.
type Driver interface {
	// Update runs fn in a read-write transaction. The transaction commits if
	// fn returns nil and rolls back otherwise.
	Update(ctx context.Context, fn func(Tx) error) error

	// View runs fn in a transaction that is always rolled back.
	View(ctx context.Context, fn func(Tx) error) error

	// Close releases the underlying database handle.
	Close() error
}

// Tx exposes the schema operations available inside a transaction.
type Tx interface {
	// EnsureNamespace creates the (name, owner) namespace if it is missing and
	// returns its id. An empty name resolves to DefaultNamespace.
	EnsureNamespace(ctx context.Context, name, ownerID string) (string, error)

	// EnsureDocument returns the document a content row should attach to.
	// With a ParentID set it verifies the parent exists and returns its id.
	// Otherwise it creates or updates the document with the given ID,
	// moving it between namespaces if needed.
	EnsureDocument(ctx context.Context, in DocumentInput) (string, error)

	// InsertContentAndVector upserts a content row and its vector. Re-inserting
	// an existing id replaces its payload; moving it to another document keeps
	// both documents' counters correct.
	InsertContentAndVector(ctx context.Context, in ContentInput) error

	// DeleteVector removes a vector and its content row, cascading to the
	// owning document and namespace when their counters reach zero. Deleting
	// an unknown id is a no-op.
	DeleteVector(ctx context.Context, id string) error

	// DeleteDocument removes every content row of a document, then the
	// document itself.
	DeleteDocument(ctx context.Context, id string) error

	// GetVector returns the vector stored under id or ErrNotFound.
	GetVector(ctx context.Context, id string) (*VectorRow, error)

	// GetDocument returns the document stored under id or ErrNotFound.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// GetAllVectors returns every vector in the shard.
	GetAllVectors(ctx context.Context) ([]VectorRow, error)

	// GetVectorsByNamespace returns the vectors in every namespace with the
	// given name, regardless of owner. An empty name resolves to
	// DefaultNamespace.
	GetVectorsByNamespace(ctx context.Context, name string) ([]VectorRow, error)

	// GetContentIDs returns the content ids attached to a document, chunks
	// first in chunk order.
	GetContentIDs(ctx context.Context, documentID string) ([]string, error)

	// DeleteAll empties every table in the shard.
	DeleteAll(ctx context.Context) error
}

// NamespaceID derives the stable id of the (name, owner) namespace.
func NamespaceID(name, ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID + "\x00" + name))
	return hex.EncodeToString(sum[:])
}
