// Package store persists diagram documents for the serve wrapper.
//
// A Document holds the DSL source of a diagram plus the most recent
// compiled SVG. The Store interface has three implementations:
//   - memory: in-process map for development and tests
//   - redis: Redis-backed storage for multi-instance deployments
//   - mongo: MongoDB-backed storage with queryable listings
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a stored diagram.
type Document struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Source    string    `json:"source" bson:"source"`
	SVG       string    `json:"svg,omitempty" bson:"svg,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Store is the interface for document storage backends.
type Store interface {
	// Get retrieves a document by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (*Document, error)

	// Put stores a document, overwriting any existing one with the
	// same ID.
	Put(ctx context.Context, doc *Document) error

	// Delete removes a document. Deleting a missing document returns
	// ErrNotFound.
	Delete(ctx context.Context, id string) error

	// List returns all documents ordered by creation time.
	List(ctx context.Context) ([]*Document, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// sortDocuments orders by creation time, then ID for stability.
func sortDocuments(docs []*Document) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
}

// New creates a document with a fresh ID and timestamps.
func New(name, source string) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
