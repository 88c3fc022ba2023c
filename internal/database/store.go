package database

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when an embedding's length does not match
// the store's configured dimensionality.
var ErrDimensionMismatch = errors.New("embedding dimensionality mismatch")

// FaceStore persists face records. The store is the only shared mutable
// resource in the service; implementations must support concurrent readers
// and concurrent independent writers.
type FaceStore interface {
	// List returns every record without embeddings, ordered by ID.
	List(ctx context.Context) ([]FaceSummary, error)

	// ListWithEmbeddings returns full records including embeddings.
	// An empty store yields an empty slice, not an error.
	ListWithEmbeddings(ctx context.Context) ([]FaceRecord, error)

	// Insert persists a new record and returns it with its assigned ID.
	// The record is visible to subsequent List calls immediately.
	// Embeddings with the wrong dimensionality are rejected with
	// ErrDimensionMismatch.
	Insert(ctx context.Context, name string, embedding []float32, imagePath, croppedImagePath string) (*FaceRecord, error)

	// Delete removes a record by ID and returns it. Returns nil (and no
	// error) when the ID is unknown.
	Delete(ctx context.Context, id int64) (*FaceRecord, error)

	// FindNearest returns the stored record most similar to the query
	// embedding together with its cosine similarity, or nil when no record
	// clears the threshold or the store is empty. Similarity semantics:
	// higher = closer, match iff similarity >= threshold.
	FindNearest(ctx context.Context, embedding []float32, threshold float64) (*FaceRecord, float64, error)
}

// CheckDim validates an embedding's length against the expected
// dimensionality.
func CheckDim(embedding []float32, dim int) error {
	if len(embedding) != dim {
		return fmt.Errorf("%w: got %d components, want %d", ErrDimensionMismatch, len(embedding), dim)
	}
	return nil
}
