// Package match implements the in-process face matching engine: cosine
// similarity scoring over stored embeddings with a threshold decision.
package match

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/face-registry/internal/database"
)

// ErrNoKnownFaces is returned when matching against an empty candidate set.
// Callers surface this as a distinct condition from a no-match result.
var ErrNoKnownFaces = errors.New("no registered faces")

// Result is the outcome of matching a query embedding against the stored
// faces. Record is nil when Matched is false.
type Result struct {
	Matched bool
	Record  *database.FaceRecord
	Score   float64
}

// Engine scores query embeddings against candidates using cosine similarity
// (higher = more similar) and declares a match when the best score reaches
// the threshold.
type Engine struct {
	threshold float64
}

// New creates a matching engine with the given similarity threshold.
func New(threshold float64) *Engine {
	return &Engine{threshold: threshold}
}

// Threshold returns the engine's similarity threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Match scores the query embedding against every candidate and applies the
// threshold decision. Exact score ties break to the lowest record ID so the
// outcome is deterministic regardless of candidate order. All candidate
// embeddings must have the query's dimensionality.
func (e *Engine) Match(query []float32, candidates []database.FaceRecord) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, ErrNoKnownFaces
	}

	var best *database.FaceRecord
	bestScore := -2.0

	for i := range candidates {
		c := &candidates[i]
		if len(c.Embedding) != len(query) {
			return Result{}, fmt.Errorf("candidate %d: %w: got %d components, want %d",
				c.ID, database.ErrDimensionMismatch, len(c.Embedding), len(query))
		}

		score := database.CosineSimilarity(query, c.Embedding)
		if score > bestScore || (score == bestScore && best != nil && c.ID < best.ID) {
			best = c
			bestScore = score
		}
	}

	if bestScore < e.threshold {
		return Result{Matched: false, Score: bestScore}, nil
	}
	return Result{Matched: true, Record: best, Score: bestScore}, nil
}
