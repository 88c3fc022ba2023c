package database

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-registry/internal/constants"
)

// HNSWIndex wraps an in-memory HNSW graph over stored face embeddings for
// fast nearest-neighbor queries. It mirrors the faces table and must be kept
// in sync by its owner on insert and delete.
type HNSWIndex struct {
	graph    *hnsw.Graph[int64]
	idToFace map[int64]*FaceRecord
	mu       sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToFace: make(map[int64]*FaceRecord),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with the given records.
func (h *HNSWIndex) Build(records []FaceRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(records) == 0 {
		h.graph = nil
		h.idToFace = make(map[int64]*FaceRecord)
		return nil
	}

	g := newGraph()
	h.idToFace = make(map[int64]*FaceRecord, len(records))

	for i := range records {
		rec := &records[i]
		if len(rec.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(rec.ID, rec.Embedding))
		h.idToFace[rec.ID] = rec
	}

	h.graph = g
	return nil
}

// Add inserts a single record into the index.
func (h *HNSWIndex) Add(rec *FaceRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(rec.Embedding) == 0 {
		return
	}
	if h.graph == nil {
		h.graph = newGraph()
	}
	h.graph.Add(hnsw.MakeNode(rec.ID, rec.Embedding))
	h.idToFace[rec.ID] = rec
}

// Delete removes a record from the index.
func (h *HNSWIndex) Delete(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.idToFace, id)
	// HNSW doesn't support true deletion; removing from idToFace effectively
	// removes the record from search results since Nearest filters by lookup.
}

// Nearest returns the indexed record closest to the query embedding together
// with its cosine similarity. Returns nil when the index is empty.
func (h *HNSWIndex) Nearest(query []float32) (*FaceRecord, float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, 0, errors.New("index not initialized")
	}

	// Over-fetch to survive nodes deleted from idToFace but still present
	// in the graph.
	neighbors := h.graph.Search(query, 8)
	for _, n := range neighbors {
		rec, ok := h.idToFace[n.Key]
		if !ok {
			continue
		}
		return rec, CosineSimilarity(query, n.Value), nil
	}
	return nil, 0, nil
}

// Count returns the number of indexed records.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToFace)
}
