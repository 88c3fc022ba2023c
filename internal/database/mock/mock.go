// Package mock provides an in-memory implementation of database.FaceStore
// for testing.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/face-registry/internal/database"
)

// FaceStore is an in-memory mock implementation of database.FaceStore.
type FaceStore struct {
	mu     sync.RWMutex
	dim    int
	nextID int64
	faces  map[int64]database.FaceRecord

	// Error injection
	ListError        error
	InsertError      error
	DeleteError      error
	FindNearestError error
}

// NewFaceStore creates a new mock face store with the given embedding
// dimensionality.
func NewFaceStore(dim int) *FaceStore {
	return &FaceStore{
		dim:    dim,
		nextID: 1,
		faces:  make(map[int64]database.FaceRecord),
	}
}

// List returns every record without embeddings.
func (m *FaceStore) List(ctx context.Context) ([]database.FaceSummary, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]database.FaceSummary, 0, len(m.faces))
	for _, rec := range m.faces {
		summaries = append(summaries, rec.Summary())
	}
	slices.SortFunc(summaries, func(a, b database.FaceSummary) int {
		return int(a.ID - b.ID)
	})
	return summaries, nil
}

// ListWithEmbeddings returns full records including embeddings.
func (m *FaceStore) ListWithEmbeddings(ctx context.Context) ([]database.FaceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]database.FaceRecord, 0, len(m.faces))
	for _, rec := range m.faces {
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b database.FaceRecord) int {
		return int(a.ID - b.ID)
	})
	return records, nil
}

// Insert adds a new record and assigns it the next ID.
func (m *FaceStore) Insert(ctx context.Context, name string, embedding []float32, imagePath, croppedImagePath string) (*database.FaceRecord, error) {
	if m.InsertError != nil {
		return nil, m.InsertError
	}
	if err := database.CheckDim(embedding, m.dim); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := database.FaceRecord{
		ID:               m.nextID,
		Name:             name,
		Embedding:        append([]float32(nil), embedding...),
		ImagePath:        imagePath,
		CroppedImagePath: croppedImagePath,
	}
	m.faces[rec.ID] = rec
	m.nextID++
	return &rec, nil
}

// Delete removes a record by ID, returning nil when the ID is unknown.
func (m *FaceStore) Delete(ctx context.Context, id int64) (*database.FaceRecord, error) {
	if m.DeleteError != nil {
		return nil, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.faces[id]
	if !ok {
		return nil, nil
	}
	delete(m.faces, id)
	return &rec, nil
}

// FindNearest scans all records for the highest cosine similarity, breaking
// exact ties by lowest ID.
func (m *FaceStore) FindNearest(ctx context.Context, embedding []float32, threshold float64) (*database.FaceRecord, float64, error) {
	if m.FindNearestError != nil {
		return nil, 0, m.FindNearestError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *database.FaceRecord
	bestScore := -2.0
	for id := range m.faces {
		rec := m.faces[id]
		score := database.CosineSimilarity(embedding, rec.Embedding)
		if score > bestScore || (score == bestScore && best != nil && rec.ID < best.ID) {
			best = &rec
			bestScore = score
		}
	}

	if best == nil || bestScore < threshold {
		return nil, 0, nil
	}
	return best, bestScore, nil
}

// Count returns the number of stored records.
func (m *FaceStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.faces)
}
