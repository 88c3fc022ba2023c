package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-registry/internal/database"
)

// FaceRepository provides PostgreSQL-backed face storage with an optional
// in-memory HNSW index for nearest-neighbor queries. It implements
// database.FaceStore.
type FaceRepository struct {
	pool        *Pool
	dim         int
	hnswIndex   *database.HNSWIndex
	hnswEnabled bool
	hnswMu      sync.RWMutex
}

var _ database.FaceStore = (*FaceRepository)(nil)

// NewFaceRepository creates a new PostgreSQL face repository enforcing the
// given embedding dimensionality.
func NewFaceRepository(pool *Pool, dim int) *FaceRepository {
	return &FaceRepository{pool: pool, dim: dim}
}

// List retrieves every face record without embeddings.
func (r *FaceRepository) List(ctx context.Context) ([]database.FaceSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, image_path, cropped_image_path
		FROM faces
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	summaries := make([]database.FaceSummary, 0)
	for rows.Next() {
		var s database.FaceSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.ImagePath, &s.CroppedImagePath); err != nil {
			return nil, fmt.Errorf("scan face summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return summaries, nil
}

// ListWithEmbeddings retrieves full face records including embeddings.
// An empty table yields an empty slice.
func (r *FaceRepository) ListWithEmbeddings(ctx context.Context) ([]database.FaceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, embedding, image_path, cropped_image_path, created_at
		FROM faces
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	return scanFaces(rows)
}

// Insert persists a new face record and returns it with its assigned ID.
func (r *FaceRepository) Insert(ctx context.Context, name string, embedding []float32, imagePath, croppedImagePath string) (*database.FaceRecord, error) {
	if name == "" {
		return nil, errors.New("name must not be empty")
	}
	if err := database.CheckDim(embedding, r.dim); err != nil {
		return nil, err
	}

	rec := database.FaceRecord{
		Name:             name,
		Embedding:        embedding,
		ImagePath:        imagePath,
		CroppedImagePath: croppedImagePath,
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO faces (name, embedding, image_path, cropped_image_path)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, name, pgvector.NewVector(embedding), imagePath, croppedImagePath).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert face: %w", err)
	}

	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		r.hnswIndex.Add(&rec)
	}
	r.hnswMu.RUnlock()

	return &rec, nil
}

// Delete removes a face record by ID and returns it. Returns nil when the ID
// is unknown.
func (r *FaceRepository) Delete(ctx context.Context, id int64) (*database.FaceRecord, error) {
	var rec database.FaceRecord
	var vec pgvector.Vector

	err := r.pool.QueryRow(ctx, `
		DELETE FROM faces
		WHERE id = $1
		RETURNING id, name, embedding, image_path, cropped_image_path, created_at
	`, id).Scan(&rec.ID, &rec.Name, &vec, &rec.ImagePath, &rec.CroppedImagePath, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete face: %w", err)
	}
	rec.Embedding = vec.Slice()

	r.hnswMu.RLock()
	if r.hnswEnabled && r.hnswIndex != nil {
		r.hnswIndex.Delete(rec.ID)
	}
	r.hnswMu.RUnlock()

	return &rec, nil
}

// FindNearest returns the stored record most similar to the query embedding
// together with its cosine similarity, or nil when no record clears the
// threshold. Uses the in-memory HNSW index when enabled, otherwise pgvector's
// cosine distance operator. Both paths report similarity (higher = closer);
// the <=> distance is converted via similarity = 1 - distance before the
// threshold comparison.
func (r *FaceRepository) FindNearest(ctx context.Context, embedding []float32, threshold float64) (*database.FaceRecord, float64, error) {
	if err := database.CheckDim(embedding, r.dim); err != nil {
		return nil, 0, err
	}

	r.hnswMu.RLock()
	hnswEnabled := r.hnswEnabled && r.hnswIndex != nil
	r.hnswMu.RUnlock()

	if hnswEnabled {
		return r.findNearestHNSW(embedding, threshold)
	}
	return r.findNearestPostgres(ctx, embedding, threshold)
}

// findNearestHNSW serves the nearest-neighbor query from the in-memory index.
func (r *FaceRepository) findNearestHNSW(embedding []float32, threshold float64) (*database.FaceRecord, float64, error) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndex.Count() == 0 {
		return nil, 0, nil
	}

	rec, similarity, err := r.hnswIndex.Nearest(embedding)
	if err != nil {
		return nil, 0, fmt.Errorf("HNSW search: %w", err)
	}
	if rec == nil || similarity < threshold {
		return nil, 0, nil
	}
	return rec, similarity, nil
}

// findNearestPostgres serves the nearest-neighbor query with pgvector.
func (r *FaceRepository) findNearestPostgres(ctx context.Context, embedding []float32, threshold float64) (*database.FaceRecord, float64, error) {
	var rec database.FaceRecord
	var vec pgvector.Vector
	var distance float64

	err := r.pool.QueryRow(ctx, `
		SELECT id, name, embedding, image_path, cropped_image_path, created_at,
		       embedding <=> $1::vector AS distance
		FROM faces
		ORDER BY embedding <=> $1::vector, id
		LIMIT 1
	`, pgvector.NewVector(embedding)).Scan(
		&rec.ID, &rec.Name, &vec, &rec.ImagePath, &rec.CroppedImagePath, &rec.CreatedAt, &distance,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("query nearest face: %w", err)
	}
	rec.Embedding = vec.Slice()

	similarity := 1 - distance
	if similarity < threshold {
		return nil, 0, nil
	}
	return &rec, similarity, nil
}

// EnableHNSW builds the in-memory HNSW index from the current table contents
// and routes subsequent FindNearest calls through it.
func (r *FaceRepository) EnableHNSW(ctx context.Context) error {
	records, err := r.ListWithEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("load faces for index: %w", err)
	}

	idx := database.NewHNSWIndex()
	if err := idx.Build(records); err != nil {
		return fmt.Errorf("build HNSW index: %w", err)
	}

	r.hnswMu.Lock()
	r.hnswIndex = idx
	r.hnswEnabled = true
	r.hnswMu.Unlock()

	return nil
}

// HNSWCount returns the number of faces in the in-memory index.
func (r *FaceRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

// Count returns the total number of faces stored.
func (r *FaceRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM faces").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

// scanFaces scans face rows including embeddings.
func scanFaces(rows *sql.Rows) ([]database.FaceRecord, error) {
	records := make([]database.FaceRecord, 0)
	for rows.Next() {
		var rec database.FaceRecord
		var vec pgvector.Vector
		if err := rows.Scan(
			&rec.ID, &rec.Name, &vec, &rec.ImagePath, &rec.CroppedImagePath, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		rec.Embedding = vec.Slice()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return records, nil
}
