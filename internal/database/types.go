package database

import (
	"time"
)

// FaceRecord represents a registered face stored in the database.
// Records are immutable after insert; the only mutation is deletion.
type FaceRecord struct {
	ID               int64
	Name             string
	Embedding        []float32
	ImagePath        string // public path of the stored original upload
	CroppedImagePath string // public path of the stored cropped face
	CreatedAt        time.Time
}

// FaceSummary is a FaceRecord without its embedding, as returned by list
// endpoints that don't need the vector.
type FaceSummary struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	ImagePath        string `json:"image_path"`
	CroppedImagePath string `json:"cropped_image_path"`
}

// Summary returns the record's embedding-free view.
func (r *FaceRecord) Summary() FaceSummary {
	return FaceSummary{
		ID:               r.ID,
		Name:             r.Name,
		ImagePath:        r.ImagePath,
		CroppedImagePath: r.CroppedImagePath,
	}
}
