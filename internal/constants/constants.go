// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Upload constants
const (
	// MaxUploadSize is the maximum accepted size of an uploaded image in bytes
	MaxUploadSize = 20 << 20 // 20 MiB
)

// Matching constants
const (
	// DefaultMatchThreshold is the default minimum cosine similarity for a
	// recognition match. Higher values = stricter matching.
	DefaultMatchThreshold = 0.5
)

// HNSW index constants
const (
	// HNSWMaxNeighbors is the M parameter of the HNSW graph
	HNSWMaxNeighbors = 16
)
