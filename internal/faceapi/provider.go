// Package faceapi talks to the external face analysis service that performs
// face detection and embedding extraction with pretrained models. The service
// is a black box to this codebase; everything here is transport.
package faceapi

import (
	"context"
	"errors"
)

// ErrNoFaceDetected is returned when the detector finds no face in the image.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrMultipleFacesDetected is returned when the detector finds more than one
// face. The service supports exactly-one-face images only.
var ErrMultipleFacesDetected = errors.New("multiple faces detected")

// Provider detects faces and computes embeddings. Implementations must return
// ErrNoFaceDetected / ErrMultipleFacesDetected from Detect, and Embed must be
// deterministic for identical input bytes.
type Provider interface {
	// Detect finds exactly one face in the image and returns the cropped
	// face region as JPEG bytes.
	Detect(ctx context.Context, image []byte) ([]byte, error)

	// Embed computes the embedding vector for a cropped face.
	Embed(ctx context.Context, cropped []byte) ([]float32, error)
}
