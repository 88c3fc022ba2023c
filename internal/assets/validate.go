package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// Image decoders for upload validation.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrNotAnImage is returned when an upload cannot be decoded as an image in
// any supported format.
var ErrNotAnImage = errors.New("file is not a supported image")

// ValidateImage checks that the data decodes as an image without decoding
// the full pixel data.
func ValidateImage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty file", ErrNotAnImage)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	return nil
}
