package faceapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	defaultFaceAPIURL = "http://localhost:8000"
	requestTimeout    = 2 * time.Minute // detection can be GPU-bound and slow
)

// Client implements Provider against the face analysis HTTP API.
type Client struct {
	baseURL  string
	detector string
	model    string
	client   *http.Client
}

var _ Provider = (*Client)(nil)

// NewClient creates a new face API client. The detector backend and embedding
// model names are passed through to the service on every request.
func NewClient(baseURL, detector, model string) *Client {
	if baseURL == "" {
		baseURL = defaultFaceAPIURL
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		detector: detector,
		model:    model,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

// detectResponse represents the response from the detect endpoint.
// Each entry is a base64-encoded JPEG of one aligned face crop.
type detectResponse struct {
	Faces []string `json:"faces"`
}

// representResponse represents the response from the represent endpoint.
type representResponse struct {
	Embedding []float32 `json:"embedding"`
	Dim       int       `json:"dim"`
	Model     string    `json:"model"`
}

// postMultipartImage constructs a multipart form with the image data and an
// extra field, and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint, fieldName, fieldValue string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.WriteField(fieldName, fieldValue); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Detect runs face detection and returns the single cropped face as JPEG
// bytes. Zero detected faces map to ErrNoFaceDetected, more than one to
// ErrMultipleFacesDetected.
func (c *Client) Detect(ctx context.Context, image []byte) ([]byte, error) {
	body, err := c.postMultipartImage(ctx, "/api/v1/detect", "detector_backend", c.detector, image)
	if err != nil {
		return nil, err
	}

	var detResp detectResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	switch len(detResp.Faces) {
	case 0:
		return nil, ErrNoFaceDetected
	case 1:
		// Exactly one face, the only supported case.
	default:
		return nil, ErrMultipleFacesDetected
	}

	cropped, err := base64.StdEncoding.DecodeString(detResp.Faces[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode cropped face: %w", err)
	}
	if len(cropped) == 0 {
		return nil, errors.New("empty cropped face returned")
	}
	return cropped, nil
}

// Embed computes the embedding for a cropped face. The service skips its own
// detection pass since the input is already a face crop.
func (c *Client) Embed(ctx context.Context, cropped []byte) ([]float32, error) {
	body, err := c.postMultipartImage(ctx, "/api/v1/represent", "model_name", c.model, cropped)
	if err != nil {
		return nil, err
	}

	var repResp representResponse
	if err := json.Unmarshal(body, &repResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(repResp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return repResp.Embedding, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
