package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-registry/internal/assets"
	"github.com/kozaktomas/face-registry/internal/database/mock"
	"github.com/kozaktomas/face-registry/internal/match"
)

// testDim keeps test embeddings small and readable.
const testDim = 3

// tinyPNG is a valid 1x1 PNG so uploads pass image validation.
var tinyPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}

// stubProvider is a test double for the face analysis service.
type stubProvider struct {
	cropped   []byte
	embedding []float32
	detectErr error
	embedErr  error
}

func (p *stubProvider) Detect(ctx context.Context, image []byte) ([]byte, error) {
	if p.detectErr != nil {
		return nil, p.detectErr
	}
	return p.cropped, nil
}

func (p *stubProvider) Embed(ctx context.Context, cropped []byte) ([]float32, error) {
	if p.embedErr != nil {
		return nil, p.embedErr
	}
	return p.embedding, nil
}

// newTestHandler wires a FacesHandler against in-memory collaborators.
func newTestHandler(t *testing.T) (*FacesHandler, *mock.FaceStore, *stubProvider, *assets.Store) {
	t.Helper()

	store := mock.NewFaceStore(testDim)
	provider := &stubProvider{
		cropped:   []byte("cropped-face"),
		embedding: []float32{1, 0, 0},
	}
	assetStore, err := assets.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create asset store: %v", err)
	}
	matcher := match.New(0.5)

	return NewFacesHandler(store, provider, assetStore, matcher), store, provider, assetStore
}

// multipartBody builds a multipart form with optional name field and file.
func multipartBody(t *testing.T, name string, file []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if name != "" {
		if err := writer.WriteField("name", name); err != nil {
			t.Fatalf("failed to write name field: %v", err)
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile("file", "upload.png")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(file); err != nil {
			t.Fatalf("failed to write file data: %v", err)
		}
	}
	writer.Close()

	return body, writer.FormDataContentType()
}

// multipartRequest creates a multipart POST request.
func multipartRequest(t *testing.T, path, name string, file []byte) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, name, file)
	req := httptest.NewRequest("POST", path, body)
	req.Header.Set("Content-Type", contentType)
	return req
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message.
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
