package handlers

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/faceapi"
)

func assetCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read asset dir: %v", err)
	}
	return len(entries)
}

// registerFace registers a face through the handler and returns its response.
func registerFace(t *testing.T, handler *FacesHandler, name string, embedding []float32, provider *stubProvider) faceResponse {
	t.Helper()

	provider.embedding = embedding
	req := multipartRequest(t, "/api/face/register", name, tinyPNG)
	recorder := httptest.NewRecorder()
	handler.Register(recorder, req)

	assertStatusCode(t, recorder, 200)
	var resp faceResponse
	parseJSONResponse(t, recorder, &resp)
	return resp
}

func TestList_Empty(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/face", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, 200)
	var faces []database.FaceSummary
	parseJSONResponse(t, recorder, &faces)
	if len(faces) != 0 {
		t.Errorf("expected empty list, got %d faces", len(faces))
	}
}

func TestRegister_Success(t *testing.T) {
	handler, store, provider, assetStore := newTestHandler(t)

	resp := registerFace(t, handler, "alice", []float32{1, 0, 0}, provider)

	if resp.ID == 0 {
		t.Error("expected non-zero id")
	}
	if resp.Name != "alice" {
		t.Errorf("expected name alice, got %q", resp.Name)
	}
	if resp.ImagePath == "" || resp.CroppedImagePath == "" {
		t.Error("expected both asset paths in response")
	}
	if store.Count() != 1 {
		t.Errorf("expected 1 stored face, got %d", store.Count())
	}
	// Original and cropped assets survive a successful registration.
	if n := assetCount(t, assetStore.Dir()); n != 2 {
		t.Errorf("expected 2 committed assets, got %d", n)
	}

	// The record shows up in list immediately.
	req := httptest.NewRequest("GET", "/api/face", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)
	var faces []database.FaceSummary
	parseJSONResponse(t, recorder, &faces)
	if len(faces) != 1 || faces[0].ID != resp.ID {
		t.Errorf("expected registered face in list, got %+v", faces)
	}
}

func TestRegister_MissingName(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	req := multipartRequest(t, "/api/face/register", "", tinyPNG)
	recorder := httptest.NewRecorder()
	handler.Register(recorder, req)

	assertStatusCode(t, recorder, 400)
	assertJSONError(t, recorder, "name is required")
}

func TestRegister_MissingFile(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	req := multipartRequest(t, "/api/face/register", "alice", nil)
	recorder := httptest.NewRecorder()
	handler.Register(recorder, req)

	assertStatusCode(t, recorder, 400)
	assertJSONError(t, recorder, "file is required")
}

func TestRegister_MalformedImage(t *testing.T) {
	handler, _, _, assetStore := newTestHandler(t)

	req := multipartRequest(t, "/api/face/register", "alice", []byte("not an image"))
	recorder := httptest.NewRecorder()
	handler.Register(recorder, req)

	assertStatusCode(t, recorder, 400)
	if n := assetCount(t, assetStore.Dir()); n != 0 {
		t.Errorf("expected no assets for rejected upload, got %d", n)
	}
}

// Zero faces and multiple faces are distinct validation failures, both 400.
func TestRegister_DetectionFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"no face", faceapi.ErrNoFaceDetected, "no face detected"},
		{"multiple faces", faceapi.ErrMultipleFacesDetected, "multiple faces detected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, store, provider, assetStore := newTestHandler(t)
			provider.detectErr = tt.err

			req := multipartRequest(t, "/api/face/register", "alice", tinyPNG)
			recorder := httptest.NewRecorder()
			handler.Register(recorder, req)

			assertStatusCode(t, recorder, 400)
			assertJSONError(t, recorder, tt.message)
			if store.Count() != 0 {
				t.Error("no record must be stored on detection failure")
			}
			// The stored original must be cleaned up.
			if n := assetCount(t, assetStore.Dir()); n != 0 {
				t.Errorf("expected no leftover assets, got %d", n)
			}
		})
	}
}

func TestRegister_EmbedFailureCleansUp(t *testing.T) {
	handler, store, provider, assetStore := newTestHandler(t)
	provider.embedErr = errors.New("model exploded")

	req := multipartRequest(t, "/api/face/register", "alice", tinyPNG)
	recorder := httptest.NewRecorder()
	handler.Register(recorder, req)

	assertStatusCode(t, recorder, 500)
	// Internal detail must not leak to the client.
	assertJSONError(t, recorder, "internal server error")
	if store.Count() != 0 {
		t.Error("no record must be stored on embed failure")
	}
	if n := assetCount(t, assetStore.Dir()); n != 0 {
		t.Errorf("expected original and crop cleaned up, got %d files", n)
	}
}

func TestRegister_RejectsWrongDimension(t *testing.T) {
	handler, store, provider, assetStore := newTestHandler(t)
	// Provider returns an embedding that doesn't match the store's dim.
	provider.embedding = []float32{1, 0, 0, 0, 0}

	req := multipartRequest(t, "/api/face/register", "alice", tinyPNG)
	recorder := httptest.NewRecorder()
	handler.Register(recorder, req)

	assertStatusCode(t, recorder, 500)
	if store.Count() != 0 {
		t.Error("mismatched embedding must not be stored")
	}
	if n := assetCount(t, assetStore.Dir()); n != 0 {
		t.Errorf("expected assets cleaned up, got %d files", n)
	}
}

func TestRecognize_EmptyStore(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	req := multipartRequest(t, "/api/face/recognize", "", tinyPNG)
	recorder := httptest.NewRecorder()
	handler.Recognize(recorder, req)

	// Zero registered faces is a distinct condition from "no match".
	assertStatusCode(t, recorder, 404)
	assertJSONError(t, recorder, "no registered faces")
}

func TestRecognize_Match(t *testing.T) {
	handler, _, provider, assetStore := newTestHandler(t)

	registered := registerFace(t, handler, "alice", []float32{1, 0, 0}, provider)
	persisted := assetCount(t, assetStore.Dir())

	// Same embedding comes back for the query image.
	req := multipartRequest(t, "/api/face/recognize", "", tinyPNG)
	recorder := httptest.NewRecorder()
	handler.Recognize(recorder, req)

	assertStatusCode(t, recorder, 200)
	var resp struct {
		Matched bool    `json:"matched"`
		ID      int64   `json:"id"`
		Name    string  `json:"name"`
		Score   float64 `json:"score"`
	}
	parseJSONResponse(t, recorder, &resp)
	if !resp.Matched {
		t.Fatal("expected a match")
	}
	if resp.ID != registered.ID {
		t.Errorf("expected id %d, got %d", registered.ID, resp.ID)
	}
	if resp.Score < 0.5 {
		t.Errorf("expected score >= 0.5, got %f", resp.Score)
	}

	// Recognition must not persist any asset.
	if n := assetCount(t, assetStore.Dir()); n != persisted {
		t.Errorf("expected %d assets after recognition, got %d", persisted, n)
	}
}

func TestRecognize_NoMatch(t *testing.T) {
	handler, _, provider, _ := newTestHandler(t)

	registerFace(t, handler, "alice", []float32{1, 0, 0}, provider)

	// Orthogonal query embedding: similarity 0, below threshold.
	provider.embedding = []float32{0, 1, 0}
	req := multipartRequest(t, "/api/face/recognize", "", tinyPNG)
	recorder := httptest.NewRecorder()
	handler.Recognize(recorder, req)

	assertStatusCode(t, recorder, 200)
	var resp struct {
		Matched bool   `json:"matched"`
		Detail  string `json:"detail"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Matched {
		t.Error("expected no match for orthogonal embedding")
	}
	if resp.Detail == "" {
		t.Error("expected a detail message on no-match")
	}
}

func TestRecognize_DetectionFailure(t *testing.T) {
	handler, _, provider, assetStore := newTestHandler(t)
	provider.detectErr = faceapi.ErrNoFaceDetected

	req := multipartRequest(t, "/api/face/recognize", "", tinyPNG)
	recorder := httptest.NewRecorder()
	handler.Recognize(recorder, req)

	assertStatusCode(t, recorder, 400)
	// The temporary upload must not leak.
	if n := assetCount(t, assetStore.Dir()); n != 0 {
		t.Errorf("expected no leftover assets, got %d", n)
	}
}

func TestDelete_Success(t *testing.T) {
	handler, _, provider, assetStore := newTestHandler(t)

	registered := registerFace(t, handler, "alice", []float32{1, 0, 0}, provider)

	req := requestWithChiParams(
		httptest.NewRequest("DELETE", "/api/face/1", nil),
		map[string]string{"id": "1"},
	)
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, 200)
	var resp map[string]int64
	parseJSONResponse(t, recorder, &resp)
	if resp["deleted"] != registered.ID {
		t.Errorf("expected deleted id %d, got %d", registered.ID, resp["deleted"])
	}
	// Both assets are removed with the record.
	if n := assetCount(t, assetStore.Dir()); n != 0 {
		t.Errorf("expected assets removed, got %d files", n)
	}

	// The record is gone from list.
	listReq := httptest.NewRequest("GET", "/api/face", nil)
	listRec := httptest.NewRecorder()
	handler.List(listRec, listReq)
	var faces []database.FaceSummary
	parseJSONResponse(t, listRec, &faces)
	if len(faces) != 0 {
		t.Errorf("expected empty list after delete, got %d faces", len(faces))
	}

	// Deleting the same id again reports not found.
	recorder = httptest.NewRecorder()
	handler.Delete(recorder, requestWithChiParams(
		httptest.NewRequest("DELETE", "/api/face/1", nil),
		map[string]string{"id": "1"},
	))
	assertStatusCode(t, recorder, 404)
}

// Deleting a record whose assets are already missing still succeeds.
func TestDelete_MissingAssets(t *testing.T) {
	handler, _, provider, assetStore := newTestHandler(t)

	registerFace(t, handler, "alice", []float32{1, 0, 0}, provider)

	// Remove the files behind the store's back.
	entries, err := os.ReadDir(assetStore.Dir())
	if err != nil {
		t.Fatalf("failed to read asset dir: %v", err)
	}
	for _, e := range entries {
		if err := os.Remove(assetStore.Dir() + "/" + e.Name()); err != nil {
			t.Fatalf("failed to remove asset: %v", err)
		}
	}

	req := requestWithChiParams(
		httptest.NewRequest("DELETE", "/api/face/1", nil),
		map[string]string{"id": "1"},
	)
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, 200)
}

func TestDelete_InvalidID(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	req := requestWithChiParams(
		httptest.NewRequest("DELETE", "/api/face/abc", nil),
		map[string]string{"id": "abc"},
	)
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, 400)
}

func TestList_StoreError(t *testing.T) {
	handler, store, _, _ := newTestHandler(t)
	store.ListError = errors.New("connection lost")

	req := httptest.NewRequest("GET", "/api/face", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, 500)
	assertJSONError(t, recorder, "internal server error")
}

// Provider contract sanity for the test double: identical input yields an
// identical embedding, so registering and recognizing the same image matches.
func TestProviderDeterminismRoundTrip(t *testing.T) {
	handler, _, provider, _ := newTestHandler(t)

	ctx := context.Background()
	emb1, err := provider.Embed(ctx, []byte("same-bytes"))
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	emb2, err := provider.Embed(ctx, []byte("same-bytes"))
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i := range emb1 {
		if emb1[i] != emb2[i] {
			t.Fatal("expected deterministic embeddings")
		}
	}

	registered := registerFace(t, handler, "alice", []float32{1, 0, 0}, provider)

	req := multipartRequest(t, "/api/face/recognize", "", tinyPNG)
	recorder := httptest.NewRecorder()
	handler.Recognize(recorder, req)

	assertStatusCode(t, recorder, 200)
	var resp struct {
		Matched bool  `json:"matched"`
		ID      int64 `json:"id"`
	}
	parseJSONResponse(t, recorder, &resp)
	if !resp.Matched || resp.ID != registered.ID {
		t.Errorf("expected round-trip match on id %d, got %+v", registered.ID, resp)
	}
}
