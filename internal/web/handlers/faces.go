package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-registry/internal/assets"
	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/faceapi"
	"github.com/kozaktomas/face-registry/internal/match"
)

// FacesHandler handles the face registration and recognition endpoints.
type FacesHandler struct {
	store    database.FaceStore
	provider faceapi.Provider
	assets   *assets.Store
	matcher  *match.Engine
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(store database.FaceStore, provider faceapi.Provider, assetStore *assets.Store, matcher *match.Engine) *FacesHandler {
	return &FacesHandler{
		store:    store,
		provider: provider,
		assets:   assetStore,
		matcher:  matcher,
	}
}

// faceResponse is the JSON shape of a registered face.
type faceResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	ImagePath        string `json:"image_path"`
	CroppedImagePath string `json:"cropped_image_path"`
}

// readUpload extracts the image bytes of the multipart "file" field.
func readUpload(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("failed to read file")
	}
	return data, nil
}

// List returns all registered faces without embeddings.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.List(r.Context())
	if err != nil {
		respondInternalError(w, "listing faces", err)
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

// Register stores an uploaded single-face image under a name.
//
// The original and cropped assets are written before the database row exists;
// both are discarded on any failure and committed only once the record is
// persisted.
func (h *FacesHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	data, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := assets.ValidateImage(data); err != nil {
		respondError(w, http.StatusBadRequest, "file is not a supported image")
		return
	}

	ctx := r.Context()

	original, err := h.assets.SaveOriginal(name, data)
	if err != nil {
		respondInternalError(w, "saving upload", err)
		return
	}
	defer original.Discard()

	cropped, err := h.provider.Detect(ctx, data)
	if err != nil {
		h.respondDetectError(w, err)
		return
	}

	crop, err := h.assets.SaveCropped(cropped)
	if err != nil {
		respondInternalError(w, "saving cropped face", err)
		return
	}
	defer crop.Discard()

	embedding, err := h.provider.Embed(ctx, cropped)
	if err != nil {
		respondInternalError(w, "computing embedding", err)
		return
	}

	rec, err := h.store.Insert(ctx, name, embedding, original.PublicPath(), crop.PublicPath())
	if err != nil {
		respondInternalError(w, "storing face", err)
		return
	}

	original.Commit()
	crop.Commit()

	respondJSON(w, http.StatusOK, faceResponse{
		ID:               rec.ID,
		Name:             rec.Name,
		ImagePath:        rec.ImagePath,
		CroppedImagePath: rec.CroppedImagePath,
	})
}

// Recognize matches an uploaded single-face image against registered faces.
// The uploaded and cropped images are temporary and never outlive the request.
func (h *FacesHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	data, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := assets.ValidateImage(data); err != nil {
		respondError(w, http.StatusBadRequest, "file is not a supported image")
		return
	}

	ctx := r.Context()

	temp, err := h.assets.SaveTemp(data)
	if err != nil {
		respondInternalError(w, "saving upload", err)
		return
	}
	defer temp.Discard()

	cropped, err := h.provider.Detect(ctx, data)
	if err != nil {
		h.respondDetectError(w, err)
		return
	}

	crop, err := h.assets.SaveCropped(cropped)
	if err != nil {
		respondInternalError(w, "saving cropped face", err)
		return
	}
	defer crop.Discard()

	embedding, err := h.provider.Embed(ctx, cropped)
	if err != nil {
		respondInternalError(w, "computing embedding", err)
		return
	}

	// The embedding is extracted; the temporary assets are no longer needed
	// regardless of how matching turns out.
	if err := temp.Discard(); err != nil {
		log.Printf("discarding temp upload: %v", err)
	}
	if err := crop.Discard(); err != nil {
		log.Printf("discarding temp crop: %v", err)
	}

	records, err := h.store.ListWithEmbeddings(ctx)
	if err != nil {
		respondInternalError(w, "loading known faces", err)
		return
	}

	result, err := h.matcher.Match(embedding, records)
	if errors.Is(err, match.ErrNoKnownFaces) {
		respondError(w, http.StatusNotFound, "no registered faces")
		return
	}
	if err != nil {
		respondInternalError(w, "matching face", err)
		return
	}

	if !result.Matched {
		respondJSON(w, http.StatusOK, map[string]any{
			"matched": false,
			"detail":  "no match found",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"matched":            true,
		"id":                 result.Record.ID,
		"name":               result.Record.Name,
		"image_path":         result.Record.ImagePath,
		"cropped_image_path": result.Record.CroppedImagePath,
		"score":              result.Score,
	})
}

// Delete removes a registered face and its stored images. Asset removal is
// best-effort: a record whose files are already gone still deletes cleanly.
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid face id")
		return
	}

	rec, err := h.store.Delete(r.Context(), id)
	if err != nil {
		respondInternalError(w, "deleting face", err)
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "face not found")
		return
	}

	if err := h.assets.Remove(rec.ImagePath); err != nil {
		log.Printf("removing image asset for face %d: %v", id, err)
	}
	if err := h.assets.Remove(rec.CroppedImagePath); err != nil {
		log.Printf("removing cropped asset for face %d: %v", id, err)
	}

	respondJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

// respondDetectError maps detection outcomes to client or server errors.
func (h *FacesHandler) respondDetectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, faceapi.ErrNoFaceDetected):
		respondError(w, http.StatusBadRequest, "no face detected")
	case errors.Is(err, faceapi.ErrMultipleFacesDetected):
		respondError(w, http.StatusBadRequest, "multiple faces detected")
	default:
		respondInternalError(w, "detecting face", err)
	}
}
