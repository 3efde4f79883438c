package handlers

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"promoreel/internal/httpkit"
	"promoreel/internal/job"
	"promoreel/internal/pkg/errors"
	"promoreel/internal/staging"
)

const (
	// maxUploadBytes caps the whole multipart submission.
	maxUploadBytes = 300 << 20
	// maxImages caps the number of uploaded frames per submission.
	maxImages = 100
)

type videoResponse struct {
	OK        bool   `json:"ok"`
	ProductID string `json:"productId"`
	Status    string `json:"status"`
	FileURL   string `json:"fileUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GetVideoStatus reports the current lifecycle state of a render job.
func (h *Handler) GetVideoStatus(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	snap, err := h.video.Status(productID)
	if err != nil {
		httpkit.WriteCodedErr(w, err)
		return
	}

	httpkit.WriteJSON(w, 200, snapshotResponse(snap))
}

// PostVideoRender accepts a multipart render submission. Re-submitting a job
// that is already running or done returns the current state unchanged.
func (h *Handler) PostVideoRender(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "invalid multipart form: "+err.Error(), nil)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	productID := r.FormValue("productId")
	if productID == "" {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "productId is required", nil)
		return
	}

	up, err := uploadsFromForm(r)
	if err != nil {
		httpkit.WriteCodedErr(w, err)
		return
	}

	snap, err := h.video.Submit(ctx, productID, up)
	if err != nil {
		log.Warn("render submission rejected",
			"product_id", productID,
			"error", err.Error(),
		)
		httpkit.WriteCodedErr(w, err)
		return
	}

	status := 202
	if snap.Status == job.StatusDone {
		status = 200
	}
	httpkit.WriteJSON(w, status, snapshotResponse(snap))
}

// ServeVideoFile serves the completed artifact from disk.
func (h *Handler) ServeVideoFile(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	path, err := h.video.ArtifactPath(productID)
	if err != nil {
		httpkit.WriteCodedErr(w, err)
		return
	}

	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		httpkit.WriteErr(w, 404, string(errors.CodeNotFound), "video not found: "+productID, nil)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

func uploadsFromForm(r *http.Request) (staging.Uploads, error) {
	var up staging.Uploads
	if r.MultipartForm == nil {
		return up, nil
	}

	if files := r.MultipartForm.File["audio"]; len(files) > 0 {
		if len(files) > 1 {
			return up, errors.ValidationField("audio", "at most one audio file is allowed")
		}
		up.Audio = files[0]
	}
	if files := r.MultipartForm.File["captions"]; len(files) > 0 {
		if len(files) > 1 {
			return up, errors.ValidationField("captions", "at most one captions file is allowed")
		}
		up.Captions = files[0]
	}
	if files := r.MultipartForm.File["images"]; len(files) > 0 {
		if len(files) > maxImages {
			return up, errors.ValidationField("images", "too many images: at most 100 per submission")
		}
		up.Images = files
	}
	return up, nil
}

func snapshotResponse(snap job.Snapshot) videoResponse {
	return videoResponse{
		OK:        true,
		ProductID: snap.ProductID,
		Status:    string(snap.Status),
		FileURL:   snap.FileURL,
		Error:     snap.Error,
	}
}
