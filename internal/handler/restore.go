package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/httputil"
	"github.com/photorestore/restore-server-go/internal/model"
	"github.com/photorestore/restore-server-go/internal/service"
)

// multipartMemory is how much of a form ParseMultipartForm keeps in memory
// before spilling file parts to temp files.
const multipartMemory = 8 << 20

type Restorer interface {
	Process(ctx context.Context, p service.Principal, up service.Upload) (*model.ProcessedImage, error)
}

type RestoreHandler struct {
	restorer      Restorer
	maxImageBytes int64
}

func NewRestoreHandler(restorer Restorer, maxImageBytes int64) *RestoreHandler {
	return &RestoreHandler{restorer: restorer, maxImageBytes: maxImageBytes}
}

func (h *RestoreHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Restore)

	return r
}

// POST /v1/restore
func (h *RestoreHandler) Restore(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.tooLarge(w)
			return
		}
		writeError(w, apperrors.ValidationError("Invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, apperrors.MissingRequired("image"))
		return
	}
	defer file.Close()

	if header.Size > h.maxImageBytes {
		h.tooLarge(w)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		writeError(w, apperrors.ValidationError("Failed to read image"))
		return
	}
	if int64(len(data)) > h.maxImageBytes {
		h.tooLarge(w)
		return
	}

	up := service.Upload{
		Filename: header.Filename,
		Data:     data,
		ModelID:  r.FormValue("model"),
	}
	if raw := r.FormValue("params"); raw != "" {
		if !json.Valid([]byte(raw)) {
			writeError(w, apperrors.InvalidInput("params", "must be valid JSON"))
			return
		}
		params := json.RawMessage(raw)
		up.Params = &params
	}

	record, err := h.restorer.Process(r.Context(), *p, up)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

func (h *RestoreHandler) tooLarge(w http.ResponseWriter) {
	httputil.WriteErrorWithStatus(w, http.StatusRequestEntityTooLarge,
		apperrors.ValidationError("Image too large").WithDetails(map[string]int64{"maxBytes": h.maxImageBytes}))
}
