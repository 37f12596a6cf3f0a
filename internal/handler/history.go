package handler

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/model"
	"github.com/photorestore/restore-server-go/internal/service"
	"github.com/photorestore/restore-server-go/internal/util"
)

const (
	scopeSession = "session"
	scopeUser    = "user"
)

type HistoryReader interface {
	List(ctx context.Context, scope model.HistoryScope, limit, offset int) (*service.HistoryPage, error)
	ArtifactPath(ctx context.Context, userID, id int64, kind model.ArtifactKind) (string, error)
	Delete(ctx context.Context, userID, id int64) error
}

type HistoryHandler struct {
	history HistoryReader
}

func NewHistoryHandler(history HistoryReader) *HistoryHandler {
	return &HistoryHandler{history: history}
}

func (h *HistoryHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}/original", h.artifact(model.ArtifactOriginal))
	r.Get("/{id}/processed", h.artifact(model.ArtifactProcessed))
	r.Delete("/{id}", h.Delete)

	return r
}

// GET /v1/history?scope=session|user
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	scopeParam := r.URL.Query().Get("scope")
	if scopeParam == "" {
		scopeParam = scopeSession
	}
	if !util.OneOf(scopeParam, scopeSession, scopeUser) {
		writeError(w, apperrors.InvalidInput("scope", "must be session or user"))
		return
	}

	scope := model.SessionScope(p.SessionToken)
	if scopeParam == scopeUser {
		scope = model.UserScope(p.UserID)
	}

	pagination, err := ParsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.history.List(r.Context(), scope, pagination.Limit, pagination.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// GET /v1/history/{id}/original and /v1/history/{id}/processed
func (h *HistoryHandler) artifact(kind model.ArtifactKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}

		path, err := h.history.ArtifactPath(r.Context(), p.UserID, id, kind)
		if err != nil {
			writeError(w, err)
			return
		}

		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				writeError(w, apperrors.NotFound("Artifact"))
				return
			}
			log.Error().Err(err).Int64("image_id", id).Msg("failed to open artifact")
			writeError(w, apperrors.Storage(err))
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			writeError(w, apperrors.Storage(err))
			return
		}

		w.Header().Set("Cache-Control", "private, no-store")
		http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
	}
}

// DELETE /v1/history/{id}
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.history.Delete(r.Context(), p.UserID, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
