package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/model"
	"github.com/photorestore/restore-server-go/internal/util"
)

type SessionManager interface {
	GetOwned(ctx context.Context, userID int64, token string, touch bool) (*model.Session, error)
	ListForUser(ctx context.Context, userID int64) ([]model.Session, error)
	Delete(ctx context.Context, userID int64, token string) error
}

type SessionHandler struct {
	sessions SessionManager
}

func NewSessionHandler(sessions SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/current", h.Current)
	r.Delete("/{sessionToken}", h.Delete)

	return r
}

// GET /v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListForUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// GET /v1/sessions/current
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.GetOwned(r.Context(), p.UserID, p.SessionToken, true)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// DELETE /v1/sessions/{sessionToken}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	token := chi.URLParam(r, "sessionToken")
	if !util.IsSessionToken(token) {
		writeError(w, apperrors.InvalidInput("sessionToken", "must be a UUID"))
		return
	}

	if err := h.sessions.Delete(r.Context(), p.UserID, token); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
