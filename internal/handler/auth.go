package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/photorestore/restore-server-go/internal/audit"
	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/service"
)

type Authenticator interface {
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
}

type AuthHandler struct {
	auth Authenticator
}

func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", h.Login)

	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.Username == "" {
		writeError(w, apperrors.MissingRequired("username"))
		return
	}
	if req.Password == "" {
		writeError(w, apperrors.MissingRequired("password"))
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventLoginFailure,
			Details: map[string]interface{}{"username": req.Username, "code": apperrors.GetCode(err)},
		})
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:         audit.EventLoginSuccess,
		SessionToken: result.SessionToken,
		Details:      map[string]interface{}{"username": req.Username},
	})
	writeJSON(w, http.StatusOK, result)
}
