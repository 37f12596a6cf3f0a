package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/httputil"
	"github.com/photorestore/restore-server-go/internal/middleware"
	"github.com/photorestore/restore-server-go/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// principal returns the authenticated caller, writing a 401 when the route
// was mounted without the auth middleware.
func principal(w http.ResponseWriter, r *http.Request) (*service.Principal, bool) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		writeError(w, apperrors.Unauthorized("Not authenticated"))
		return nil, false
	}
	return p, true
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput(name, "must be a positive integer")
	}
	return id, nil
}
