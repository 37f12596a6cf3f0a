package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/photorestore/restore-server-go/internal/audit"
	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/service"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

func GetPrincipal(ctx context.Context) *service.Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(*service.Principal); ok {
		return p
	}
	return nil
}

// WithPrincipal stores p on ctx the way the auth middleware does.
func WithPrincipal(ctx context.Context, p *service.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// TokenParser turns a bearer token into a principal.
type TokenParser interface {
	ParseToken(token string) (*service.Principal, error)
}

type AuthMiddleware struct {
	parser TokenParser
}

func NewAuthMiddleware(parser TokenParser) *AuthMiddleware {
	return &AuthMiddleware{parser: parser}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		principal, err := m.parser.ParseToken(token)
		if err != nil {
			log.Warn().Err(err).Msg("auth middleware: invalid token attempt")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}
