package middleware

import (
	"net/http"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/httputil"
)

const (
	DefaultMaxBodySize = 1 << 20 // 1MB

	// multipartOverhead covers form boundaries and the non-file fields of an
	// upload on top of the image itself.
	multipartOverhead = 64 << 10
)

type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

// NewUploadLimitMiddleware sizes the limit for a multipart upload of at most
// maxImageBytes.
func NewUploadLimitMiddleware(maxImageBytes int64) *BodyLimitMiddleware {
	return NewBodyLimitMiddleware(maxImageBytes + multipartOverhead)
}

func (m *BodyLimitMiddleware) MaxSize() int64 {
	return m.maxSize
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && r.ContentLength > m.maxSize {
			httputil.WriteErrorWithStatus(w, http.StatusRequestEntityTooLarge,
				apperrors.ValidationError("Request body too large"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		next.ServeHTTP(w, r)
	})
}
