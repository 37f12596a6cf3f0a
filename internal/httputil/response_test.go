package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
)

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code   apperrors.ErrorCode
		status int
	}{
		{apperrors.ErrCodeValidation, http.StatusBadRequest},
		{apperrors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{apperrors.ErrCodeSessionNotFound, http.StatusNotFound},
		{apperrors.ErrCodeHistoryNotFound, http.StatusNotFound},
		{apperrors.ErrCodeModel, http.StatusUnprocessableEntity},
		{apperrors.ErrCodeAdmissionDenied, http.StatusTooManyRequests},
		{apperrors.ErrCodeRateLimited, http.StatusTooManyRequests},
		{apperrors.ErrCodeExternal, http.StatusBadGateway},
		{apperrors.ErrCodeAdmissionUnavailable, http.StatusServiceUnavailable},
		{apperrors.ErrCodeUpstreamRateLimited, http.StatusServiceUnavailable},
		{apperrors.ErrCodeUpstreamTimeout, http.StatusGatewayTimeout},
		{apperrors.ErrCodeDatabase, http.StatusInternalServerError},
		{apperrors.ErrorCode("SOMETHING_NEW"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.status, StatusFromCode(tc.code))
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("writes AppError with mapped status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.AdmissionDenied(3))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("Retry-After"))

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, apperrors.ErrCodeAdmissionDenied, body.Code)
		assert.NotNil(t, body.Details)
	})

	t.Run("hides persistence details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.Persistence("touch session", "tok", errors.New("db down")))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Nil(t, body.Details)
		assert.NotContains(t, rec.Body.String(), "db down")
	})

	t.Run("wraps unknown errors as internal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("raw"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, apperrors.ErrCodeInternal, body.Code)
	})
}
