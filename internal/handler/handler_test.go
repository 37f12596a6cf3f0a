package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/httputil"
	"github.com/photorestore/restore-server-go/internal/middleware"
	"github.com/photorestore/restore-server-go/internal/model"
	"github.com/photorestore/restore-server-go/internal/service"
)

const (
	testUserID = int64(7)
	testToken  = "0b6f3c1e-8a44-4d0e-9b5b-2f7f1b7f8c11"
)

var testPrincipal = &service.Principal{UserID: testUserID, SessionToken: testToken}

// serve routes req through router with the test principal already
// authenticated.
func serve(router chi.Router, req *http.Request) *httptest.ResponseRecorder {
	req = req.WithContext(middleware.WithPrincipal(req.Context(), testPrincipal))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, body io.Reader) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Login(ctx context.Context, username, password string) (*service.LoginResult, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginResult), args.Error(1)
}

type mockSessionManager struct {
	mock.Mock
}

func (m *mockSessionManager) GetOwned(ctx context.Context, userID int64, token string, touch bool) (*model.Session, error) {
	args := m.Called(ctx, userID, token, touch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionManager) ListForUser(ctx context.Context, userID int64) ([]model.Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionManager) Delete(ctx context.Context, userID int64, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

type mockRestorer struct {
	mock.Mock
}

func (m *mockRestorer) Process(ctx context.Context, p service.Principal, up service.Upload) (*model.ProcessedImage, error) {
	args := m.Called(ctx, p, up)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProcessedImage), args.Error(1)
}

type mockHistoryReader struct {
	mock.Mock
}

func (m *mockHistoryReader) List(ctx context.Context, scope model.HistoryScope, limit, offset int) (*service.HistoryPage, error) {
	args := m.Called(ctx, scope, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.HistoryPage), args.Error(1)
}

func (m *mockHistoryReader) ArtifactPath(ctx context.Context, userID, id int64, kind model.ArtifactKind) (string, error) {
	args := m.Called(ctx, userID, id, kind)
	return args.String(0), args.Error(1)
}

func (m *mockHistoryReader) Delete(ctx context.Context, userID, id int64) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

var errNotFound = apperrors.SessionNotFound()
