package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/model"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

type fakeUserRepo struct {
	users map[string]*model.User
	err   error
}

func (f *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[username], nil
}

func newAuthEnv(t *testing.T) (*env, *fakeUserRepo, *AuthService) {
	t.Helper()
	e := newEnv(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	users := &fakeUserRepo{users: map[string]*model.User{
		"alice": {ID: 1, Username: "alice", PasswordHash: string(hash), Role: model.UserRoleUser, IsActive: true},
		"bob":   {ID: 2, Username: "bob", PasswordHash: string(hash), Role: model.UserRoleUser, IsActive: false},
	}}
	return e, users, NewAuthService(users, e.sessionSvc, testSecret, time.Hour)
}

func TestAuthService_Login(t *testing.T) {
	e, _, auth := newAuthEnv(t)
	ctx := context.Background()

	t.Run("creates a session and a bound token", func(t *testing.T) {
		res, err := auth.Login(ctx, "alice", "correct horse")
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, time.Minute)

		s, err := e.sessionSvc.Get(ctx, res.SessionToken, false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), s.UserID)

		p, err := auth.ParseToken(res.Token)
		require.NoError(t, err)
		assert.Equal(t, Principal{UserID: 1, SessionToken: res.SessionToken}, *p)
	})

	t.Run("each login is a new session", func(t *testing.T) {
		a, err := auth.Login(ctx, "alice", "correct horse")
		require.NoError(t, err)
		b, err := auth.Login(ctx, "alice", "correct horse")
		require.NoError(t, err)
		assert.NotEqual(t, a.SessionToken, b.SessionToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := auth.Login(ctx, "alice", "battery staple")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthorized))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := auth.Login(ctx, "mallory", "correct horse")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthorized))
	})

	t.Run("inactive user", func(t *testing.T) {
		_, err := auth.Login(ctx, "bob", "correct horse")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
	})
}

func TestAuthService_Login_DatabaseError(t *testing.T) {
	_, users, auth := newAuthEnv(t)
	users.err = errors.New("db down")

	_, err := auth.Login(context.Background(), "alice", "correct horse")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDatabase))
}

func TestAuthService_ParseToken(t *testing.T) {
	_, _, auth := newAuthEnv(t)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAuthService(nil, nil, "another-secret-that-is-long-enough", time.Hour)
		tok, _, err := other.GenerateToken(1, "tok")
		require.NoError(t, err)

		_, err = auth.ParseToken(tok)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidToken))
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewAuthService(nil, nil, testSecret, -time.Minute)
		tok, _, err := expired.GenerateToken(1, "tok")
		require.NoError(t, err)

		_, err = auth.ParseToken(tok)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidToken))
	})

	t.Run("unsigned token", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			SessionToken:     "tok",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = auth.ParseToken(tok)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidToken))
	})

	t.Run("missing session claim", func(t *testing.T) {
		tok, _, err := auth.GenerateToken(1, "")
		require.NoError(t, err)

		_, err = auth.ParseToken(tok)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidToken))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := auth.ParseToken("not.a.jwt")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidToken))
	})
}
