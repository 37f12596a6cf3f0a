package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/repository"
	"github.com/photorestore/restore-server-go/internal/util"
)

// Principal is the authenticated caller handed to the session core: a user
// and the session the request runs in.
type Principal struct {
	UserID       int64
	SessionToken string
}

// Claims carries the user id in "sub" and the session token in "sid".
type Claims struct {
	SessionToken string `json:"sid"`
	jwt.RegisteredClaims
}

type LoginResult struct {
	Token        string    `json:"token"`
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type AuthService struct {
	userRepo repository.UserRepository
	sessions *SessionService
	secret   []byte
	ttl      time.Duration
}

func NewAuthService(userRepo repository.UserRepository, sessions *SessionService, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		sessions: sessions,
		secret:   []byte(secret),
		ttl:      ttl,
	}
}

// Login verifies credentials, opens a new session and issues a token bound
// to it.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		log.Error().Err(err).Msg("failed to look up user")
		return nil, apperrors.Database(err)
	}
	if user == nil || !util.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.Unauthorized("Invalid username or password")
	}
	if !user.IsActive {
		return nil, apperrors.Forbidden("Account is disabled")
	}

	session, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.GenerateToken(user.ID, session.SessionToken)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token").WithCause(err)
	}

	return &LoginResult{
		Token:        token,
		SessionToken: session.SessionToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *AuthService) GenerateToken(userID int64, sessionToken string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionToken: sessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken validates a bearer token and returns the principal it carries.
func (s *AuthService) ParseToken(tokenString string) (*Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, apperrors.InvalidToken("Invalid or expired token").WithCause(err)
	}
	if !token.Valid {
		return nil, apperrors.InvalidToken("Invalid or expired token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, apperrors.InvalidToken("Invalid token subject").WithCause(fmt.Errorf("subject %q", claims.Subject))
	}
	if claims.SessionToken == "" {
		return nil, apperrors.InvalidToken("Token is not bound to a session")
	}

	return &Principal{UserID: userID, SessionToken: claims.SessionToken}, nil
}
