package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/photorestore/restore-server-go/internal/audit"
	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/model"
	"github.com/photorestore/restore-server-go/internal/reaper"
	"github.com/photorestore/restore-server-go/internal/repository"
)

// SessionPurger removes a session's artifacts and then its row.
type SessionPurger interface {
	PurgeSession(ctx context.Context, session model.Session, images []model.ProcessedImage) (reaper.FileStats, error)
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	imageRepo   repository.ProcessedImageRepository
	purger      SessionPurger
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	imageRepo repository.ProcessedImageRepository,
	purger SessionPurger,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		imageRepo:   imageRepo,
		purger:      purger,
	}
}

// Create starts a new session for userID with a fresh random token.
func (s *SessionService) Create(ctx context.Context, userID int64) (*model.Session, error) {
	token := uuid.New().String()

	session, err := s.sessionRepo.Create(ctx, userID, token)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to create session")
		return nil, apperrors.Persistence("create_session", token, err)
	}

	audit.Log(ctx, audit.Event{
		Type:         audit.EventSessionCreate,
		UserID:       userID,
		SessionToken: token,
	})
	return session, nil
}

// Get looks a session up by token. With touch set, last_accessed is advanced
// in the same statement that reads the row.
func (s *SessionService) Get(ctx context.Context, token string, touch bool) (*model.Session, error) {
	var (
		session *model.Session
		err     error
	)
	if touch {
		session, err = s.sessionRepo.Touch(ctx, token)
	} else {
		session, err = s.sessionRepo.FindByToken(ctx, token)
	}
	if err != nil {
		return nil, apperrors.Persistence("get_session", token, err)
	}
	if session == nil {
		return nil, apperrors.SessionNotFound()
	}
	return session, nil
}

// GetOwned is Get restricted to sessions owned by userID. A session owned by
// someone else is reported as not found.
func (s *SessionService) GetOwned(ctx context.Context, userID int64, token string, touch bool) (*model.Session, error) {
	session, err := s.Get(ctx, token, touch)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, apperrors.SessionNotFound()
	}
	return session, nil
}

// Delete removes one of the user's sessions together with its history rows
// and artifacts. Files are removed before the row.
func (s *SessionService) Delete(ctx context.Context, userID int64, token string) error {
	session, err := s.GetOwned(ctx, userID, token, false)
	if err != nil {
		return err
	}

	images, err := s.imageRepo.ListBySessionID(ctx, session.ID)
	if err != nil {
		return apperrors.Persistence("delete_session", token, err)
	}

	stats, err := s.purger.PurgeSession(ctx, *session, images)
	if err != nil {
		return apperrors.Persistence("delete_session", token, err)
	}

	audit.Log(ctx, audit.Event{
		Type:         audit.EventSessionDelete,
		UserID:       userID,
		SessionToken: token,
		Details: map[string]interface{}{
			"files_deleted": stats.Deleted,
			"files_failed":  stats.Failed,
		},
	})
	return nil
}

// ListForUser returns the user's sessions, most recently used first.
func (s *SessionService) ListForUser(ctx context.Context, userID int64) ([]model.Session, error) {
	sessions, err := s.sessionRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence("list_sessions", "", err)
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}
