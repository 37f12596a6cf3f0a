package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/photorestore/restore-server-go/internal/audit"
	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/model"
	"github.com/photorestore/restore-server-go/internal/reaper"
	"github.com/photorestore/restore-server-go/internal/repository"
	"github.com/photorestore/restore-server-go/internal/storage"
)

// ImagePurger removes the artifacts of the given history rows.
type ImagePurger interface {
	PurgeImages(images []model.ProcessedImage) reaper.FileStats
}

// ArtifactResolver maps stored relative paths to files on disk.
type ArtifactResolver interface {
	Resolve(kind model.ArtifactKind, relPath string) (string, error)
}

type HistoryPage struct {
	Items  []model.ProcessedImage `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

type HistoryService struct {
	sessionRepo repository.SessionRepository
	imageRepo   repository.ProcessedImageRepository
	purger      ImagePurger
	resolver    ArtifactResolver
}

func NewHistoryService(
	sessionRepo repository.SessionRepository,
	imageRepo repository.ProcessedImageRepository,
	purger ImagePurger,
	resolver ArtifactResolver,
) *HistoryService {
	return &HistoryService{
		sessionRepo: sessionRepo,
		imageRepo:   imageRepo,
		purger:      purger,
		resolver:    resolver,
	}
}

// Append records one completed restoration for the session and touches it.
// Both artifact paths must live under the session's token.
func (s *HistoryService) Append(ctx context.Context, token string, params model.AppendHistoryParams) (*model.ProcessedImage, error) {
	if !storage.BelongsTo(params.OriginalPath, token) {
		return nil, apperrors.InvalidInput("originalPath", "must be stored under the session")
	}
	if !storage.BelongsTo(params.ProcessedPath, token) {
		return nil, apperrors.InvalidInput("processedPath", "must be stored under the session")
	}

	session, err := s.sessionRepo.Touch(ctx, token)
	if err != nil {
		return nil, apperrors.Persistence("append_history", token, err)
	}
	if session == nil {
		return nil, apperrors.SessionNotFound()
	}

	img, err := s.imageRepo.Create(ctx, model.CreateProcessedImageParams{
		SessionID:        session.ID,
		OriginalFilename: params.OriginalFilename,
		ModelID:          params.ModelID,
		OriginalPath:     params.OriginalPath,
		ProcessedPath:    params.ProcessedPath,
		ModelParams:      params.ModelParams,
	})
	if repository.IsForeignKeyViolation(err) {
		// reaped between the touch and the insert
		return nil, apperrors.SessionNotFound()
	}
	if err != nil {
		return nil, apperrors.Persistence("append_history", token, err)
	}

	log.Debug().Int64("image_id", img.ID).Str("session_token", token).Msg("history appended")
	return img, nil
}

// List returns one page of history, newest first, for a single session or
// for every session of a user.
func (s *HistoryService) List(ctx context.Context, scope model.HistoryScope, limit, offset int) (*HistoryPage, error) {
	var (
		items []model.ProcessedImage
		total int
		err   error
	)

	if scope.IsSession() {
		items, err = s.imageRepo.ListBySessionToken(ctx, scope.SessionToken, limit, offset)
		if err == nil {
			total, err = s.imageRepo.CountBySessionToken(ctx, scope.SessionToken)
		}
	} else {
		items, err = s.imageRepo.ListByUserID(ctx, scope.UserID, limit, offset)
		if err == nil {
			total, err = s.imageRepo.CountByUserID(ctx, scope.UserID)
		}
	}
	if err != nil {
		return nil, apperrors.Persistence("list_history", scope.SessionToken, err)
	}

	if items == nil {
		items = []model.ProcessedImage{}
	}
	return &HistoryPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Get returns a history record if it belongs to one of the user's sessions.
func (s *HistoryService) Get(ctx context.Context, userID, id int64) (*model.ProcessedImage, error) {
	img, err := s.imageRepo.FindByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, apperrors.Persistence("get_history", "", err)
	}
	if img == nil {
		return nil, apperrors.HistoryNotFound()
	}
	return img, nil
}

// ArtifactPath returns the absolute path of one of the record's files.
func (s *HistoryService) ArtifactPath(ctx context.Context, userID, id int64, kind model.ArtifactKind) (string, error) {
	img, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}

	rel := img.OriginalPath
	if kind == model.ArtifactProcessed {
		rel = img.ProcessedPath
	}

	path, err := s.resolver.Resolve(kind, rel)
	if err != nil {
		return "", apperrors.Storage(err)
	}
	return path, nil
}

// Delete removes one history record and its two files, files first.
func (s *HistoryService) Delete(ctx context.Context, userID, id int64) error {
	img, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	stats := s.purger.PurgeImages([]model.ProcessedImage{*img})

	n, err := s.imageRepo.Delete(ctx, id)
	if err != nil {
		return apperrors.Persistence("delete_history", "", err)
	}
	if n == 0 {
		return apperrors.HistoryNotFound()
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventHistoryDelete,
		UserID: userID,
		Details: map[string]interface{}{
			"image_id":      id,
			"files_deleted": stats.Deleted,
		},
	})
	return nil
}
