package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/photorestore/restore-server-go/internal/admission"
	"github.com/photorestore/restore-server-go/internal/audit"
	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/inference"
	"github.com/photorestore/restore-server-go/internal/model"
	"github.com/photorestore/restore-server-go/internal/storage"
)

// ArtifactWriter stores artifact bytes under a session namespace.
type ArtifactWriter interface {
	Save(ctx context.Context, token string, kind model.ArtifactKind, name string, data []byte) (string, error)
}

// ArtifactDiscarder removes files of an upload that never made it into
// history.
type ArtifactDiscarder interface {
	RemoveArtifact(kind model.ArtifactKind, relPath string) error
	RemoveSessionDirs(token string)
}

type Upload struct {
	Filename string
	Data     []byte
	ModelID  string
	Params   *json.RawMessage
}

type RestoreService struct {
	admission    admission.Controller
	limit        int
	sessions     *SessionService
	history      *HistoryService
	provider     inference.Provider
	store        ArtifactWriter
	discarder    ArtifactDiscarder
	defaultModel string
}

func NewRestoreService(
	controller admission.Controller,
	limit int,
	sessions *SessionService,
	history *HistoryService,
	provider inference.Provider,
	store ArtifactWriter,
	discarder ArtifactDiscarder,
	defaultModel string,
) *RestoreService {
	return &RestoreService{
		admission:    controller,
		limit:        limit,
		sessions:     sessions,
		history:      history,
		provider:     provider,
		store:        store,
		discarder:    discarder,
		defaultModel: defaultModel,
	}
}

// Process runs one restoration inside an admission slot for the caller's
// session: run the model, store both artifacts, then record history.
func (s *RestoreService) Process(ctx context.Context, p Principal, up Upload) (*model.ProcessedImage, error) {
	if len(up.Data) == 0 {
		return nil, apperrors.MissingRequired("image")
	}
	modelID := up.ModelID
	if modelID == "" {
		modelID = s.defaultModel
	}

	var record *model.ProcessedImage
	err := admission.Guard(ctx, s.admission, p.SessionToken, s.limit, func(ctx context.Context) error {
		if _, err := s.sessions.GetOwned(ctx, p.UserID, p.SessionToken, false); err != nil {
			return err
		}

		restored, err := s.provider.Restore(ctx, modelID, up.Data)
		if err != nil {
			return mapInferenceError(err)
		}

		origPath, err := s.store.Save(ctx, p.SessionToken, model.ArtifactOriginal, storage.OriginalName(up.Filename), up.Data)
		if err != nil {
			return apperrors.Storage(err)
		}
		procPath, err := s.store.Save(ctx, p.SessionToken, model.ArtifactProcessed, storage.ProcessedName(up.Filename), restored)
		if err != nil {
			s.discard(p.SessionToken, origPath, "", false)
			return apperrors.Storage(err)
		}

		record, err = s.history.Append(ctx, p.SessionToken, model.AppendHistoryParams{
			OriginalFilename: up.Filename,
			ModelID:          modelID,
			OriginalPath:     origPath,
			ProcessedPath:    procPath,
			ModelParams:      up.Params,
		})
		if err != nil {
			s.discard(p.SessionToken, origPath, procPath,
				apperrors.IsCode(err, apperrors.ErrCodeSessionNotFound))
			return err
		}
		return nil
	})

	if apperrors.IsCode(err, apperrors.ErrCodeAdmissionDenied) {
		audit.Log(ctx, audit.Event{
			Type:         audit.EventAdmissionDenied,
			UserID:       p.UserID,
			SessionToken: p.SessionToken,
			Details:      map[string]interface{}{"limit": s.limit},
		})
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// discard removes artifacts written for an upload that was not recorded.
// When the session is gone its directories go too, since Save recreated them
// after the purge and no row will ever lead the reaper back to them.
func (s *RestoreService) discard(token, origPath, procPath string, sessionGone bool) {
	for _, a := range []struct {
		kind model.ArtifactKind
		path string
	}{
		{model.ArtifactOriginal, origPath},
		{model.ArtifactProcessed, procPath},
	} {
		if a.path == "" {
			continue
		}
		if err := s.discarder.RemoveArtifact(a.kind, a.path); err != nil {
			log.Warn().Err(err).Str("session_token", token).Msg("failed to discard unrecorded artifact")
		}
	}
	if sessionGone {
		s.discarder.RemoveSessionDirs(token)
	}
	log.Debug().Str("session_token", token).Str("original_path", origPath).Msg("discarded unrecorded artifacts")
}

func mapInferenceError(err error) error {
	switch {
	case errors.Is(err, inference.ErrModel):
		return apperrors.ModelError(err)
	case errors.Is(err, inference.ErrRateLimited):
		return apperrors.UpstreamRateLimited(err)
	case errors.Is(err, inference.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperrors.UpstreamTimeout(err)
	default:
		return apperrors.External("inference", err)
	}
}
