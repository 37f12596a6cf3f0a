// Package reaper garbage-collects sessions that have been inactive longer
// than the configured threshold, removing their artifacts before their rows.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/photorestore/restore-server-go/internal/audit"
	"github.com/photorestore/restore-server-go/internal/model"
)

type SessionStore interface {
	FindInactiveSince(ctx context.Context, cutoff time.Time) ([]model.SessionWithImages, error)
	DeleteByID(ctx context.Context, id int64) (int64, error)
}

type ArtifactStore interface {
	Resolve(kind model.ArtifactKind, relPath string) (string, error)
	SessionDirPath(token string, kind model.ArtifactKind) (string, error)
}

// Result summarises one reaper run.
type Result struct {
	SessionsScanned int
	SessionsDeleted int
	SessionsFailed  int
	FilesDeleted    int
	FilesFailed     int
}

// FileStats counts artifact removals for one session.
type FileStats struct {
	Deleted int
	Failed  int
}

type Reaper struct {
	sessions  SessionStore
	store     ArtifactStore
	threshold time.Duration
	now       func() time.Time
}

func New(sessions SessionStore, store ArtifactStore, threshold time.Duration) *Reaper {
	return &Reaper{
		sessions:  sessions,
		store:     store,
		threshold: threshold,
		now:       time.Now,
	}
}

// RunOnce reaps every session last accessed before now minus the threshold.
// Per-file and per-session failures are logged and counted; the returned
// error is only set when the run could not proceed at all.
func (r *Reaper) RunOnce(ctx context.Context) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("reaper run panicked")
			err = fmt.Errorf("reaper panic: %v", p)
		}
	}()

	cutoff := r.now().Add(-r.threshold)
	sessions, err := r.sessions.FindInactiveSince(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("failed to query inactive sessions")
		return res, err
	}
	res.SessionsScanned = len(sessions)

	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("remaining", len(sessions)-res.SessionsDeleted-res.SessionsFailed).
				Msg("reaper run interrupted")
			return res, err
		}

		stats, err := r.PurgeSession(ctx, s.Session, s.Images)
		res.FilesDeleted += stats.Deleted
		res.FilesFailed += stats.Failed
		if err != nil {
			res.SessionsFailed++
			log.Warn().Err(err).Int64("session_id", s.ID).Str("session_token", s.SessionToken).
				Msg("failed to delete expired session")
			continue
		}

		res.SessionsDeleted++
		audit.Log(ctx, audit.Event{
			Type:         audit.EventSessionReaped,
			UserID:       s.UserID,
			SessionToken: s.SessionToken,
			Details: map[string]interface{}{
				"last_accessed": s.LastAccessed.Format(time.RFC3339),
				"files_deleted": stats.Deleted,
			},
		})
	}

	if res.SessionsScanned > 0 {
		log.Info().
			Int("sessions_scanned", res.SessionsScanned).
			Int("sessions_deleted", res.SessionsDeleted).
			Int("sessions_failed", res.SessionsFailed).
			Int("files_deleted", res.FilesDeleted).
			Int("files_failed", res.FilesFailed).
			Msg("reaped inactive sessions")
	}
	return res, nil
}

// PurgeSession removes every artifact of the session's images, its session
// directories and finally its row. Explicit session deletes use it too.
func (r *Reaper) PurgeSession(ctx context.Context, session model.Session, images []model.ProcessedImage) (FileStats, error) {
	stats := r.PurgeImages(images)
	r.RemoveSessionDirs(session.SessionToken)

	if _, err := r.sessions.DeleteByID(ctx, session.ID); err != nil {
		return stats, fmt.Errorf("delete session %d: %w", session.ID, err)
	}
	return stats, nil
}

// PurgeImages removes the original and processed file of each image.
func (r *Reaper) PurgeImages(images []model.ProcessedImage) FileStats {
	var stats FileStats
	for _, img := range images {
		for _, a := range []struct {
			kind model.ArtifactKind
			path string
		}{
			{model.ArtifactOriginal, img.OriginalPath},
			{model.ArtifactProcessed, img.ProcessedPath},
		} {
			if err := r.RemoveArtifact(a.kind, a.path); err != nil {
				stats.Failed++
				log.Warn().Err(err).Int64("image_id", img.ID).Str("kind", string(a.kind)).
					Str("path", a.path).Msg("failed to delete artifact")
				continue
			}
			stats.Deleted++
		}
	}
	return stats
}

// RemoveArtifact deletes one stored file. An empty path is reported as a
// missing file.
func (r *Reaper) RemoveArtifact(kind model.ArtifactKind, relPath string) error {
	if relPath == "" {
		return &FileDeletionError{Kind: kind, Path: relPath, Err: fs.ErrNotExist}
	}
	abs, err := r.store.Resolve(kind, relPath)
	if err != nil {
		return &FileDeletionError{Kind: kind, Path: relPath, Err: err}
	}
	if err := os.Remove(abs); err != nil {
		return &FileDeletionError{Kind: kind, Path: relPath, Err: err}
	}
	return nil
}

// RemoveSessionDirs drops the per-session directories, which should be empty
// once the images are gone. Failure here is harmless.
func (r *Reaper) RemoveSessionDirs(token string) {
	for _, kind := range []model.ArtifactKind{model.ArtifactOriginal, model.ArtifactProcessed} {
		dir, err := r.store.SessionDirPath(token, kind)
		if err != nil {
			log.Debug().Err(err).Str("session_token", token).Msg("skipping session dir removal")
			continue
		}
		if err := os.RemoveAll(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("dir", dir).Msg("failed to remove session directory")
		}
	}
}

// FileDeletionError reports one artifact that could not be removed. It never
// leaves the reaper.
type FileDeletionError struct {
	Kind model.ArtifactKind
	Path string
	Err  error
}

func (e *FileDeletionError) Error() string {
	return fmt.Sprintf("delete %s artifact %q: %v", e.Kind, e.Path, e.Err)
}

func (e *FileDeletionError) Unwrap() error {
	return e.Err
}
