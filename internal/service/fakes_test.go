package service

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/photorestore/restore-server-go/internal/admission"
	"github.com/photorestore/restore-server-go/internal/model"
	"github.com/photorestore/restore-server-go/internal/reaper"
	"github.com/photorestore/restore-server-go/internal/repository"
	"github.com/photorestore/restore-server-go/internal/storage"
)

// memDB backs the in-memory repositories below. Deleting a session removes
// its images, matching the ON DELETE CASCADE in the schema.
type memDB struct {
	mu          sync.Mutex
	clock       time.Time
	nextSession int64
	nextImage   int64
	sessions    map[int64]*model.Session
	images      map[int64]*model.ProcessedImage
}

func newMemDB() *memDB {
	return &memDB{
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		sessions: make(map[int64]*model.Session),
		images:   make(map[int64]*model.ProcessedImage),
	}
}

func (db *memDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

func (db *memDB) sessionByToken(token string) *model.Session {
	for _, s := range db.sessions {
		if s.SessionToken == token {
			return s
		}
	}
	return nil
}

func (db *memDB) imageCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.images)
}

type memSessionRepo struct{ db *memDB }

func (r *memSessionRepo) Create(ctx context.Context, userID int64, token string) (*model.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.sessionByToken(token) != nil {
		return nil, &pq.Error{Code: "23505"}
	}
	r.db.nextSession++
	now := r.db.tick()
	s := &model.Session{ID: r.db.nextSession, UserID: userID, SessionToken: token, CreatedAt: now, LastAccessed: now}
	r.db.sessions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s := r.db.sessionByToken(token)
	if s == nil {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) Touch(ctx context.Context, token string) (*model.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s := r.db.sessionByToken(token)
	if s == nil {
		return nil, nil
	}
	if now := r.db.tick(); now.After(s.LastAccessed) {
		s.LastAccessed = now
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) DeleteByID(ctx context.Context, id int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.sessions[id]; !ok {
		return 0, nil
	}
	for imgID, img := range r.db.images {
		if img.SessionID == id {
			delete(r.db.images, imgID)
		}
	}
	delete(r.db.sessions, id)
	return 1, nil
}

func (r *memSessionRepo) ListByUserID(ctx context.Context, userID int64) ([]model.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Session
	for _, s := range r.db.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastAccessed.Equal(out[j].LastAccessed) {
			return out[i].ID > out[j].ID
		}
		return out[i].LastAccessed.After(out[j].LastAccessed)
	})
	return out, nil
}

func (r *memSessionRepo) FindInactiveSince(ctx context.Context, cutoff time.Time) ([]model.SessionWithImages, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.SessionWithImages
	for _, s := range r.db.sessions {
		if !s.LastAccessed.Before(cutoff) {
			continue
		}
		swi := model.SessionWithImages{Session: *s}
		for _, img := range r.db.images {
			if img.SessionID == s.ID {
				swi.Images = append(swi.Images, *img)
			}
		}
		out = append(out, swi)
	}
	return out, nil
}

func (r *memSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository { return r }

type memImageRepo struct{ db *memDB }

func (r *memImageRepo) Create(ctx context.Context, p model.CreateProcessedImageParams) (*model.ProcessedImage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.sessions[p.SessionID]; !ok {
		return nil, &pq.Error{Code: "23503"}
	}
	r.db.nextImage++
	img := &model.ProcessedImage{
		ID:               r.db.nextImage,
		SessionID:        p.SessionID,
		OriginalFilename: p.OriginalFilename,
		ModelID:          p.ModelID,
		OriginalPath:     p.OriginalPath,
		ProcessedPath:    p.ProcessedPath,
		ModelParams:      p.ModelParams,
		CreatedAt:        r.db.tick(),
	}
	r.db.images[img.ID] = img
	cp := *img
	return &cp, nil
}

func (r *memImageRepo) FindByIDForUser(ctx context.Context, id, userID int64) (*model.ProcessedImage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	img, ok := r.db.images[id]
	if !ok {
		return nil, nil
	}
	if s := r.db.sessions[img.SessionID]; s == nil || s.UserID != userID {
		return nil, nil
	}
	cp := *img
	return &cp, nil
}

func (r *memImageRepo) filter(keep func(img *model.ProcessedImage, s *model.Session) bool) []model.ProcessedImage {
	var out []model.ProcessedImage
	for _, img := range r.db.images {
		if keep(img, r.db.sessions[img.SessionID]) {
			out = append(out, *img)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func page(items []model.ProcessedImage, limit, offset int) []model.ProcessedImage {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (r *memImageRepo) ListBySessionID(ctx context.Context, sessionID int64) ([]model.ProcessedImage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.filter(func(img *model.ProcessedImage, _ *model.Session) bool {
		return img.SessionID == sessionID
	}), nil
}

func (r *memImageRepo) ListBySessionToken(ctx context.Context, token string, limit, offset int) ([]model.ProcessedImage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return page(r.filter(func(_ *model.ProcessedImage, s *model.Session) bool {
		return s != nil && s.SessionToken == token
	}), limit, offset), nil
}

func (r *memImageRepo) CountBySessionToken(ctx context.Context, token string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.filter(func(_ *model.ProcessedImage, s *model.Session) bool {
		return s != nil && s.SessionToken == token
	})), nil
}

func (r *memImageRepo) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]model.ProcessedImage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return page(r.filter(func(_ *model.ProcessedImage, s *model.Session) bool {
		return s != nil && s.UserID == userID
	}), limit, offset), nil
}

func (r *memImageRepo) CountByUserID(ctx context.Context, userID int64) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.filter(func(_ *model.ProcessedImage, s *model.Session) bool {
		return s != nil && s.UserID == userID
	})), nil
}

func (r *memImageRepo) Delete(ctx context.Context, id int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.images[id]; !ok {
		return 0, nil
	}
	delete(r.db.images, id)
	return 1, nil
}

func (r *memImageRepo) WithTx(tx *sqlx.Tx) repository.ProcessedImageRepository { return r }

type fakeProvider struct {
	fn func(ctx context.Context, modelID string, image []byte) ([]byte, error)
}

func (p *fakeProvider) Restore(ctx context.Context, modelID string, image []byte) ([]byte, error) {
	if p.fn != nil {
		return p.fn(ctx, modelID, image)
	}
	return append([]byte("restored:"), image...), nil
}

// env wires the real services over memDB, a temp-dir artifact store and the
// in-memory admission controller.
type env struct {
	db        *memDB
	sessions  *memSessionRepo
	images    *memImageRepo
	store     *storage.Store
	reaper    *reaper.Reaper
	admission *admission.MemoryController
	provider  *fakeProvider

	sessionSvc *SessionService
	historySvc *HistoryService
	restoreSvc *RestoreService
}

const testUploadLimit = 3

func newEnv(t *testing.T) *env {
	t.Helper()
	base := t.TempDir()
	store, err := storage.NewStore(filepath.Join(base, "originals"), filepath.Join(base, "processed"))
	require.NoError(t, err)

	db := newMemDB()
	e := &env{
		db:        db,
		sessions:  &memSessionRepo{db: db},
		images:    &memImageRepo{db: db},
		store:     store,
		admission: admission.NewMemoryController(),
		provider:  &fakeProvider{},
	}
	e.reaper = reaper.New(e.sessions, store, 24*time.Hour)
	e.sessionSvc = NewSessionService(e.sessions, e.images, e.reaper)
	e.historySvc = NewHistoryService(e.sessions, e.images, e.reaper, store)
	e.restoreSvc = NewRestoreService(
		e.admission, testUploadLimit, e.sessionSvc, e.historySvc, e.provider, store, e.reaper, "gfpgan",
	)
	return e
}

func (e *env) fileExists(t *testing.T, kind model.ArtifactKind, rel string) bool {
	t.Helper()
	abs, err := e.store.Resolve(kind, rel)
	require.NoError(t, err)
	_, err = os.Stat(abs)
	return err == nil
}
