package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/photorestore/restore-server-go/internal/database"
	"github.com/photorestore/restore-server-go/internal/model"
)

type SessionRepository interface {
	Create(ctx context.Context, userID int64, token string) (*model.Session, error)
	FindByToken(ctx context.Context, token string) (*model.Session, error)
	// Touch advances last_accessed to now and returns the updated row, or nil
	// if the session does not exist. last_accessed never moves backwards.
	Touch(ctx context.Context, token string) (*model.Session, error)
	// DeleteByID removes the session and its history rows in one transaction.
	DeleteByID(ctx context.Context, id int64) (int64, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.Session, error)
	// FindInactiveSince returns sessions last accessed before cutoff together
	// with their history rows.
	FindInactiveSince(ctx context.Context, cutoff time.Time) ([]model.SessionWithImages, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db database.DBTX
	// conn is nil when the repository is bound to a transaction.
	conn *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db, conn: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) Create(ctx context.Context, userID int64, token string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (user_id, session_token, created_at, last_accessed)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING *
	`, userID, token)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &session, nil
}

func (r *sessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE session_token = $1
	`, token)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Touch(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE sessions
		SET last_accessed = GREATEST(last_accessed, NOW())
		WHERE session_token = $1
		RETURNING *
	`, token)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) DeleteByID(ctx context.Context, id int64) (int64, error) {
	var affected int64
	err := r.inTx(ctx, func(db database.DBTX) error {
		if _, err := db.ExecContext(ctx, `DELETE FROM processed_images WHERE session_id = $1`, id); err != nil {
			return fmt.Errorf("delete history rows: %w", err)
		}

		result, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		affected, err = result.RowsAffected()
		return err
	})
	return affected, err
}

func (r *sessionRepo) ListByUserID(ctx context.Context, userID int64) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE user_id = $1
		ORDER BY last_accessed DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (r *sessionRepo) FindInactiveSince(ctx context.Context, cutoff time.Time) ([]model.SessionWithImages, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE last_accessed < $1
		ORDER BY last_accessed ASC, id ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find inactive sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}

	var images []model.ProcessedImage
	err = r.db.SelectContext(ctx, &images, `
		SELECT * FROM processed_images
		WHERE session_id = ANY($1)
		ORDER BY session_id, id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load history for inactive sessions: %w", err)
	}

	bySession := make(map[int64][]model.ProcessedImage, len(sessions))
	for _, img := range images {
		bySession[img.SessionID] = append(bySession[img.SessionID], img)
	}

	result := make([]model.SessionWithImages, len(sessions))
	for i, s := range sessions {
		result[i] = model.SessionWithImages{Session: s, Images: bySession[s.ID]}
	}
	return result, nil
}

// inTx runs fn in a fresh transaction, or directly on the bound transaction
// when the repository was created by WithTx.
func (r *sessionRepo) inTx(ctx context.Context, fn func(db database.DBTX) error) error {
	if r.conn == nil {
		return fn(r.db)
	}
	return database.WithTx(ctx, r.conn, func(tx *sqlx.Tx) error {
		return fn(tx)
	})
}
