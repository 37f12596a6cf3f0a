package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/photorestore/restore-server-go/internal/database"
	"github.com/photorestore/restore-server-go/internal/model"
)

// ProcessedImageRepository is the history ledger's storage. Listings are
// newest first.
type ProcessedImageRepository interface {
	Create(ctx context.Context, params model.CreateProcessedImageParams) (*model.ProcessedImage, error)
	// FindByIDForUser returns the record only if its session belongs to userID.
	FindByIDForUser(ctx context.Context, id int64, userID int64) (*model.ProcessedImage, error)
	ListBySessionID(ctx context.Context, sessionID int64) ([]model.ProcessedImage, error)
	ListBySessionToken(ctx context.Context, token string, limit, offset int) ([]model.ProcessedImage, error)
	CountBySessionToken(ctx context.Context, token string) (int, error)
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]model.ProcessedImage, error)
	CountByUserID(ctx context.Context, userID int64) (int, error)
	Delete(ctx context.Context, id int64) (int64, error)
	WithTx(tx *sqlx.Tx) ProcessedImageRepository
}

type processedImageRepo struct {
	db database.DBTX
}

func NewProcessedImageRepository(db *sqlx.DB) ProcessedImageRepository {
	return &processedImageRepo{db: db}
}

func (r *processedImageRepo) WithTx(tx *sqlx.Tx) ProcessedImageRepository {
	return &processedImageRepo{db: tx}
}

func (r *processedImageRepo) Create(ctx context.Context, params model.CreateProcessedImageParams) (*model.ProcessedImage, error) {
	var img model.ProcessedImage
	err := r.db.GetContext(ctx, &img, `
		INSERT INTO processed_images
			(session_id, original_filename, model_id, original_path, processed_path, model_params)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.SessionID, params.OriginalFilename, params.ModelID,
		params.OriginalPath, params.ProcessedPath, jsonParam(params.ModelParams))
	if err != nil {
		return nil, fmt.Errorf("insert processed image: %w", err)
	}
	return &img, nil
}

func (r *processedImageRepo) FindByIDForUser(ctx context.Context, id int64, userID int64) (*model.ProcessedImage, error) {
	var img model.ProcessedImage
	err := r.db.GetContext(ctx, &img, `
		SELECT pi.* FROM processed_images pi
		JOIN sessions s ON s.id = pi.session_id
		WHERE pi.id = $1 AND s.user_id = $2
	`, id, userID)
	return HandleNotFound(&img, err)
}

func (r *processedImageRepo) ListBySessionID(ctx context.Context, sessionID int64) ([]model.ProcessedImage, error) {
	var images []model.ProcessedImage
	err := r.db.SelectContext(ctx, &images, `
		SELECT * FROM processed_images
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list history by session: %w", err)
	}
	return images, nil
}

func (r *processedImageRepo) ListBySessionToken(ctx context.Context, token string, limit, offset int) ([]model.ProcessedImage, error) {
	var images []model.ProcessedImage
	err := r.db.SelectContext(ctx, &images, `
		SELECT pi.* FROM processed_images pi
		JOIN sessions s ON s.id = pi.session_id
		WHERE s.session_token = $1
		ORDER BY pi.created_at DESC, pi.id DESC
		LIMIT $2 OFFSET $3
	`, token, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list history by session token: %w", err)
	}
	return images, nil
}

func (r *processedImageRepo) CountBySessionToken(ctx context.Context, token string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM processed_images pi
		JOIN sessions s ON s.id = pi.session_id
		WHERE s.session_token = $1
	`, token)
	if err != nil {
		return 0, fmt.Errorf("count history by session token: %w", err)
	}
	return count, nil
}

func (r *processedImageRepo) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]model.ProcessedImage, error) {
	var images []model.ProcessedImage
	err := r.db.SelectContext(ctx, &images, `
		SELECT pi.* FROM processed_images pi
		JOIN sessions s ON s.id = pi.session_id
		WHERE s.user_id = $1
		ORDER BY pi.created_at DESC, pi.id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list history by user: %w", err)
	}
	return images, nil
}

func (r *processedImageRepo) CountByUserID(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM processed_images pi
		JOIN sessions s ON s.id = pi.session_id
		WHERE s.user_id = $1
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("count history by user: %w", err)
	}
	return count, nil
}

func (r *processedImageRepo) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM processed_images WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete processed image: %w", err)
	}
	return result.RowsAffected()
}

// jsonParam passes JSONB as text; lib/pq would otherwise send []byte as bytea.
func jsonParam(raw *json.RawMessage) interface{} {
	if raw == nil || len(*raw) == 0 {
		return nil
	}
	return string(*raw)
}
