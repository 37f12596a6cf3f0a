package model

import (
	"encoding/json"
	"time"
)

// ProcessedImage is one history record: a completed restoration whose
// original and processed artifacts are both on disk.
type ProcessedImage struct {
	ID               int64            `db:"id" json:"id"`
	SessionID        int64            `db:"session_id" json:"sessionId"`
	OriginalFilename string           `db:"original_filename" json:"originalFilename"`
	ModelID          string           `db:"model_id" json:"modelId"`
	OriginalPath     string           `db:"original_path" json:"originalPath"`
	ProcessedPath    string           `db:"processed_path" json:"processedPath"`
	ModelParams      *json.RawMessage `db:"model_params" json:"modelParams,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
}

type CreateProcessedImageParams struct {
	SessionID        int64
	OriginalFilename string
	ModelID          string
	OriginalPath     string
	ProcessedPath    string
	ModelParams      *json.RawMessage
}

// AppendHistoryParams is the caller-facing input for a history append; the
// session is resolved from the token.
type AppendHistoryParams struct {
	OriginalFilename string
	ModelID          string
	OriginalPath     string
	ProcessedPath    string
	ModelParams      *json.RawMessage
}

// HistoryScope selects either one session's history or every session owned
// by a user. Exactly one of SessionToken and UserID is set.
type HistoryScope struct {
	SessionToken string
	UserID       int64
}

func SessionScope(token string) HistoryScope {
	return HistoryScope{SessionToken: token}
}

func UserScope(userID int64) HistoryScope {
	return HistoryScope{UserID: userID}
}

func (s HistoryScope) IsSession() bool {
	return s.SessionToken != ""
}
