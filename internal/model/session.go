package model

import (
	"time"
)

type Session struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"userId"`
	SessionToken string    `db:"session_token" json:"sessionToken"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	LastAccessed time.Time `db:"last_accessed" json:"lastAccessed"`
}

// SessionWithImages is a session eagerly loaded with its history rows, as the
// reaper needs both to remove files before the row.
type SessionWithImages struct {
	Session
	Images []ProcessedImage
}
