package repository

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlx.NewDb(sqlDB, "sqlmock"), mock
}

var (
	sessionColumns = []string{"id", "user_id", "session_token", "created_at", "last_accessed"}
	imageColumns   = []string{
		"id", "session_id", "original_filename", "model_id",
		"original_path", "processed_path", "model_params", "created_at",
	}
	userColumns = []string{"id", "username", "email", "password_hash", "role", "is_active", "created_at"}
)
