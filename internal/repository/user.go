package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/photorestore/restore-server-go/internal/database"
	"github.com/photorestore/restore-server-go/internal/model"
)

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

type userRepo struct {
	db database.DBTX
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE username = $1`, username)
	return HandleNotFound(&user, err)
}
