package repository

import (
	"context"

	"userctl/models"
)

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	All(ctx context.Context) ([]models.User, error)
	Find(ctx context.Context, query string) ([]models.User, error)
	Page(ctx context.Context, limit, offset int) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
	UpdateEmail(ctx context.Context, username, email string) (*models.User, error)
	DeleteByUsername(ctx context.Context, username string) error
}

var _ UserRepositoryI = (*UserRepository)(nil)
