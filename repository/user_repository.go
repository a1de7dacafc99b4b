package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"userctl/models"
)

const (
	queryTimeout = 3 * time.Second
	listTimeout  = 5 * time.Second

	// likeEscape escapes LIKE wildcards; '!' needs no quoting in any dialect.
	likeEscape = "!"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u and fills in its generated ID.
// A username or email collision returns ErrDuplicate and nothing is written.
func (r *UserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		u.ID = 0
		return nil, translate(err)
	}
	return u, nil
}

// GetByUsername returns the user with exactly this username, or ErrNotFound.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) All(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var out []models.User
	if err := r.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// Find returns users whose username or email contains query literally.
// An empty query matches every user.
func (r *UserRepository) Find(ctx context.Context, query string) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	pattern := "%" + escapeLike(query) + "%"
	var out []models.User
	err := r.db.WithContext(ctx).
		Where("username LIKE ? ESCAPE '"+likeEscape+"' OR email LIKE ? ESCAPE '"+likeEscape+"'", pattern, pattern).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// Page returns up to limit users after skipping offset, ordered by id.
func (r *UserRepository) Page(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit < 0 || offset < 0 {
		return nil, ErrInvalidPage
	}
	if limit == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var out []models.User
	if err := r.db.WithContext(ctx).Order("id").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// UpdateEmail sets the email of the user with the given username.
// Returns ErrNotFound without writing when the user is absent, and
// ErrDuplicate when the email belongs to someone else.
func (r *UserRepository) UpdateEmail(ctx context.Context, username, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", username).First(&u).Error; err != nil {
			return err
		}
		return tx.Model(&u).Update("email", email).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	u.Email = email
	return &u, nil
}

// DeleteByUsername removes the user with the given username, or returns ErrNotFound.
func (r *UserRepository) DeleteByUsername(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Where("username = ?", username).First(&u).Error; err != nil {
			return err
		}
		return tx.Delete(&u).Error
	})
	return translate(err)
}

var likeReplacer = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

func escapeLike(s string) string {
	return likeReplacer.Replace(s)
}
