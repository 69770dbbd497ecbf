package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rentalhub/rental-backend/internal/common"
	"github.com/rentalhub/rental-backend/internal/domain"
	"github.com/rentalhub/rental-backend/pkg/cache"
	"github.com/rentalhub/rental-backend/pkg/logger"
	"gorm.io/gorm"
)

// UserRepository user data access interface
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id uint64) (*domain.User, error)
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]*domain.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uint64) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, common.ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]*domain.User, error) {
	result := make(map[uint64]*domain.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []*domain.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// cachedUserRepository serves FindByID from Redis before the database
type cachedUserRepository struct {
	UserRepository
	cache cache.Service
}

// NewCachedUserRepository wraps repo with a read-through user cache
func NewCachedUserRepository(repo UserRepository, c cache.Service) UserRepository {
	if c == nil || !c.IsAvailable() {
		return repo
	}
	return &cachedUserRepository{UserRepository: repo, cache: c}
}

func (r *cachedUserRepository) FindByID(ctx context.Context, id uint64) (*domain.User, error) {
	var user domain.User
	if err := r.cache.GetUser(ctx, id, &user); err == nil {
		return &user, nil
	}

	found, err := r.UserRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetUser(ctx, id, found); err != nil {
		logger.GetLogger().Warn().Err(err).Uint64("user_id", id).Msg("user cache write failed")
	}
	return found, nil
}

func (r *cachedUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.UserRepository.Create(ctx, user); err != nil {
		return err
	}
	return r.cache.InvalidateUser(ctx, user.ID)
}
