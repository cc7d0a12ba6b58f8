package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodgram/backend/internal/models"
)

// Subscription is one followed author with their recipes and recipe count.
type Subscription struct {
	Author      models.User
	Recipes     []models.Recipe
	RecipeCount int64
}

// FollowService maintains the user -> author subscription graph.
type FollowService struct {
	db *gorm.DB
}

// NewFollowService creates a new FollowService instance
func NewFollowService(db *gorm.DB) *FollowService {
	return &FollowService{db: db}
}

// Follow creates a subscription edge. Self-follows are rejected regardless
// of any other state; duplicate edges fail with Conflict.
func (s *FollowService) Follow(ctx context.Context, userID, authorID uuid.UUID) (*models.User, error) {
	if userID == authorID {
		return nil, &ValidationError{Field: "author", Message: "cannot follow yourself"}
	}

	var author models.User
	if err := s.db.WithContext(ctx).First(&author, "id = ?", authorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &ConflictError{Message: "already following this user"}
	}

	err := s.db.WithContext(ctx).Create(&models.Follow{UserID: userID, AuthorID: authorID}).Error
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &ConflictError{Message: "already following this user"}
		}
		return nil, err
	}

	return &author, nil
}

// Unfollow removes the edge, failing with Conflict when it does not exist.
func (s *FollowService) Unfollow(ctx context.Context, userID, authorID uuid.UUID) error {
	var author models.User
	if err := s.db.WithContext(ctx).First(&author, "id = ?", authorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&models.Follow{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &ConflictError{Message: "not following this user"}
	}
	return nil
}

// IsFollowing reports whether the edge exists.
func (s *FollowService) IsFollowing(ctx context.Context, userID, authorID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&count).Error
	return count > 0, err
}

// ListSubscriptions returns one page of the authors a user follows, each
// with their recipes and recipe count, plus the total number of followed
// authors.
func (s *FollowService) ListSubscriptions(ctx context.Context, userID uuid.UUID, page, limit int) ([]Subscription, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN follows ON follows.author_id = users.id").
		Where("follows.user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}

	var authors []models.User
	if err := query.
		Order("follows.created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&authors).Error; err != nil {
		return nil, 0, err
	}

	subscriptions := make([]Subscription, 0, len(authors))
	for _, author := range authors {
		var recipes []models.Recipe
		if err := s.db.WithContext(ctx).
			Where("author_id = ?", author.ID).
			Order("pub_date DESC").
			Find(&recipes).Error; err != nil {
			return nil, 0, err
		}
		subscriptions = append(subscriptions, Subscription{
			Author:      author,
			Recipes:     recipes,
			RecipeCount: int64(len(recipes)),
		})
	}

	return subscriptions, total, nil
}
