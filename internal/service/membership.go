package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodgram/backend/internal/models"
)

// MembershipKind selects which (user, recipe) join a toggle operates on.
type MembershipKind string

const (
	MembershipFavorite MembershipKind = "favorite"
	MembershipCart     MembershipKind = "shopping_cart"
)

// MembershipService adds and removes favorite/cart rows. The existence
// checks produce friendly errors, but the correctness guarantee under
// concurrent requests is the composite unique index: a second writer's
// insert is rejected by the storage layer and translated to the same
// Conflict.
type MembershipService struct {
	db *gorm.DB
}

// NewMembershipService creates a new MembershipService instance
func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{db: db}
}

// AddMembership inserts the join row and returns the short recipe
// projection. Fails with Conflict if the pair already exists.
func (s *MembershipService) AddMembership(ctx context.Context, kind MembershipKind, userID, recipeID uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	exists, err := s.exists(ctx, kind, userID, recipeID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &ConflictError{Message: "recipe is already added"}
	}

	err = s.insert(ctx, kind, userID, recipeID)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent request won the race; same outcome as the
			// existence check above.
			return nil, &ConflictError{Message: "recipe is already added"}
		}
		return nil, err
	}

	return &recipe, nil
}

// RemoveMembership deletes the join row. Fails with Conflict if the pair is
// not present; it never succeeds silently.
func (s *MembershipService) RemoveMembership(ctx context.Context, kind MembershipKind, userID, recipeID uuid.UUID) error {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	result := s.delete(ctx, kind, userID, recipeID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &ConflictError{Message: "recipe is not in the list"}
	}
	return nil
}

func (s *MembershipService) exists(ctx context.Context, kind MembershipKind, userID, recipeID uuid.UUID) (bool, error) {
	var count int64
	query := s.db.WithContext(ctx)
	var err error
	switch kind {
	case MembershipCart:
		err = query.Model(&models.ShoppingCart{}).
			Where("user_id = ? AND recipe_id = ?", userID, recipeID).
			Count(&count).Error
	default:
		err = query.Model(&models.Favorite{}).
			Where("user_id = ? AND recipe_id = ?", userID, recipeID).
			Count(&count).Error
	}
	return count > 0, err
}

func (s *MembershipService) insert(ctx context.Context, kind MembershipKind, userID, recipeID uuid.UUID) error {
	if kind == MembershipCart {
		return s.db.WithContext(ctx).Create(&models.ShoppingCart{UserID: userID, RecipeID: recipeID}).Error
	}
	return s.db.WithContext(ctx).Create(&models.Favorite{UserID: userID, RecipeID: recipeID}).Error
}

func (s *MembershipService) delete(ctx context.Context, kind MembershipKind, userID, recipeID uuid.UUID) *gorm.DB {
	if kind == MembershipCart {
		return s.db.WithContext(ctx).
			Where("user_id = ? AND recipe_id = ?", userID, recipeID).
			Delete(&models.ShoppingCart{})
	}
	return s.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(&models.Favorite{})
}
