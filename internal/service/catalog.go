package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodgram/backend/internal/models"
)

// CatalogService serves the ingredient and tag reference data.
type CatalogService struct {
	db *gorm.DB
}

// NewCatalogService creates a new CatalogService instance
func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// ListTags returns every tag, name ascending.
func (s *CatalogService) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// GetTag retrieves a tag by id.
func (s *CatalogService) GetTag(ctx context.Context, id uuid.UUID) (*models.Tag, error) {
	var tag models.Tag
	if err := s.db.WithContext(ctx).First(&tag, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tag, nil
}

// GetIngredient retrieves an ingredient by id.
func (s *CatalogService) GetIngredient(ctx context.Context, id uuid.UUID) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := s.db.WithContext(ctx).First(&ingredient, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ingredient, nil
}

// SearchIngredients matches ingredient names case-insensitively against the
// query, either as a prefix or anywhere in the name. Prefix matches sort
// before contains-only matches; ties keep the catalog order (name
// ascending). An empty query returns the whole catalog.
func (s *CatalogService) SearchIngredients(ctx context.Context, query string) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&ingredients).Error; err != nil {
		return nil, err
	}
	if query == "" {
		return ingredients, nil
	}

	// Match and rank in Go: SQL LOWER() only folds ASCII on some backends,
	// which would make queries like "Мил" miss lowercase Cyrillic names. The
	// catalog is small reference data, so scanning it here is fine.
	needle := strings.ToLower(query)
	matched := ingredients[:0]
	for _, ingredient := range ingredients {
		if strings.Contains(strings.ToLower(ingredient.Name), needle) {
			matched = append(matched, ingredient)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		pi := strings.HasPrefix(strings.ToLower(matched[i].Name), needle)
		pj := strings.HasPrefix(strings.ToLower(matched[j].Name), needle)
		return pi && !pj
	})

	return matched, nil
}
