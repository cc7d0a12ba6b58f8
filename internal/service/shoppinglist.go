package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShoppingListItem is one aggregated group of the shopping list. Rows are
// grouped by the resolved (name, measurement unit) pair, not by ingredient
// id, so catalog duplicates that render identically collapse into one line.
type ShoppingListItem struct {
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	TotalAmount     int    `json:"total_amount"`
}

// ShoppingListService aggregates ingredient amounts across every recipe in
// a user's cart.
type ShoppingListService struct {
	db *gorm.DB
}

// NewShoppingListService creates a new ShoppingListService instance
func NewShoppingListService(db *gorm.DB) *ShoppingListService {
	return &ShoppingListService{db: db}
}

// BuildShoppingList sums the amounts of every ingredient row belonging to a
// recipe in the user's cart. An empty cart yields an empty slice, not an
// error; the caller decides how to signal it.
func (s *ShoppingListService) BuildShoppingList(ctx context.Context, userID uuid.UUID) ([]ShoppingListItem, error) {
	var items []ShoppingListItem
	err := s.db.WithContext(ctx).
		Table("ingredient_amounts").
		Select("ingredients.name AS name, ingredients.measurement_unit AS measurement_unit, SUM(ingredient_amounts.amount) AS total_amount").
		Joins("JOIN ingredients ON ingredients.id = ingredient_amounts.ingredient_id").
		Joins("JOIN shopping_carts ON shopping_carts.recipe_id = ingredient_amounts.recipe_id").
		Where("shopping_carts.user_id = ?", userID).
		Group("ingredients.name, ingredients.measurement_unit").
		Order("ingredients.name ASC").
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// RenderShoppingList serializes the aggregate as the downloadable plain-text
// document: a header with the username and timestamp, then one line per
// group.
func RenderShoppingList(username string, now time.Time, items []ShoppingListItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shopping list\n\n%s\n%s\n\n", username, now.Format("02/01/2006 15:04"))
	for _, item := range items {
		fmt.Fprintf(&b, "%s - %d, %s\n", item.Name, item.TotalAmount, item.MeasurementUnit)
	}
	return b.String()
}

// ShoppingListFilename names the attachment for a given user.
func ShoppingListFilename(username string) string {
	return fmt.Sprintf("%s_shopping_list.txt", username)
}
