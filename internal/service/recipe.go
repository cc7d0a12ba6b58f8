package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodgram/backend/internal/models"
)

// IngredientLine is one (ingredient, amount) pair of a recipe payload.
type IngredientLine struct {
	IngredientID uuid.UUID
	Amount       int
}

// RecipeInput carries the full payload for creating a recipe.
type RecipeInput struct {
	Name        string
	Text        string
	CookingTime int
	Image       string
	Ingredients []IngredientLine
	Tags        []uuid.UUID
}

// RecipeUpdateInput carries a partial update. Nil scalar fields are left
// unchanged. Empty Ingredients/Tags slices also leave the existing
// association untouched; only a non-empty slice replaces it wholesale.
type RecipeUpdateInput struct {
	Name        *string
	Text        *string
	CookingTime *int
	Image       *string
	Ingredients []IngredientLine
	Tags        []uuid.UUID
}

// RecipeFlags are the viewer-relative booleans of a recipe view.
type RecipeFlags struct {
	Favorited        bool
	InCart           bool
	AuthorSubscribed bool
}

// RecipeListFilter selects and pages the recipe list.
type RecipeListFilter struct {
	Author   *uuid.UUID
	TagSlugs []string
	// Favorited and InCart only apply when Viewer is set.
	Favorited bool
	InCart    bool
	Viewer    *uuid.UUID
	Page      int
	Limit     int
}

// RecipeService is the recipe composition engine: it validates and
// atomically persists a recipe together with its ingredient-amount rows and
// tag set.
type RecipeService struct {
	db *gorm.DB
}

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(db *gorm.DB) *RecipeService {
	return &RecipeService{db: db}
}

// validateComposition applies the shared create/update rules to the
// association payload. Each first-violated rule produces one field-scoped
// error and fails the whole operation.
func validateComposition(lines []IngredientLine, tags []uuid.UUID) error {
	if len(lines) == 0 {
		return &ValidationError{Field: "ingredients", Message: "add at least one ingredient"}
	}
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		if _, dup := seen[line.IngredientID]; dup {
			return &ValidationError{Field: "ingredients", Message: "ingredients must be unique"}
		}
		seen[line.IngredientID] = struct{}{}
		if line.Amount < 1 {
			return &ValidationError{Field: "amount", Message: "amount must be greater than or equal to 1"}
		}
	}

	if len(tags) == 0 {
		return &ValidationError{Field: "tags", Message: "choose at least one tag"}
	}
	seenTags := make(map[uuid.UUID]struct{}, len(tags))
	for _, id := range tags {
		if _, dup := seenTags[id]; dup {
			return &ValidationError{Field: "tags", Message: "tags must be unique"}
		}
		seenTags[id] = struct{}{}
	}

	return nil
}

// resolveIngredients checks that every referenced ingredient exists.
func (s *RecipeService) resolveIngredients(tx *gorm.DB, lines []IngredientLine) error {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.IngredientID)
	}
	var count int64
	if err := tx.Model(&models.Ingredient{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return err
	}
	if count != int64(len(ids)) {
		return ErrNotFound
	}
	return nil
}

// resolveTags loads the referenced tags, failing if any id is unknown.
func (s *RecipeService) resolveTags(tx *gorm.DB, ids []uuid.UUID) ([]models.Tag, error) {
	var tags []models.Tag
	if err := tx.Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(ids) {
		return nil, ErrNotFound
	}
	return tags, nil
}

// CreateRecipe validates the payload and persists the recipe, its tag set
// and its ingredient-amount rows in one transaction.
func (s *RecipeService) CreateRecipe(ctx context.Context, authorID uuid.UUID, input RecipeInput) (*models.Recipe, error) {
	if input.CookingTime < 1 {
		return nil, &ValidationError{Field: "cooking_time", Message: "cooking time must be greater than or equal to 1"}
	}
	if err := validateComposition(input.Ingredients, input.Tags); err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		AuthorID:    authorID,
		Name:        input.Name,
		Text:        input.Text,
		Image:       input.Image,
		CookingTime: input.CookingTime,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.resolveIngredients(tx, input.Ingredients); err != nil {
			return err
		}
		tags, err := s.resolveTags(tx, input.Tags)
		if err != nil {
			return err
		}

		if err := tx.Create(&recipe).Error; err != nil {
			return err
		}
		if err := tx.Model(&recipe).Association("Tags").Replace(tags); err != nil {
			return err
		}
		return s.createIngredientAmounts(tx, recipe.ID, input.Ingredients)
	})
	if err != nil {
		return nil, err
	}

	return s.GetRecipe(ctx, recipe.ID)
}

// createIngredientAmounts bulk-inserts one row per ingredient line.
func (s *RecipeService) createIngredientAmounts(tx *gorm.DB, recipeID uuid.UUID, lines []IngredientLine) error {
	rows := make([]models.IngredientAmount, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, models.IngredientAmount{
			RecipeID:     recipeID,
			IngredientID: line.IngredientID,
			Amount:       line.Amount,
		})
	}
	return tx.Create(&rows).Error
}

// UpdateRecipe applies a partial update. Supplied scalar fields are
// replaced; a non-empty tag or ingredient collection replaces the whole
// association, while an empty one leaves it untouched. Author and pub_date
// never change. Only the author or staff may update.
func (s *RecipeService) UpdateRecipe(ctx context.Context, viewerID uuid.UUID, recipeID uuid.UUID, input RecipeUpdateInput) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.checkAuthor(ctx, viewerID, &recipe); err != nil {
		return nil, err
	}

	if input.CookingTime != nil && *input.CookingTime < 1 {
		return nil, &ValidationError{Field: "cooking_time", Message: "cooking time must be greater than or equal to 1"}
	}
	if len(input.Ingredients) > 0 || len(input.Tags) > 0 {
		// The association rules only apply to supplied collections; each
		// one is validated independently of the other.
		if err := validateUpdateComposition(input.Ingredients, input.Tags); err != nil {
			return nil, err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if input.Name != nil {
			updates["name"] = *input.Name
		}
		if input.Text != nil {
			updates["text"] = *input.Text
		}
		if input.CookingTime != nil {
			updates["cooking_time"] = *input.CookingTime
		}
		if input.Image != nil {
			updates["image"] = *input.Image
		}
		if len(updates) > 0 {
			if err := tx.Model(&recipe).Updates(updates).Error; err != nil {
				return err
			}
		}

		if len(input.Tags) > 0 {
			tags, err := s.resolveTags(tx, input.Tags)
			if err != nil {
				return err
			}
			if err := tx.Model(&recipe).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}

		if len(input.Ingredients) > 0 {
			if err := s.resolveIngredients(tx, input.Ingredients); err != nil {
				return err
			}
			if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.IngredientAmount{}).Error; err != nil {
				return err
			}
			if err := s.createIngredientAmounts(tx, recipe.ID, input.Ingredients); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetRecipe(ctx, recipe.ID)
}

// validateUpdateComposition checks only the collections that were supplied.
func validateUpdateComposition(lines []IngredientLine, tags []uuid.UUID) error {
	if len(lines) > 0 {
		seen := make(map[uuid.UUID]struct{}, len(lines))
		for _, line := range lines {
			if _, dup := seen[line.IngredientID]; dup {
				return &ValidationError{Field: "ingredients", Message: "ingredients must be unique"}
			}
			seen[line.IngredientID] = struct{}{}
			if line.Amount < 1 {
				return &ValidationError{Field: "amount", Message: "amount must be greater than or equal to 1"}
			}
		}
	}
	if len(tags) > 0 {
		seenTags := make(map[uuid.UUID]struct{}, len(tags))
		for _, id := range tags {
			if _, dup := seenTags[id]; dup {
				return &ValidationError{Field: "tags", Message: "tags must be unique"}
			}
			seenTags[id] = struct{}{}
		}
	}
	return nil
}

// DeleteRecipe removes a recipe and everything it owns. Only the author or
// staff may delete.
func (s *RecipeService) DeleteRecipe(ctx context.Context, viewerID uuid.UUID, recipeID uuid.UUID) error {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.checkAuthor(ctx, viewerID, &recipe); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.IngredientAmount{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.Favorite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.ShoppingCart{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&recipe).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&recipe).Error
	})
}

// checkAuthor allows the recipe's author and staff users through.
func (s *RecipeService) checkAuthor(ctx context.Context, viewerID uuid.UUID, recipe *models.Recipe) error {
	if recipe.AuthorID == viewerID {
		return nil
	}
	var viewer models.User
	if err := s.db.WithContext(ctx).First(&viewer, "id = ?", viewerID).Error; err != nil {
		return ErrPermissionDenied
	}
	if !viewer.IsStaff {
		return ErrPermissionDenied
	}
	return nil
}

// GetRecipe retrieves a recipe with its author, tags and resolved
// ingredients.
func (s *RecipeService) GetRecipe(ctx context.Context, id uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Tags").
		Preload("Ingredients.Ingredient").
		First(&recipe, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &recipe, nil
}

// ListRecipes returns one page of recipes, newest first, and the total count
// before paging.
func (s *RecipeService) ListRecipes(ctx context.Context, filter RecipeListFilter) ([]models.Recipe, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Recipe{})

	if filter.Author != nil {
		query = query.Where("recipes.author_id = ?", *filter.Author)
	}
	if len(filter.TagSlugs) > 0 {
		// A subquery instead of a join: a recipe carrying several matching
		// tags would otherwise appear once per tag, and deduplicating with
		// DISTINCT breaks COUNT on SQLite.
		query = query.Where("recipes.id IN (?)", s.db.
			Table("recipe_tags").
			Select("recipe_tags.recipe_id").
			Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
			Where("tags.slug IN ?", filter.TagSlugs))
	}
	// Viewer-scoped filters are no-ops for anonymous viewers.
	if filter.Viewer != nil {
		if filter.Favorited {
			query = query.
				Joins("JOIN favorites ON favorites.recipe_id = recipes.id").
				Where("favorites.user_id = ?", *filter.Viewer)
		}
		if filter.InCart {
			query = query.
				Joins("JOIN shopping_carts ON shopping_carts.recipe_id = recipes.id").
				Where("shopping_carts.user_id = ?", *filter.Viewer)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}

	var recipes []models.Recipe
	err := query.
		Preload("Author").
		Preload("Tags").
		Preload("Ingredients.Ingredient").
		Order("recipes.pub_date DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, err
	}

	return recipes, total, nil
}

// DefaultPageSize is the page size used when the client does not ask for one.
const DefaultPageSize = 6

// FlagsFor resolves the viewer-relative booleans for a batch of recipes in
// three queries. A nil viewer gets all-false flags.
func (s *RecipeService) FlagsFor(ctx context.Context, viewer *uuid.UUID, recipes []models.Recipe) (map[uuid.UUID]RecipeFlags, error) {
	flags := make(map[uuid.UUID]RecipeFlags, len(recipes))
	for _, r := range recipes {
		flags[r.ID] = RecipeFlags{}
	}
	if viewer == nil || len(recipes) == 0 {
		return flags, nil
	}

	recipeIDs := make([]uuid.UUID, 0, len(recipes))
	authorIDs := make([]uuid.UUID, 0, len(recipes))
	for _, r := range recipes {
		recipeIDs = append(recipeIDs, r.ID)
		authorIDs = append(authorIDs, r.AuthorID)
	}

	var favorites []models.Favorite
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id IN ?", *viewer, recipeIDs).
		Find(&favorites).Error; err != nil {
		return nil, err
	}
	favorited := make(map[uuid.UUID]bool, len(favorites))
	for _, f := range favorites {
		favorited[f.RecipeID] = true
	}

	var carts []models.ShoppingCart
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id IN ?", *viewer, recipeIDs).
		Find(&carts).Error; err != nil {
		return nil, err
	}
	inCart := make(map[uuid.UUID]bool, len(carts))
	for _, c := range carts {
		inCart[c.RecipeID] = true
	}

	var follows []models.Follow
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND author_id IN ?", *viewer, authorIDs).
		Find(&follows).Error; err != nil {
		return nil, err
	}
	subscribed := make(map[uuid.UUID]bool, len(follows))
	for _, f := range follows {
		subscribed[f.AuthorID] = true
	}

	for _, r := range recipes {
		flags[r.ID] = RecipeFlags{
			Favorited:        favorited[r.ID],
			InCart:           inCart[r.ID],
			AuthorSubscribed: subscribed[r.AuthorID],
		}
	}
	return flags, nil
}
