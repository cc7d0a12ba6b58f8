package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodgram/backend/internal/models"
)

func TestCreateRecipe(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRecipeService(db)
	ctx := context.Background()

	author := createTestUser(t, db, "chef")
	flour := createTestIngredient(t, db, "flour", "g")
	milk := createTestIngredient(t, db, "milk", "ml")
	breakfast := createTestTag(t, db, "Breakfast", "#E26C2D", "breakfast")
	dinner := createTestTag(t, db, "Dinner", "#49B64E", "dinner")

	recipe, err := svc.CreateRecipe(ctx, author.ID, RecipeInput{
		Name:        "Pancakes",
		Text:        "Mix and fry.",
		CookingTime: 15,
		Ingredients: []IngredientLine{
			{IngredientID: flour.ID, Amount: 200},
			{IngredientID: milk.ID, Amount: 300},
		},
		Tags: []uuid.UUID{breakfast.ID, dinner.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", recipe.Name)
	assert.Equal(t, author.ID, recipe.AuthorID)
	assert.Equal(t, "chef", recipe.Author.Username)
	assert.False(t, recipe.PubDate.IsZero())

	// The stored composition is exactly the payload's ingredient and tag sets.
	require.Len(t, recipe.Ingredients, 2)
	amounts := map[uuid.UUID]int{}
	for _, line := range recipe.Ingredients {
		amounts[line.IngredientID] = line.Amount
	}
	assert.Equal(t, map[uuid.UUID]int{flour.ID: 200, milk.ID: 300}, amounts)

	require.Len(t, recipe.Tags, 2)
	slugs := []string{recipe.Tags[0].Slug, recipe.Tags[1].Slug}
	assert.ElementsMatch(t, []string{"breakfast", "dinner"}, slugs)
}

func TestCreateRecipeValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRecipeService(db)
	ctx := context.Background()

	author := createTestUser(t, db, "chef")
	flour := createTestIngredient(t, db, "flour", "g")
	tag := createTestTag(t, db, "Breakfast", "#E26C2D", "breakfast")

	valid := RecipeInput{
		Name:        "Pancakes",
		Text:        "Mix and fry.",
		CookingTime: 15,
		Ingredients: []IngredientLine{{IngredientID: flour.ID, Amount: 200}},
		Tags:        []uuid.UUID{tag.ID},
	}

	t.Run("no ingredients", func(t *testing.T) {
		input := valid
		input.Ingredients = nil
		_, err := svc.CreateRecipe(ctx, author.ID, input)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "ingredients", vErr.Field)
	})

	t.Run("duplicate ingredients", func(t *testing.T) {
		input := valid
		// Same ingredient twice with different amounts is still a duplicate.
		input.Ingredients = []IngredientLine{
			{IngredientID: flour.ID, Amount: 200},
			{IngredientID: flour.ID, Amount: 100},
		}
		_, err := svc.CreateRecipe(ctx, author.ID, input)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "ingredients must be unique", vErr.Message)
	})

	t.Run("zero amount", func(t *testing.T) {
		input := valid
		input.Ingredients = []IngredientLine{{IngredientID: flour.ID, Amount: 0}}
		_, err := svc.CreateRecipe(ctx, author.ID, input)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "amount", vErr.Field)
	})

	t.Run("amount of one is allowed", func(t *testing.T) {
		input := valid
		input.Ingredients = []IngredientLine{{IngredientID: flour.ID, Amount: 1}}
		recipe, err := svc.CreateRecipe(ctx, author.ID, input)
		require.NoError(t, err)
		assert.Equal(t, 1, recipe.Ingredients[0].Amount)
	})

	t.Run("no tags", func(t *testing.T) {
		input := valid
		input.Tags = nil
		_, err := svc.CreateRecipe(ctx, author.ID, input)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "tags", vErr.Field)
	})

	t.Run("duplicate tags", func(t *testing.T) {
		input := valid
		input.Tags = []uuid.UUID{tag.ID, tag.ID}
		_, err := svc.CreateRecipe(ctx, author.ID, input)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "tags must be unique", vErr.Message)
	})

	t.Run("zero cooking time", func(t *testing.T) {
		input := valid
		input.CookingTime = 0
		_, err := svc.CreateRecipe(ctx, author.ID, input)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "cooking_time", vErr.Field)
	})

	t.Run("unknown ingredient", func(t *testing.T) {
		input := valid
		input.Ingredients = []IngredientLine{{IngredientID: uuid.New(), Amount: 10}}
		_, err := svc.CreateRecipe(ctx, author.ID, input)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateRecipeUnknownTagLeavesNothingBehind(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRecipeService(db)
	ctx := context.Background()

	author := createTestUser(t, db, "chef")
	flour := createTestIngredient(t, db, "flour", "g")

	_, err := svc.CreateRecipe(ctx, author.ID, RecipeInput{
		Name:        "Pancakes",
		Text:        "Mix and fry.",
		CookingTime: 15,
		Ingredients: []IngredientLine{{IngredientID: flour.ID, Amount: 200}},
		Tags:        []uuid.UUID{uuid.New()},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	// The transaction rolled back: no partial recipe or ingredient rows.
	var recipeCount, amountCount int64
	db.Model(&models.Recipe{}).Count(&recipeCount)
	db.Model(&models.IngredientAmount{}).Count(&amountCount)
	assert.Zero(t, recipeCount)
	assert.Zero(t, amountCount)
}

func TestUpdateRecipe(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRecipeService(db)
	ctx := context.Background()

	author := createTestUser(t, db, "chef")
	flour := createTestIngredient(t, db, "flour", "g")
	milk := createTestIngredient(t, db, "milk", "ml")
	sugar := createTestIngredient(t, db, "sugar", "g")
	breakfast := createTestTag(t, db, "Breakfast", "#E26C2D", "breakfast")
	dinner := createTestTag(t, db, "Dinner", "#49B64E", "dinner")

	recipe := createTestRecipe(t, db, author, "Pancakes", breakfast,
		IngredientLine{IngredientID: flour.ID, Amount: 200},
		IngredientLine{IngredientID: milk.ID, Amount: 300},
		IngredientLine{IngredientID: sugar.ID, Amount: 50},
	)

	t.Run("empty collections leave associations untouched", func(t *testing.T) {
		name := "Thin Pancakes"
		updated, err := svc.UpdateRecipe(ctx, author.ID, recipe.ID, RecipeUpdateInput{
			Name:        &name,
			Ingredients: []IngredientLine{},
			Tags:        []uuid.UUID{},
		})
		require.NoError(t, err)
		assert.Equal(t, "Thin Pancakes", updated.Name)
		// All three original ingredients survive the empty-list update.
		assert.Len(t, updated.Ingredients, 3)
		assert.Len(t, updated.Tags, 1)
	})

	t.Run("nil scalars keep their values", func(t *testing.T) {
		cookingTime := 25
		updated, err := svc.UpdateRecipe(ctx, author.ID, recipe.ID, RecipeUpdateInput{
			CookingTime: &cookingTime,
		})
		require.NoError(t, err)
		assert.Equal(t, 25, updated.CookingTime)
		assert.Equal(t, "Thin Pancakes", updated.Name)
		assert.Equal(t, "some instructions", updated.Text)
	})

	t.Run("non-empty ingredients replace wholesale", func(t *testing.T) {
		updated, err := svc.UpdateRecipe(ctx, author.ID, recipe.ID, RecipeUpdateInput{
			Ingredients: []IngredientLine{{IngredientID: sugar.ID, Amount: 75}},
		})
		require.NoError(t, err)
		require.Len(t, updated.Ingredients, 1)
		assert.Equal(t, sugar.ID, updated.Ingredients[0].IngredientID)
		assert.Equal(t, 75, updated.Ingredients[0].Amount)

		// The old rows are gone, not soft-hidden.
		var count int64
		db.Model(&models.IngredientAmount{}).Where("recipe_id = ?", recipe.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("non-empty tags replace wholesale", func(t *testing.T) {
		updated, err := svc.UpdateRecipe(ctx, author.ID, recipe.ID, RecipeUpdateInput{
			Tags: []uuid.UUID{dinner.ID},
		})
		require.NoError(t, err)
		require.Len(t, updated.Tags, 1)
		assert.Equal(t, "dinner", updated.Tags[0].Slug)
	})

	t.Run("author and pub date never change", func(t *testing.T) {
		name := "Renamed"
		updated, err := svc.UpdateRecipe(ctx, author.ID, recipe.ID, RecipeUpdateInput{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, author.ID, updated.AuthorID)
		assert.Equal(t, recipe.PubDate.Unix(), updated.PubDate.Unix())
	})

	t.Run("invalid cooking time", func(t *testing.T) {
		zero := 0
		_, err := svc.UpdateRecipe(ctx, author.ID, recipe.ID, RecipeUpdateInput{CookingTime: &zero})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "cooking_time", vErr.Field)
	})

	t.Run("unknown recipe", func(t *testing.T) {
		name := "x"
		_, err := svc.UpdateRecipe(ctx, author.ID, uuid.New(), RecipeUpdateInput{Name: &name})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateRecipePermissions(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRecipeService(db)
	ctx := context.Background()

	author := createTestUser(t, db, "chef")
	other := createTestUser(t, db, "intruder")
	staff := models.User{
		Username:     "admin",
		Email:        "admin@example.com",
		FirstName:    "Ad",
		LastName:     "Min",
		PasswordHash: "x",
		IsStaff:      true,
	}
	require.NoError(t, db.Create(&staff).Error)

	flour := createTestIngredient(t, db, "flour", "g")
	tag := createTestTag(t, db, "Breakfast", "#E26C2D", "breakfast")
	recipe := createTestRecipe(t, db, author, "Pancakes", tag,
		IngredientLine{IngredientID: flour.ID, Amount: 200})

	name := "Hijacked"
	_, err := svc.UpdateRecipe(ctx, other.ID, recipe.ID, RecipeUpdateInput{Name: &name})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	err = svc.DeleteRecipe(ctx, other.ID, recipe.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// Staff may edit anyone's recipe.
	moderated := "Moderated"
	updated, err := svc.UpdateRecipe(ctx, staff.ID, recipe.ID, RecipeUpdateInput{Name: &moderated})
	require.NoError(t, err)
	assert.Equal(t, "Moderated", updated.Name)
}

func TestDeleteRecipeRemovesOwnedRows(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRecipeService(db)
	memberships := NewMembershipService(db)
	ctx := context.Background()

	author := createTestUser(t, db, "chef")
	fan := createTestUser(t, db, "fan")
	flour := createTestIngredient(t, db, "flour", "g")
	tag := createTestTag(t, db, "Breakfast", "#E26C2D", "breakfast")
	recipe := createTestRecipe(t, db, author, "Pancakes", tag,
		IngredientLine{IngredientID: flour.ID, Amount: 200})

	_, err := memberships.AddMembership(ctx, MembershipFavorite, fan.ID, recipe.ID)
	require.NoError(t, err)
	_, err = memberships.AddMembership(ctx, MembershipCart, fan.ID, recipe.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRecipe(ctx, author.ID, recipe.ID))

	_, err = svc.GetRecipe(ctx, recipe.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var amounts, favorites, carts int64
	db.Model(&models.IngredientAmount{}).Where("recipe_id = ?", recipe.ID).Count(&amounts)
	db.Model(&models.Favorite{}).Where("recipe_id = ?", recipe.ID).Count(&favorites)
	db.Model(&models.ShoppingCart{}).Where("recipe_id = ?", recipe.ID).Count(&carts)
	assert.Zero(t, amounts)
	assert.Zero(t, favorites)
	assert.Zero(t, carts)
}

func TestListRecipes(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRecipeService(db)
	memberships := NewMembershipService(db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	flour := createTestIngredient(t, db, "flour", "g")
	breakfast := createTestTag(t, db, "Breakfast", "#E26C2D", "breakfast")
	dinner := createTestTag(t, db, "Dinner", "#49B64E", "dinner")

	line := IngredientLine{IngredientID: flour.ID, Amount: 100}
	createTestRecipe(t, db, alice, "Pancakes", breakfast, line)
	soup := createTestRecipe(t, db, bob, "Soup", dinner, line)
	createTestRecipe(t, db, bob, "Stew", dinner, line)

	t.Run("all, newest first", func(t *testing.T) {
		recipes, total, err := svc.ListRecipes(ctx, RecipeListFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, recipes, 3)
		assert.Equal(t, "Stew", recipes[0].Name)
		assert.Equal(t, "Pancakes", recipes[2].Name)
	})

	t.Run("by author", func(t *testing.T) {
		recipes, total, err := svc.ListRecipes(ctx, RecipeListFilter{Author: &alice.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, recipes, 1)
		assert.Equal(t, "Pancakes", recipes[0].Name)
	})

	t.Run("by tag slug", func(t *testing.T) {
		recipes, total, err := svc.ListRecipes(ctx, RecipeListFilter{TagSlugs: []string{"dinner"}})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, recipes, 2)
	})

	t.Run("favorited for viewer", func(t *testing.T) {
		_, err := memberships.AddMembership(ctx, MembershipFavorite, alice.ID, soup.ID)
		require.NoError(t, err)

		recipes, total, err := svc.ListRecipes(ctx, RecipeListFilter{
			Favorited: true,
			Viewer:    &alice.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, recipes, 1)
		assert.Equal(t, "Soup", recipes[0].Name)
	})

	t.Run("viewer filters ignored for anonymous", func(t *testing.T) {
		_, total, err := svc.ListRecipes(ctx, RecipeListFilter{Favorited: true})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})

	t.Run("paging", func(t *testing.T) {
		recipes, total, err := svc.ListRecipes(ctx, RecipeListFilter{Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, recipes, 1)
	})
}

func TestListRecipesByTag(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRecipeService(db)
	ctx := context.Background()

	chef := createTestUser(t, db, "chef")
	flour := createTestIngredient(t, db, "flour", "g")
	breakfast := createTestTag(t, db, "Breakfast", "#E26C2D", "breakfast")
	dinner := createTestTag(t, db, "Dinner", "#49B64E", "dinner")

	// Carries both tags; must still appear exactly once per listing.
	both, err := svc.CreateRecipe(ctx, chef.ID, RecipeInput{
		Name:        "Omelette",
		Text:        "Whisk and fry.",
		CookingTime: 5,
		Ingredients: []IngredientLine{{IngredientID: flour.ID, Amount: 10}},
		Tags:        []uuid.UUID{breakfast.ID, dinner.ID},
	})
	require.NoError(t, err)

	createTestRecipe(t, db, chef, "Soup", dinner,
		IngredientLine{IngredientID: flour.ID, Amount: 100})

	t.Run("single slug", func(t *testing.T) {
		recipes, total, err := svc.ListRecipes(ctx, RecipeListFilter{TagSlugs: []string{"breakfast"}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, recipes, 1)
		assert.Equal(t, both.ID, recipes[0].ID)
	})

	t.Run("recipe matching several slugs is listed once", func(t *testing.T) {
		recipes, total, err := svc.ListRecipes(ctx, RecipeListFilter{
			TagSlugs: []string{"breakfast", "dinner"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, recipes, 2)

		seen := map[uuid.UUID]int{}
		for _, r := range recipes {
			seen[r.ID]++
		}
		assert.Equal(t, 1, seen[both.ID])
	})

	t.Run("unknown slug", func(t *testing.T) {
		recipes, total, err := svc.ListRecipes(ctx, RecipeListFilter{TagSlugs: []string{"supper"}})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, recipes)
	})
}

func TestFlagsFor(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRecipeService(db)
	memberships := NewMembershipService(db)
	follows := NewFollowService(db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	flour := createTestIngredient(t, db, "flour", "g")
	tag := createTestTag(t, db, "Breakfast", "#E26C2D", "breakfast")
	line := IngredientLine{IngredientID: flour.ID, Amount: 100}

	pancakes := createTestRecipe(t, db, bob, "Pancakes", tag, line)
	soup := createTestRecipe(t, db, bob, "Soup", tag, line)

	_, err := memberships.AddMembership(ctx, MembershipFavorite, alice.ID, pancakes.ID)
	require.NoError(t, err)
	_, err = memberships.AddMembership(ctx, MembershipCart, alice.ID, soup.ID)
	require.NoError(t, err)
	_, err = follows.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	recipes := []models.Recipe{*pancakes, *soup}

	flags, err := svc.FlagsFor(ctx, &alice.ID, recipes)
	require.NoError(t, err)
	assert.True(t, flags[pancakes.ID].Favorited)
	assert.False(t, flags[pancakes.ID].InCart)
	assert.True(t, flags[soup.ID].InCart)
	assert.True(t, flags[pancakes.ID].AuthorSubscribed)
	assert.True(t, flags[soup.ID].AuthorSubscribed)

	// Anonymous viewers get all-false flags.
	flags, err = svc.FlagsFor(ctx, nil, recipes)
	require.NoError(t, err)
	assert.Equal(t, RecipeFlags{}, flags[pancakes.ID])
	assert.Equal(t, RecipeFlags{}, flags[soup.ID])
}
