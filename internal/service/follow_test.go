package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodgram/backend/internal/models"
)

func TestFollow(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	author, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", author.Username)

	following, err := svc.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)

	// The edge is directed: bob does not follow alice back.
	following, err = svc.IsFollowing(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, following)
}

func TestFollowSelf(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db)

	alice := createTestUser(t, db, "alice")

	_, err := svc.Follow(context.Background(), alice.ID, alice.ID)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "author", vErr.Field)
	assert.Equal(t, "cannot follow yourself", vErr.Message)
}

func TestFollowDuplicate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	_, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.Follow(ctx, alice.ID, bob.ID)
	var cErr *ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "already following this user", cErr.Message)

	var count int64
	db.Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", alice.ID, bob.ID).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestFollowUnknownAuthor(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db)

	alice := createTestUser(t, db, "alice")

	_, err := svc.Follow(context.Background(), alice.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnfollow(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	// Unfollowing someone never followed fails.
	err := svc.Unfollow(ctx, alice.ID, bob.ID)
	var cErr *ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "not following this user", cErr.Message)

	_, err = svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Unfollow(ctx, alice.ID, bob.ID))

	following, err := svc.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, following)
}

func TestListSubscriptions(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFollowService(db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")

	flour := createTestIngredient(t, db, "flour", "g")
	tag := createTestTag(t, db, "Breakfast", "#E26C2D", "breakfast")
	createTestRecipe(t, db, bob, "Pancakes", tag,
		IngredientLine{IngredientID: flour.ID, Amount: 100})
	createTestRecipe(t, db, bob, "Bread", tag,
		IngredientLine{IngredientID: flour.ID, Amount: 200})

	_, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = svc.Follow(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	subscriptions, total, err := svc.ListSubscriptions(ctx, alice.ID, 1, DefaultPageSize)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, subscriptions, 2)

	byName := map[string]Subscription{}
	for _, sub := range subscriptions {
		byName[sub.Author.Username] = sub
	}
	assert.Equal(t, int64(2), byName["bob"].RecipeCount)
	require.Len(t, byName["bob"].Recipes, 2)
	assert.Equal(t, "Bread", byName["bob"].Recipes[0].Name)
	assert.Equal(t, int64(0), byName["carol"].RecipeCount)

	// Nobody follows bob, so his subscription page is empty.
	subscriptions, total, err = svc.ListSubscriptions(ctx, bob.ID, 1, DefaultPageSize)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, subscriptions)
}
