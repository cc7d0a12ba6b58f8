package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/foodgram/backend/internal/middleware"
	"github.com/foodgram/backend/internal/models"
	"github.com/foodgram/backend/internal/service"
)

// RecipeHandler serves recipe CRUD, the favorite/cart toggles and the
// shopping-list download.
type RecipeHandler struct {
	recipeService       *service.RecipeService
	membershipService   *service.MembershipService
	shoppingListService *service.ShoppingListService
	imageService        *service.ImageService
	authService         *service.AuthService
	rateLimiter         *middleware.RateLimiter
}

// NewRecipeHandler creates a new RecipeHandler instance
func NewRecipeHandler(
	recipeService *service.RecipeService,
	membershipService *service.MembershipService,
	shoppingListService *service.ShoppingListService,
	imageService *service.ImageService,
	authService *service.AuthService,
	rateLimiter *middleware.RateLimiter,
) *RecipeHandler {
	return &RecipeHandler{
		recipeService:       recipeService,
		membershipService:   membershipService,
		shoppingListService: shoppingListService,
		imageService:        imageService,
		authService:         authService,
		rateLimiter:         rateLimiter,
	}
}

// RegisterRoutes registers the recipe routes
func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	recipes := router.Group("/recipes")
	{
		recipes.GET("", middleware.OptionalAuthMiddleware(h.authService), h.ListRecipes)
		recipes.GET("/download_shopping_cart", middleware.AuthMiddleware(h.authService), h.DownloadShoppingCart)
		recipes.GET("/:id", middleware.OptionalAuthMiddleware(h.authService), h.GetRecipe)
		recipes.POST("", middleware.AuthMiddleware(h.authService), h.rateLimiter.RateLimitMiddleware(), h.CreateRecipe)
		recipes.PATCH("/:id", middleware.AuthMiddleware(h.authService), h.rateLimiter.RateLimitMiddleware(), h.UpdateRecipe)
		recipes.DELETE("/:id", middleware.AuthMiddleware(h.authService), h.DeleteRecipe)
		recipes.POST("/:id/favorite", middleware.AuthMiddleware(h.authService), h.AddFavorite)
		recipes.DELETE("/:id/favorite", middleware.AuthMiddleware(h.authService), h.RemoveFavorite)
		recipes.POST("/:id/shopping_cart", middleware.AuthMiddleware(h.authService), h.AddToCart)
		recipes.DELETE("/:id/shopping_cart", middleware.AuthMiddleware(h.authService), h.RemoveFromCart)
	}
}

type ingredientLineRequest struct {
	ID     uuid.UUID `json:"id" binding:"required"`
	Amount int       `json:"amount"`
}

type createRecipeRequest struct {
	Name        string                  `json:"name" binding:"required"`
	Text        string                  `json:"text" binding:"required"`
	CookingTime int                     `json:"cooking_time"`
	Image       string                  `json:"image"`
	Ingredients []ingredientLineRequest `json:"ingredients"`
	Tags        []uuid.UUID             `json:"tags"`
}

type updateRecipeRequest struct {
	Name        *string                 `json:"name"`
	Text        *string                 `json:"text"`
	CookingTime *int                    `json:"cooking_time"`
	Image       *string                 `json:"image"`
	Ingredients []ingredientLineRequest `json:"ingredients"`
	Tags        []uuid.UUID             `json:"tags"`
}

func toIngredientLines(reqs []ingredientLineRequest) []service.IngredientLine {
	lines := make([]service.IngredientLine, 0, len(reqs))
	for _, r := range reqs {
		lines = append(lines, service.IngredientLine{IngredientID: r.ID, Amount: r.Amount})
	}
	return lines
}

// ListRecipes returns one page of recipes with the optional filters applied
func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	page, limit := pageParams(c)

	filter := service.RecipeListFilter{Page: page, Limit: limit}

	if authorStr := c.Query("author"); authorStr != "" {
		authorID, err := uuid.Parse(authorStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid author id"})
			return
		}
		filter.Author = &authorID
	}
	filter.TagSlugs = c.QueryArray("tags")

	if viewer, ok := middleware.ViewerID(c); ok {
		filter.Viewer = &viewer
		filter.Favorited = c.Query("is_favorited") == "1" || c.Query("is_favorited") == "true"
		filter.InCart = c.Query("is_in_shopping_cart") == "1" || c.Query("is_in_shopping_cart") == "true"
	}

	recipes, total, err := h.recipeService.ListRecipes(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	flags, err := h.recipeService.FlagsFor(c.Request.Context(), filter.Viewer, recipes)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]RecipeView, 0, len(recipes))
	for _, recipe := range recipes {
		views = append(views, newRecipeView(recipe, flags[recipe.ID]))
	}

	c.JSON(http.StatusOK, PageResponse{Count: total, Results: views})
}

// GetRecipe returns a single composed recipe view
func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	recipe, err := h.recipeService.GetRecipe(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := h.composeView(c, *recipe)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CreateRecipe validates and persists a new recipe
func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	viewer, _ := middleware.ViewerID(c)

	var req createRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	image := req.Image
	if service.IsDataURI(image) {
		stored, err := h.imageService.StoreDataURI(c.Request.Context(), image)
		if err != nil {
			respondError(c, err)
			return
		}
		image = stored
	}

	recipe, err := h.recipeService.CreateRecipe(c.Request.Context(), viewer, service.RecipeInput{
		Name:        req.Name,
		Text:        req.Text,
		CookingTime: req.CookingTime,
		Image:       image,
		Ingredients: toIngredientLines(req.Ingredients),
		Tags:        req.Tags,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := h.composeView(c, *recipe)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// UpdateRecipe applies a partial update to a recipe the viewer authored
func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	viewer, _ := middleware.ViewerID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	var req updateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	image := req.Image
	if image != nil && service.IsDataURI(*image) {
		stored, err := h.imageService.StoreDataURI(c.Request.Context(), *image)
		if err != nil {
			respondError(c, err)
			return
		}
		image = &stored
	}

	recipe, err := h.recipeService.UpdateRecipe(c.Request.Context(), viewer, id, service.RecipeUpdateInput{
		Name:        req.Name,
		Text:        req.Text,
		CookingTime: req.CookingTime,
		Image:       image,
		Ingredients: toIngredientLines(req.Ingredients),
		Tags:        req.Tags,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := h.composeView(c, *recipe)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteRecipe removes a recipe the viewer authored
func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	viewer, _ := middleware.ViewerID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	if err := h.recipeService.DeleteRecipe(c.Request.Context(), viewer, id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AddFavorite adds the recipe to the viewer's favorites
func (h *RecipeHandler) AddFavorite(c *gin.Context) {
	h.addMembership(c, service.MembershipFavorite)
}

// RemoveFavorite removes the recipe from the viewer's favorites
func (h *RecipeHandler) RemoveFavorite(c *gin.Context) {
	h.removeMembership(c, service.MembershipFavorite)
}

// AddToCart adds the recipe to the viewer's shopping cart
func (h *RecipeHandler) AddToCart(c *gin.Context) {
	h.addMembership(c, service.MembershipCart)
}

// RemoveFromCart removes the recipe from the viewer's shopping cart
func (h *RecipeHandler) RemoveFromCart(c *gin.Context) {
	h.removeMembership(c, service.MembershipCart)
}

func (h *RecipeHandler) addMembership(c *gin.Context, kind service.MembershipKind) {
	viewer, _ := middleware.ViewerID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	recipe, err := h.membershipService.AddMembership(c.Request.Context(), kind, viewer, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newShortRecipeView(*recipe))
}

func (h *RecipeHandler) removeMembership(c *gin.Context, kind service.MembershipKind) {
	viewer, _ := middleware.ViewerID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}

	if err := h.membershipService.RemoveMembership(c.Request.Context(), kind, viewer, id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DownloadShoppingCart aggregates the viewer's cart and returns it as a
// plain-text attachment. An empty cart yields 204.
func (h *RecipeHandler) DownloadShoppingCart(c *gin.Context) {
	viewer, _ := middleware.ViewerID(c)

	items, err := h.shoppingListService.BuildShoppingList(c.Request.Context(), viewer)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(items) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), viewer)
	if err != nil {
		respondError(c, err)
		return
	}

	body := service.RenderShoppingList(user.Username, time.Now(), items)
	c.Header("Content-Disposition", "attachment; filename="+service.ShoppingListFilename(user.Username))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(body))
}

// composeView resolves the viewer-relative flags for a single recipe.
func (h *RecipeHandler) composeView(c *gin.Context, recipe models.Recipe) (RecipeView, error) {
	var viewer *uuid.UUID
	if id, ok := middleware.ViewerID(c); ok {
		viewer = &id
	}

	flags, err := h.recipeService.FlagsFor(c.Request.Context(), viewer, []models.Recipe{recipe})
	if err != nil {
		return RecipeView{}, err
	}
	return newRecipeView(recipe, flags[recipe.ID]), nil
}
