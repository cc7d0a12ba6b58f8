package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/foodgram/backend/internal/middleware"
	"github.com/foodgram/backend/internal/service"
)

// UserHandler serves user listings and the follow graph
type UserHandler struct {
	authService   *service.AuthService
	followService *service.FollowService
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(authService *service.AuthService, followService *service.FollowService) *UserHandler {
	return &UserHandler{
		authService:   authService,
		followService: followService,
	}
}

// RegisterRoutes registers the user routes
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	{
		users.GET("", middleware.OptionalAuthMiddleware(h.authService), h.ListUsers)
		users.GET("/me", middleware.AuthMiddleware(h.authService), h.Me)
		users.GET("/subscriptions", middleware.AuthMiddleware(h.authService), h.ListSubscriptions)
		users.GET("/:id", middleware.OptionalAuthMiddleware(h.authService), h.GetUser)
		users.POST("/:id/subscribe", middleware.AuthMiddleware(h.authService), h.Subscribe)
		users.DELETE("/:id/subscribe", middleware.AuthMiddleware(h.authService), h.Unsubscribe)
	}
}

// ListUsers returns one page of users
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, limit := pageParams(c)

	users, total, err := h.authService.ListUsers(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	viewer, hasViewer := middleware.ViewerID(c)
	views := make([]UserView, 0, len(users))
	for _, user := range users {
		subscribed := false
		if hasViewer {
			subscribed, err = h.followService.IsFollowing(c.Request.Context(), viewer, user.ID)
			if err != nil {
				respondError(c, err)
				return
			}
		}
		views = append(views, newUserView(user, subscribed))
	}

	c.JSON(http.StatusOK, PageResponse{Count: total, Results: views})
}

// Me returns the authenticated user
func (h *UserHandler) Me(c *gin.Context) {
	viewer, _ := middleware.ViewerID(c)
	user, err := h.authService.GetUser(c.Request.Context(), viewer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(*user, false))
}

// GetUser returns a single user with the viewer-relative subscription flag
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	subscribed := false
	if viewer, ok := middleware.ViewerID(c); ok {
		subscribed, err = h.followService.IsFollowing(c.Request.Context(), viewer, id)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, newUserView(*user, subscribed))
}

// ListSubscriptions returns the authors the viewer follows, each with their
// recipes and recipe count
func (h *UserHandler) ListSubscriptions(c *gin.Context) {
	viewer, _ := middleware.ViewerID(c)
	page, limit := pageParams(c)

	subscriptions, total, err := h.followService.ListSubscriptions(c.Request.Context(), viewer, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]SubscriptionView, 0, len(subscriptions))
	for _, sub := range subscriptions {
		recipes := make([]ShortRecipeView, 0, len(sub.Recipes))
		for _, recipe := range sub.Recipes {
			recipes = append(recipes, newShortRecipeView(recipe))
		}
		views = append(views, SubscriptionView{
			UserView:     newUserView(sub.Author, true),
			Recipes:      recipes,
			RecipesCount: sub.RecipeCount,
		})
	}

	c.JSON(http.StatusOK, PageResponse{Count: total, Results: views})
}

// Subscribe follows an author
func (h *UserHandler) Subscribe(c *gin.Context) {
	viewer, _ := middleware.ViewerID(c)
	authorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	author, err := h.followService.Follow(c.Request.Context(), viewer, authorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newUserView(*author, true))
}

// Unsubscribe removes the follow edge
func (h *UserHandler) Unsubscribe(c *gin.Context) {
	viewer, _ := middleware.ViewerID(c)
	authorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.followService.Unfollow(c.Request.Context(), viewer, authorID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
