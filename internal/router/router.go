package router

import (
	"recipe-service/internal/handler"
	mid "recipe-service/internal/middleware"
	"recipe-service/pkg/logger"
	"recipe-service/pkg/ratelimit"
	"recipe-service/pkg/storage"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// New builds the Echo instance with all middleware and routes wired.
// limiter may be nil when no Redis is configured.
func New(store storage.Store, limiter *ratelimit.RedisLimiter) *echo.Echo {
	handler.InitRecipeHandler(store)
	handler.InitTokenHandler(limiter)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(mid.RequestIDMiddleware)
	e.Use(logger.Middleware(logger.GetLogger()))
	e.Use(mid.MetricsMiddleware)

	// Public operational endpoints
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.Metrics)

	api := e.Group("/api")

	// User endpoints; create and token are public
	user := api.Group("/user")
	user.POST("/create", handler.CreateUser)
	user.POST("/token", handler.IssueToken)
	me := user.Group("/me", mid.AuthMiddleware)
	me.GET("", handler.GetMe)
	me.PATCH("", handler.UpdateMe)

	// Domain endpoints, all owner-scoped behind token auth
	recipe := api.Group("/recipe", mid.AuthMiddleware)
	recipe.GET("/tags", handler.TagHandler.List)
	recipe.POST("/tags", handler.TagHandler.Create)
	recipe.GET("/ingredients", handler.IngredientHandler.List)
	recipe.POST("/ingredients", handler.IngredientHandler.Create)
	recipe.GET("/recipes", handler.ListRecipes)
	recipe.POST("/recipes", handler.CreateRecipe)
	recipe.GET("/recipes/:id", handler.GetRecipe)
	recipe.PUT("/recipes/:id", handler.UpdateRecipe)
	recipe.PATCH("/recipes/:id", handler.PatchRecipe)
	recipe.DELETE("/recipes/:id", handler.DeleteRecipe)
	recipe.POST("/recipes/:id/upload-image", handler.UploadRecipeImage)

	// Identity-store management surface, staff only
	admin := api.Group("/admin", mid.AuthMiddleware, mid.StaffMiddleware)
	admin.GET("/users", handler.ListUsers)
	admin.GET("/users/:id", handler.GetUser)
	admin.PUT("/users/:id", handler.UpdateUser)
	admin.DELETE("/users/:id", handler.DeleteUser)

	return e
}
