package handler

import (
	"net/http"
	"time"

	"recipe-service/internal/middleware"
	"recipe-service/internal/model"
	"recipe-service/pkg/database"
	"recipe-service/pkg/logger"
	"recipe-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ownedAttribute is what the shared handler needs from a recipe attribute:
// a settable name and owner. Tag and Ingredient both satisfy it.
type ownedAttribute interface {
	SetName(string)
	SetOwner(uint)
}

// attrPtr constrains PT to be a pointer to the entity struct
type attrPtr[T any] interface {
	*T
	ownedAttribute
}

type attributeRequest struct {
	Name string `json:"name" validate:"required"`
}

// AttributeHandler serves list/create for one user-owned attribute type.
// Tags and ingredients share the exact same contract, so the handler is
// parameterized over the entity instead of being written twice.
type AttributeHandler[T any, PT attrPtr[T]] struct {
	entity string
}

// NewAttributeHandler creates a handler for the given entity name
// ("tag" or "ingredient"), used in logs and metrics.
func NewAttributeHandler[T any, PT attrPtr[T]](entity string) *AttributeHandler[T, PT] {
	return &AttributeHandler[T, PT]{entity: entity}
}

// List returns the caller's records ordered by name descending
func (h *AttributeHandler[T, PT]) List(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.AttributeOperationsCounter.WithLabelValues(h.entity, "list").Inc()
	user := middleware.CurrentUser(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var items []T
	result := database.GetDB().Where("user_id = ?", user.ID).Order("name DESC").Find(&items)
	if result.Error != nil {
		log.Error("Failed to list attributes",
			zap.String("entity", h.entity),
			zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve " + h.entity + "s"})
	}

	return c.JSON(http.StatusOK, items)
}

// Create validates the name and stores a record owned by the caller
func (h *AttributeHandler[T, PT]) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.AttributeOperationsCounter.WithLabelValues(h.entity, "create").Inc()
	user := middleware.CurrentUser(c)

	var req attributeRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.String("entity", h.entity), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validationErrors(err))
	}

	item := PT(new(T))
	item.SetName(req.Name)
	item.SetOwner(user.ID)

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(item); result.Error != nil {
		log.Error("Failed to create attribute",
			zap.String("entity", h.entity),
			zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create " + h.entity})
	}

	log.Info("Attribute created",
		zap.String("entity", h.entity),
		zap.String("name", req.Name),
		zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusCreated, item)
}

// Concrete handler types used by the router
var (
	TagHandler        = NewAttributeHandler[model.Tag]("tag")
	IngredientHandler = NewAttributeHandler[model.Ingredient]("ingredient")
)
