package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"recipe-service/internal/middleware"
	"recipe-service/internal/model"
	"recipe-service/pkg/database"
	"recipe-service/pkg/logger"
	"recipe-service/pkg/storage"
	"recipe-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// imageStore holds the configured blob store for recipe images
var imageStore storage.Store

// InitRecipeHandler wires the image store
func InitRecipeHandler(store storage.Store) {
	imageStore = store
}

// recipeRequest is the payload for create and full update. Tags and
// ingredients are bare ID references. The numeric fields are pointers so
// an omitted field is told apart from a legitimate zero; presence is
// checked by hand in missingFields because the validator dereferences
// pointers before evaluating required.
type recipeRequest struct {
	Title       string   `json:"title" validate:"required"`
	TimeMinutes *int     `json:"time_minutes" validate:"omitempty,gte=0"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0,lte=999.99"`
	Link        string   `json:"link"`
	Tags        []uint   `json:"tags"`
	Ingredients []uint   `json:"ingredients"`
}

// missingFields reports required fields absent from the payload, nil when
// the payload is complete
func (r *recipeRequest) missingFields() echo.Map {
	fields := echo.Map{}
	if r.TimeMinutes == nil {
		fields["time_minutes"] = "this field is required"
	}
	if r.Price == nil {
		fields["price"] = "this field is required"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// recipePatchRequest is the payload for partial update; only supplied
// fields are touched.
type recipePatchRequest struct {
	Title       *string  `json:"title"`
	TimeMinutes *int     `json:"time_minutes" validate:"omitempty,gte=0"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0,lte=999.99"`
	Link        *string  `json:"link"`
	Tags        *[]uint  `json:"tags"`
	Ingredients *[]uint  `json:"ingredients"`
}

// recipeListItem is the list representation: relations as bare IDs
type recipeListItem struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	TimeMinutes int     `json:"time_minutes"`
	Price       float64 `json:"price"`
	Link        string  `json:"link"`
	Image       string  `json:"image"`
	Tags        []uint  `json:"tags"`
	Ingredients []uint  `json:"ingredients"`
}

func toRecipeListItem(r *model.Recipe) recipeListItem {
	item := recipeListItem{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price,
		Link:        r.Link,
		Image:       r.Image,
		Tags:        make([]uint, 0, len(r.Tags)),
		Ingredients: make([]uint, 0, len(r.Ingredients)),
	}
	for _, t := range r.Tags {
		item.Tags = append(item.Tags, t.ID)
	}
	for _, i := range r.Ingredients {
		item.Ingredients = append(item.Ingredients, i.ID)
	}
	return item
}

// parseIDList parses a comma-separated list of IDs from a query parameter
func parseIDList(raw string) ([]uint, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// ListRecipes returns the caller's recipes, optionally filtered by
// comma-separated tag and/or ingredient ID sets. A recipe matches a filter
// dimension when its set overlaps the given IDs; both dimensions combine
// with AND.
func ListRecipes(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecipeOperationsCounter.WithLabelValues("list").Inc()
	user := middleware.CurrentUser(c)

	tagIDs, err := parseIDList(c.QueryParam("tags"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"tags": err.Error()})
	}
	ingredientIDs, err := parseIDList(c.QueryParam("ingredients"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"ingredients": err.Error()})
	}

	query := database.GetDB().
		Preload("Tags").
		Preload("Ingredients").
		Where("user_id = ?", user.ID)

	if len(tagIDs) > 0 {
		query = query.Where(
			"id IN (SELECT recipe_id FROM recipe_tags WHERE tag_id IN ?)", tagIDs)
	}
	if len(ingredientIDs) > 0 {
		query = query.Where(
			"id IN (SELECT recipe_id FROM recipe_ingredients WHERE ingredient_id IN ?)", ingredientIDs)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var recipes []model.Recipe
	if result := query.Order("id DESC").Find(&recipes); result.Error != nil {
		log.Error("Failed to list recipes", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve recipes"})
	}

	items := make([]recipeListItem, 0, len(recipes))
	for i := range recipes {
		items = append(items, toRecipeListItem(&recipes[i]))
	}
	return c.JSON(http.StatusOK, items)
}

// GetRecipe returns a single recipe with nested tag/ingredient objects.
// Another user's recipe is reported as not found.
func GetRecipe(c echo.Context) error {
	prometheus.RecipeOperationsCounter.WithLabelValues("retrieve").Inc()
	recipe, err := fetchOwnedRecipe(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "recipe not found"})
	}
	return c.JSON(http.StatusOK, recipe)
}

// CreateRecipe stores a new recipe with its tag/ingredient links in one
// transaction.
func CreateRecipe(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecipeOperationsCounter.WithLabelValues("create").Inc()
	user := middleware.CurrentUser(c)

	var req recipeRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validationErrors(err))
	}
	if missing := req.missingFields(); missing != nil {
		return c.JSON(http.StatusBadRequest, missing)
	}

	tags, err := resolveOwnedTags(user.ID, req.Tags)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"tags": err.Error()})
	}
	ingredients, err := resolveOwnedIngredients(user.ID, req.Ingredients)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"ingredients": err.Error()})
	}

	recipe := model.Recipe{
		Title:       req.Title,
		TimeMinutes: *req.TimeMinutes,
		Price:       *req.Price,
		Link:        req.Link,
		UserID:      user.ID,
		Tags:        tags,
		Ingredients: ingredients,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		return tx.Create(&recipe).Error
	})
	if err != nil {
		log.Error("Failed to create recipe", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create recipe"})
	}

	log.Info("Recipe created",
		zap.Uint("recipe_id", recipe.ID),
		zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusCreated, recipe)
}

// UpdateRecipe fully replaces a recipe. Omitted tags/ingredients empty the
// corresponding set.
func UpdateRecipe(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecipeOperationsCounter.WithLabelValues("update").Inc()
	user := middleware.CurrentUser(c)

	recipe, err := fetchOwnedRecipe(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "recipe not found"})
	}

	var req recipeRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validationErrors(err))
	}
	if missing := req.missingFields(); missing != nil {
		return c.JSON(http.StatusBadRequest, missing)
	}

	tags, err := resolveOwnedTags(user.ID, req.Tags)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"tags": err.Error()})
	}
	ingredients, err := resolveOwnedIngredients(user.ID, req.Ingredients)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"ingredients": err.Error()})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"title":        req.Title,
			"time_minutes": *req.TimeMinutes,
			"price":        *req.Price,
			"link":         req.Link,
		}
		if err := tx.Model(recipe).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Model(recipe).Association("Tags").Replace(tags); err != nil {
			return err
		}
		return tx.Model(recipe).Association("Ingredients").Replace(ingredients)
	})
	if err != nil {
		log.Error("Failed to update recipe", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update recipe"})
	}

	recipe.Tags = tags
	recipe.Ingredients = ingredients
	return c.JSON(http.StatusOK, recipe)
}

// PatchRecipe partially updates a recipe; only supplied fields are touched
func PatchRecipe(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecipeOperationsCounter.WithLabelValues("update").Inc()
	user := middleware.CurrentUser(c)

	recipe, err := fetchOwnedRecipe(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "recipe not found"})
	}

	var req recipePatchRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validationErrors(err))
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		if *req.Title == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"title": "this field is required"})
		}
		updates["title"] = *req.Title
	}
	if req.TimeMinutes != nil {
		updates["time_minutes"] = *req.TimeMinutes
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.Link != nil {
		updates["link"] = *req.Link
	}

	var tags []model.Tag
	if req.Tags != nil {
		tags, err = resolveOwnedTags(user.ID, *req.Tags)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"tags": err.Error()})
		}
	}
	var ingredients []model.Ingredient
	if req.Ingredients != nil {
		ingredients, err = resolveOwnedIngredients(user.ID, *req.Ingredients)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"ingredients": err.Error()})
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(recipe).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Tags != nil {
			if err := tx.Model(recipe).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		if req.Ingredients != nil {
			if err := tx.Model(recipe).Association("Ingredients").Replace(ingredients); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to patch recipe", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update recipe"})
	}

	if req.Tags != nil {
		recipe.Tags = tags
	}
	if req.Ingredients != nil {
		recipe.Ingredients = ingredients
	}
	return c.JSON(http.StatusOK, recipe)
}

// DeleteRecipe removes a recipe and its join rows; shared tags and
// ingredients stay.
func DeleteRecipe(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecipeOperationsCounter.WithLabelValues("delete").Inc()

	recipe, err := fetchOwnedRecipe(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "recipe not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(recipe).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Model(recipe).Association("Ingredients").Clear(); err != nil {
			return err
		}
		return tx.Delete(recipe).Error
	})
	if err != nil {
		log.Error("Failed to delete recipe", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete recipe"})
	}

	return c.NoContent(http.StatusNoContent)
}

// UploadRecipeImage accepts a single image file for an existing recipe
// owned by the caller. The filename is rewritten to a generated unique
// identifier keeping only the original extension.
func UploadRecipeImage(c echo.Context) error {
	log := logger.FromContext(c)

	recipe, err := fetchOwnedRecipe(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "recipe not found"})
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		prometheus.ImageUploadCounter.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusBadRequest, echo.Map{"image": "no image provided"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Error("Failed to open uploaded file", zap.Error(err))
		prometheus.ImageUploadCounter.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
	}
	defer src.Close()

	// Sniff the payload; anything that is not an image is rejected before
	// touching the store
	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		log.Error("Failed to read uploaded file", zap.Error(err))
		prometheus.ImageUploadCounter.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
	}
	head = head[:n]
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		log.Warn("Non-image upload rejected",
			zap.Uint("recipe_id", recipe.ID),
			zap.String("filename", fileHeader.Filename))
		prometheus.ImageUploadCounter.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusBadRequest, echo.Map{"image": "upload a valid image"})
	}

	key := model.RecipeImageKey(fileHeader.Filename)
	body := io.MultiReader(bytes.NewReader(head), src)
	if err := imageStore.Save(c.Request().Context(), key, body); err != nil {
		log.Error("Failed to store image", zap.Error(err))
		prometheus.ImageUploadCounter.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
	}

	previous := recipe.Image
	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Model(recipe).Update("image", key).Error; err != nil {
		log.Error("Failed to save image reference", zap.Error(err))
		prometheus.ImageUploadCounter.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
	}

	// Best-effort cleanup of the replaced blob
	if previous != "" {
		if err := imageStore.Remove(c.Request().Context(), previous); err != nil {
			log.Warn("Failed to remove previous image",
				zap.String("key", previous),
				zap.Error(err))
		}
	}

	prometheus.ImageUploadCounter.WithLabelValues("success").Inc()
	log.Info("Image uploaded",
		zap.Uint("recipe_id", recipe.ID),
		zap.String("key", key))
	return c.JSON(http.StatusOK, echo.Map{"id": recipe.ID, "image": key})
}

// fetchOwnedRecipe loads the recipe in the path scoped to the caller.
// Cross-user access comes back as a not-found error.
func fetchOwnedRecipe(c echo.Context) (*model.Recipe, error) {
	user := middleware.CurrentUser(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}

	var recipe model.Recipe
	result := database.GetDB().
		Preload("Tags").
		Preload("Ingredients").
		Where("id = ? AND user_id = ?", uint(id), user.ID).
		First(&recipe)
	if result.Error != nil {
		return nil, result.Error
	}
	return &recipe, nil
}

// resolveOwnedTags maps ID references to the caller's tags; unknown or
// foreign IDs are a validation error.
func resolveOwnedTags(userID uint, ids []uint) ([]model.Tag, error) {
	tags := []model.Tag{}
	if len(ids) == 0 {
		return tags, nil
	}
	if err := database.GetDB().Where("id IN ? AND user_id = ?", ids, userID).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(uniqueIDs(ids)) {
		return nil, fmt.Errorf("unknown tag id in %v", ids)
	}
	return tags, nil
}

// resolveOwnedIngredients maps ID references to the caller's ingredients
func resolveOwnedIngredients(userID uint, ids []uint) ([]model.Ingredient, error) {
	ingredients := []model.Ingredient{}
	if len(ids) == 0 {
		return ingredients, nil
	}
	if err := database.GetDB().Where("id IN ? AND user_id = ?", ids, userID).Find(&ingredients).Error; err != nil {
		return nil, err
	}
	if len(ingredients) != len(uniqueIDs(ids)) {
		return nil, fmt.Errorf("unknown ingredient id in %v", ids)
	}
	return ingredients, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
