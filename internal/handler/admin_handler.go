package handler

import (
	"net/http"
	"strconv"
	"time"

	"recipe-service/internal/model"
	"recipe-service/pkg/database"
	"recipe-service/pkg/logger"
	"recipe-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// adminUserResponse exposes the identity-store view of an account
type adminUserResponse struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	IsActive    bool   `json:"is_active"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

type adminUpdateUserRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
	IsStaff  *bool   `json:"is_staff"`
}

func toAdminUserResponse(u *model.User) adminUserResponse {
	return adminUserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
	}
}

// ListUsers returns all accounts ordered by id
func ListUsers(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var users []model.User
	if result := database.GetDB().Order("id").Find(&users); result.Error != nil {
		log.Error("Failed to list users", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve users"})
	}

	out := make([]adminUserResponse, 0, len(users))
	for i := range users {
		out = append(out, toAdminUserResponse(&users[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// GetUser returns a single account by id
func GetUser(c echo.Context) error {
	user, err := fetchUserParam(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	return c.JSON(http.StatusOK, toAdminUserResponse(user))
}

// UpdateUser updates the name and activity/staff flags of an account
func UpdateUser(c echo.Context) error {
	log := logger.FromContext(c)

	user, err := fetchUserParam(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	var req adminUpdateUserRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.IsStaff != nil {
		user.IsStaff = *req.IsStaff
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Save(user).Error; err != nil {
		log.Error("Failed to update user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update user"})
	}

	log.Info("User updated by admin", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, toAdminUserResponse(user))
}

// DeleteUser removes an account and cascades to everything it owns
func DeleteUser(c echo.Context) error {
	log := logger.FromContext(c)

	user, err := fetchUserParam(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	var tokens int64
	database.GetDB().Model(&model.AuthToken{}).Where("user_id = ?", user.ID).Count(&tokens)

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := model.PurgeUser(database.GetDB(), user.ID); err != nil {
		log.Error("Failed to delete user", zap.Uint("user_id", user.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete user"})
	}
	// Keep the gauge in step with the purged token row
	prometheus.ActiveTokensGauge.Sub(float64(tokens))

	log.Info("User deleted by admin", zap.Uint("user_id", user.ID))
	return c.NoContent(http.StatusNoContent)
}

func fetchUserParam(c echo.Context) (*model.User, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, err
	}
	var user model.User
	if result := database.GetDB().First(&user, uint(id)); result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}
