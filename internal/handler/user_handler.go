package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"recipe-service/internal/middleware"
	"recipe-service/internal/model"
	"recipe-service/pkg/database"
	"recipe-service/pkg/logger"
	"recipe-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// minPasswordLength matches the min=5 rule on registration
const minPasswordLength = 5

// createUserRequest defines the payload for user registration
type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=5"`
	Name     string `json:"name"`
}

// updateMeRequest defines the payload for profile self-service updates.
// Password length is checked by hand in UpdateMe: omitempty would treat
// an empty string as absent and skip the min rule.
type updateMeRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

// userResponse is the wire representation of a profile. The password is
// never echoed.
type userResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}

// CreateUser handles user registration
func CreateUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.AuthOperationsCounter.WithLabelValues("register").Inc()

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		prometheus.RecordAuthError("invalid_registration")
		return c.JSON(http.StatusBadRequest, validationErrors(err))
	}

	user, err := model.NewUser(req.Email, req.Password, req.Name)
	if err != nil {
		log.Error("Failed to build user", zap.Error(err))
		prometheus.RecordAuthError("invalid_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"email": err.Error()})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(user); result.Error != nil {
		// The unique index on email is the duplicate check; a pre-query
		// would race with concurrent registrations
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			log.Warn("User already exists", zap.String("email", user.Email))
			prometheus.RecordAuthError("email_already_exists")
			return c.JSON(http.StatusBadRequest, echo.Map{"email": "a user with this email already exists"})
		}
		log.Error("Failed to create user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	log.Info("User registered", zap.String("email", user.Email))
	return c.JSON(http.StatusCreated, toUserResponse(user))
}

// GetMe returns the authenticated caller's profile
func GetMe(c echo.Context) error {
	prometheus.AuthOperationsCounter.WithLabelValues("profile_access").Inc()
	user := middleware.CurrentUser(c)
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// UpdateMe partially updates the caller's name and/or password
func UpdateMe(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.AuthOperationsCounter.WithLabelValues("profile_update").Inc()
	user := middleware.CurrentUser(c)

	var req updateMeRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse profile update", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"password": fmt.Sprintf("must be at least %d characters", minPasswordLength),
			})
		}
		if err := user.SetPassword(*req.Password); err != nil {
			log.Error("Failed to hash password", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "profile update failed"})
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := database.GetDB().Save(user).Error; err != nil {
		log.Error("Failed to update profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "profile update failed"})
	}

	log.Info("Profile updated", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// lookupUserByEmail fetches an account by its normalized email
func lookupUserByEmail(email string) (*model.User, error) {
	var user model.User
	result := database.GetDB().Where("email = ?", model.NormalizeEmail(email)).First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}
