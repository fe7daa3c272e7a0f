package middleware

import (
	"net/http"
	"strings"
	"time"

	"recipe-service/internal/model"
	"recipe-service/pkg/database"
	"recipe-service/pkg/logger"
	"recipe-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the opaque bearer token against the token store
// and puts the owning user into the request context.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		// Get the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		// Check if it's a Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_header")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		key := parts[1]

		// Look the token up in the database
		defer prometheus.TrackDBOperation("query")(time.Now())
		var token model.AuthToken
		result := database.GetDB().Preload("User").Where("key = ?", key).First(&token)
		if result.Error != nil {
			log.Warn("Unknown token")
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}

		if !token.User.IsActive {
			log.Warn("Token for inactive user", zap.Uint("user_id", token.UserID))
			prometheus.RecordAuthError("inactive_user")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}

		// Store the user in the context for later use
		c.Set("user", &token.User)
		log.Debug("Token validated",
			zap.Uint("user_id", token.User.ID),
			zap.String("email", token.User.Email))

		return next(c)
	}
}

// StaffMiddleware rejects authenticated callers that are not staff.
// It must run after AuthMiddleware.
func StaffMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := CurrentUser(c)
		if user == nil || !user.IsStaff {
			logger.FromContext(c).Warn("Non-staff access to admin endpoint")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "staff access required"})
		}
		return next(c)
	}
}

// CurrentUser retrieves the authenticated user from the context.
// Returns nil when the request is unauthenticated.
func CurrentUser(c echo.Context) *model.User {
	user, ok := c.Get("user").(*model.User)
	if !ok {
		return nil
	}
	return user
}
