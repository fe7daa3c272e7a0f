package handler

import (
	"net/http"
	"time"

	"recipe-service/internal/model"
	"recipe-service/pkg/database"
	"recipe-service/pkg/logger"
	"recipe-service/pkg/ratelimit"
	"recipe-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// loginLimiter throttles token issuance per client IP. Nil when no Redis
// is configured, in which case issuance is unthrottled.
var loginLimiter *ratelimit.RedisLimiter

// InitTokenHandler wires the optional login rate limiter
func InitTokenHandler(limiter *ratelimit.RedisLimiter) {
	loginLimiter = limiter
}

type tokenRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// IssueToken exchanges credentials for the caller's opaque bearer token.
// The token is created once per user and reused on every later issuance.
func IssueToken(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.AuthOperationsCounter.WithLabelValues("token").Inc()

	if loginLimiter != nil {
		allowed, err := loginLimiter.Allow(c.Request().Context(), c.RealIP())
		if err != nil {
			// Limiter outage must not lock everyone out
			log.Warn("Login limiter unavailable", zap.Error(err))
		} else if !allowed {
			log.Warn("Login rate limit exceeded", zap.String("ip", c.RealIP()))
			prometheus.RecordAuthError("rate_limited")
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many login attempts"})
		}
	}

	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse token request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		prometheus.RecordAuthError("missing_credentials")
		return c.JSON(http.StatusBadRequest, validationErrors(err))
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := lookupUserByEmail(req.Email)
	if err != nil || !user.CheckPassword(req.Password) || !user.IsActive {
		// Same response whether or not the email exists
		log.Warn("Authentication failed", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "unable to authenticate with provided credentials",
		})
	}

	var token model.AuthToken
	defer prometheus.TrackDBOperation("insert")(time.Now())
	result := database.GetDB().Where(model.AuthToken{UserID: user.ID}).FirstOrCreate(&token)
	if result.Error != nil {
		log.Error("Failed to issue token", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	if result.RowsAffected > 0 {
		prometheus.ActiveTokensGauge.Inc()
	}

	log.Info("Token issued", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"token": token.Key})
}
