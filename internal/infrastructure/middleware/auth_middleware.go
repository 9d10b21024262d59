package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"meetprobe/internal/infrastructure/livekit"
	"meetprobe/pkg/errors"
	"meetprobe/pkg/logger"
)

// TokenValidator checks access tokens presented to the control API.
type TokenValidator interface {
	Validate(token string) (*livekit.AccessClaims, error)
}

// ControlAuthMiddleware requires a bearer token signed with the LiveKit API
// secret on mutating requests. GET, HEAD and OPTIONS pass without a token.
func ControlAuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, errors.NewAppError(errors.ErrCodePermissionDenied, "authorization header required", http.StatusUnauthorized))
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWith(c, errors.NewAppError(errors.ErrCodePermissionDenied, "invalid authorization header format", http.StatusUnauthorized))
			return
		}

		claims, err := validator.Validate(parts[1])
		if err != nil {
			abortWith(c, errors.NewAppError(errors.ErrCodePermissionDenied, err.Error(), http.StatusUnauthorized))
			return
		}

		c.Set("identity", claims.Subject)
		ctx := context.WithValue(c.Request.Context(), logger.ParticipantKey, claims.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
