package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hrcore/leave-api/internal/models"
	"github.com/hrcore/leave-api/internal/service"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
	"github.com/hrcore/leave-api/pkg/response"
)

// ContextActorKey is the gin context key storing the resolved actor.
const ContextActorKey = "currentActor"

// JWT protects routes by requiring a valid access token. The validated
// claims are resolved into an actor context once, here, so downstream code
// never consults role names.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextActorKey, models.ActorFromClaims(claims))
		c.Next()
	}
}

// ActorFrom extracts the actor set by the JWT middleware.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}
