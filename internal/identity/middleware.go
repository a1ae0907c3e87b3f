package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/civicworks/fixline/internal/reports/model"
)

const ctxActor = "fixline_actor"

// RequireActor returns a Gin middleware that enforces a valid session Bearer
// token and injects the authenticated actor into the Gin context.
func RequireActor(tokens *SessionIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}

		actor, err := claims.Actor()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
			})
			return
		}

		// Gin resumes the chain on return; calling c.Next() here would run
		// the downstream handlers before a wrapping middleware (RequireStaff)
		// gets to inspect the actor.
		c.Set(ctxActor, actor)
	}
}

// RequireStaff returns a Gin middleware that additionally rejects reporter
// accounts. It performs its own token check so routes can use it standalone.
func RequireStaff(tokens *SessionIssuer) gin.HandlerFunc {
	authenticate := RequireActor(tokens)
	return func(c *gin.Context) {
		authenticate(c)
		if c.IsAborted() {
			return
		}
		actor := ActorFromCtx(c)
		if !actor.Role.Staff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "staff role required",
			})
			return
		}
	}
}

// ActorFromCtx retrieves the authenticated actor injected by RequireActor.
// Returns the zero Actor if no actor is present in the context.
func ActorFromCtx(c *gin.Context) model.Actor {
	v, _ := c.Get(ctxActor)
	actor, _ := v.(model.Actor)
	return actor
}
