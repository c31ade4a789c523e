package middleware

import (
	"collaborative-canvas-backend/internal/auth"
	"collaborative-canvas-backend/internal/errors"
	"strings"

	"github.com/gin-gonic/gin"
)

type Auth struct {
	Verifier       *auth.Verifier
	InternalSecret string
}

// AuthMiddleware resolves the verified user id from the bearer token and
// stores it in the request context. Everything downstream only ever sees
// the identity, never the credential.
func (m *Auth) AuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		var token string
		tokenQuery := ctx.Query("token")

		if authHeader != "" {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else if tokenQuery != "" {
			token = tokenQuery
		} else {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}

		userID, err := m.Verifier.VerifyAndExtract(token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		ctx.Set("user_id", userID)
		ctx.Next()
	}
}

// InternalAuthMiddleware guards server-to-server endpoints (sync engine,
// maintenance) with a shared secret.
func (m *Auth) InternalAuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := strings.TrimPrefix(
			ctx.GetHeader("Authorization"),
			"Bearer ",
		)

		if token != m.InternalSecret {
			ctx.Error(errors.Unauthorized("Unauthorized internal call!", nil))
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}
