package middleware

import (
	"context"
	"net/http"

	"github.com/samujjwal/rental-sub011/internal/auth"
	"github.com/samujjwal/rental-sub011/internal/transport/httpdto"
	"github.com/samujjwal/rental-sub011/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the request identity from the Authorization header.
// The token issuer is external; only verification happens here.
func AuthMiddleware(verifier auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.HeaderExtractor(c.Request)
		identity, err := verifier.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := auth.WithIdentity(c.Request.Context(), identity)
		ctx = context.WithValue(ctx, logger.UserIdKey, identity.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
