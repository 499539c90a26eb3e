package delivery

import (
	"net/http"
	"strings"

	accountdomain "inboxpilot-backend/internal/account/domain"
	"inboxpilot-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

const accountKey = "account"

func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		acc, err := authUsecase.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(accountKey, acc)
		c.Next()
	}
}

// CurrentAccount returns the account set by AuthMiddleware.
func CurrentAccount(c *gin.Context) (*accountdomain.Account, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return nil, false
	}
	acc, ok := v.(*accountdomain.Account)
	return acc, ok
}
