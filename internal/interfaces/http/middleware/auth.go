package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/auth"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/constants"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/utils"
)

// accessTokenQuery carries the token for clients that cannot set headers,
// such as browser EventSource streams.
const accessTokenQuery = "access_token"

type AuthMiddleware struct {
	jwt    *auth.JWTService
	logger logger.Interface
}

func NewAuthMiddleware(jwt *auth.JWTService, log logger.Interface) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, logger: log}
}

// RequireAuth rejects requests without a valid access token and stores the
// token's agent in the context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c)
		if problem != "" {
			m.reject(c, problem)
			return
		}

		claims, err := m.jwt.VerifyAccess(token)
		if err != nil {
			m.logger.Warnw("access token rejected", "error", err, "client_ip", c.ClientIP())
			m.reject(c, "invalid or expired token")
			return
		}

		c.Set(constants.ContextKeyAgentID, claims.AgentID)
		c.Set(constants.ContextKeyUsername, claims.Username)
		c.Next()
	}
}

func (m *AuthMiddleware) reject(c *gin.Context, message string) {
	utils.ErrorResponse(c, http.StatusUnauthorized, message)
	c.Abort()
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter.
func bearerToken(c *gin.Context) (token, problem string) {
	header := c.GetHeader(constants.HeaderAuthorization)
	if header == "" {
		if q := c.Query(accessTokenQuery); q != "" {
			return q, ""
		}
		return "", "missing authorization token"
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", "invalid authorization header format"
	}
	return token, ""
}
