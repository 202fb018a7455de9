package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/biztime"
	apperrors "github.com/alissayuxuan/OMNI-SYS/internal/shared/errors"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/utils"
)

type AuthHandler struct {
	issuer tokenIssuer
	logger logger.Interface
}

func NewAuthHandler(issuer tokenIssuer, log logger.Interface) *AuthHandler {
	return &AuthHandler{
		issuer: issuer,
		logger: log,
	}
}

type TokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

type TokenResponse struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	ExpiresIn int64  `json:"expires_in"`
}

func newTokenResponse(pair *comm.TokenPair) TokenResponse {
	expiresIn := int64(pair.ExpiresAt.Sub(biztime.NowUTC()) / time.Second)
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenResponse{
		Access:    pair.Access,
		Refresh:   pair.Refresh,
		ExpiresIn: expiresIn,
	}
}

// IssueToken handles POST /api/auth/token
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("username and password are required"))
		return
	}

	pair, err := h.issuer.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondIssueError(c, err, "username", req.Username)
		return
	}

	utils.OKResponse(c, newTokenResponse(pair))
}

// RefreshToken handles POST /api/auth/token/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("refresh token is required"))
		return
	}

	pair, err := h.issuer.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		h.respondIssueError(c, err)
		return
	}

	utils.OKResponse(c, newTokenResponse(pair))
}

func (h *AuthHandler) respondIssueError(c *gin.Context, err error, keysAndValues ...interface{}) {
	if errors.Is(err, comm.ErrCredentials) {
		h.logger.Warnw("token request rejected", append(keysAndValues, "error", err)...)
		utils.ErrorResponseWithError(c, apperrors.NewUnauthorizedError("invalid credentials"))
		return
	}
	h.logger.Errorw("failed to issue token", append(keysAndValues, "error", err)...)
	utils.ErrorResponseWithError(c, err)
}
