package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vinylops/wrap-report/internal/service"
	"vinylops/wrap-report/internal/telegram"
)

// TelegramHandler handles init data verification requests.
type TelegramHandler struct {
	authService service.AuthService
}

func NewTelegramHandler(authService service.AuthService) *TelegramHandler {
	return &TelegramHandler{authService: authService}
}

// VerifyRequest is the inbound verification payload.
type VerifyRequest struct {
	InitData string `json:"initData" binding:"required"`
}

// Verify checks the signed init data and returns the verified fields plus a
// session token for the report endpoints.
// POST /api/telegram/verify
func (h *TelegramHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "initData required")
		return
	}

	result, token, err := h.authService.VerifyInitData(req.InitData)
	if err != nil {
		switch {
		case errors.Is(err, telegram.ErrBotTokenMissing):
			abortWithError(c, http.StatusInternalServerError, "TELEGRAM_BOT_TOKEN not configured")
		case errors.Is(err, service.ErrVerificationFailed):
			abortWithError(c, http.StatusUnauthorized, string(result.Reason))
		case errors.Is(err, service.ErrTokenGeneration):
			abortWithError(c, http.StatusInternalServerError, "Failed to create session")
		default:
			abortWithError(c, http.StatusBadRequest, "initData is not a valid query string")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":    true,
		"data":  result.Fields,
		"token": token,
	})
}
