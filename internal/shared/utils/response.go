package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/constants"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/errors"
)

// APIResponse is the envelope every JSON endpoint writes.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func OKResponse(c *gin.Context, data interface{}) {
	SuccessResponse(c, http.StatusOK, "", data)
}

func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	write(c, statusCode, APIResponse{Success: true, Data: data, Message: message})
}

// CreatedResponse writes 201 with an optional message.
func CreatedResponse(c *gin.Context, data interface{}, message ...string) {
	msg := "created"
	if len(message) > 0 {
		msg = message[0]
	}
	SuccessResponse(c, http.StatusCreated, msg, data)
}

// ErrorResponse writes a plain error with the given status.
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	write(c, statusCode, APIResponse{Error: &ErrorInfo{Type: "error", Message: message}})
}

// ErrorResponseWithError maps err onto a status and error body. Only
// AppError fields reach the client; causes and foreign errors do not.
func ErrorResponseWithError(c *gin.Context, err error) {
	appErr := errors.GetAppError(err)
	if appErr == nil {
		write(c, http.StatusInternalServerError, APIResponse{Error: &ErrorInfo{
			Type:    string(errors.ErrorTypeInternal),
			Message: constants.ErrMsgInternalServerError,
		}})
		return
	}

	write(c, errors.Status(err), APIResponse{Error: &ErrorInfo{
		Type:    string(appErr.Type),
		Message: appErr.Message,
		Details: appErr.Details,
	}})
}

func NoContentResponse(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func write(c *gin.Context, statusCode int, resp APIResponse) {
	if id, ok := c.Get(constants.ContextKeyRequestID); ok {
		resp.RequestID, _ = id.(string)
	}
	c.JSON(statusCode, resp)
}
