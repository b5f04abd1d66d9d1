// Package handlers provides the REST endpoints of the chat relay. This file
// holds the response envelope helpers shared by every endpoint.
//
//	HTTP/1.1 400 Bad Request
//	{ "success": false, "request_id": "…", "code": "missing_params", "message": "user_id is required" }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-relay/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Always false.
	Success bool `json:"success" example:"false"`
	// Echo of X-Request-ID.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go).
	Code string `json:"code" example:"missing_params"`
	// Human-readable message.
	Message string `json:"message" example:"user_id and receiver_id are required"`
}

// fail aborts with an ErrorResponse. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Strs("errors", c.Errors.Errors()).
			Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr records err on the context before failing, so access logs carry
// the cause without leaking it to the client.
func failErr(c *gin.Context, err error, status int, code, msg string) {
	_ = c.Error(err)
	fail(c, status, code, msg)
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
