package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response is the JSON envelope returned by every endpoint.
type Response struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Timestamp  time.Time   `json:"timestamp"`
	Error      *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// JSON writes an envelope with the given status.
func JSON(c *gin.Context, status int, success bool, message string, data interface{}, info *ErrorInfo) {
	c.JSON(status, Response{
		Success:    success,
		Data:       data,
		Message:    message,
		StatusCode: status,
		Timestamp:  now(),
		Error:      info,
	})
}

// Success sends a 200 response.
func Success(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusOK, true, message, data, nil)
}

// Created sends a 201 response.
func Created(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusCreated, true, message, data, nil)
}

// Error sends an error response.
func Error(c *gin.Context, statusCode int, code, message string) {
	JSON(c, statusCode, false, message, nil, &ErrorInfo{Code: code, Message: message})
}

// ErrorWithData sends an error response that still carries a data payload,
// used when a mutation partially completed.
func ErrorWithData(c *gin.Context, statusCode int, code, message string, data interface{}) {
	JSON(c, statusCode, false, message, data, &ErrorInfo{Code: code, Message: message})
}

// ValidationError sends a 400 response listing the offending fields.
func ValidationError(c *gin.Context, message string, fields map[string]string) {
	JSON(c, http.StatusBadRequest, false, message, nil, &ErrorInfo{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Fields:  fields,
	})
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// Forbidden sends a 403 error response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, "FORBIDDEN", message)
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, "NOT_FOUND", message)
}

// Conflict sends a 409 error response.
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, "CONFLICT", message)
}

// TooManyRequests sends a 429 error response.
func TooManyRequests(c *gin.Context, message string) {
	Error(c, http.StatusTooManyRequests, "RATE_LIMITED", message)
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}

// Abort writes an error envelope and stops the middleware chain.
func Abort(c *gin.Context, statusCode int, code, message string) {
	Error(c, statusCode, code, message)
	c.Abort()
}
