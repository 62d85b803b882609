// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tempctl-service/pkg/driver"
)

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	response := APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{
		Code:    getErrorCode(statusCode),
		Message: message,
	}

	if err != nil {
		apiError.Details = err.Error()
	}

	response := APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// DriverErrorResponse maps driver error kinds onto HTTP statuses so API
// clients can tell a dead serial link from a misbehaving instrument
func DriverErrorResponse(c *gin.Context, message string, err error) {
	var timeoutErr *driver.TimeoutError
	var parseErr *driver.ParseError
	var deviceErr *driver.DeviceError

	switch {
	case errors.As(err, &timeoutErr):
		respondDriverError(c, http.StatusGatewayTimeout, "DEVICE_TIMEOUT", message, err)
	case errors.As(err, &parseErr):
		respondDriverError(c, http.StatusBadGateway, "DEVICE_PARSE_ERROR", message, err)
	case errors.As(err, &deviceErr):
		respondDriverError(c, http.StatusUnprocessableEntity, "DEVICE_ERROR", message, err)
	case errors.Is(err, driver.ErrNotConnected):
		respondDriverError(c, http.StatusConflict, "NOT_CONNECTED", message, err)
	case errors.Is(err, driver.ErrUnsupportedOp):
		respondDriverError(c, http.StatusBadRequest, "UNSUPPORTED_OPERATION", message, err)
	case errors.Is(err, driver.ErrConnectionFailed):
		respondDriverError(c, http.StatusBadGateway, "CONNECTION_FAILED", message, err)
	default:
		ErrorResponse(c, http.StatusInternalServerError, message, err)
	}
}

func respondDriverError(c *gin.Context, statusCode int, code, message string, err error) {
	response := APIResponse{
		Success: false,
		Message: message,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: err.Error(),
		},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// ValidationErrorResponse sends validation error response
func ValidationErrorResponse(c *gin.Context, errors map[string]string) {
	apiError := &APIError{
		Code:    "VALIDATION_ERROR",
		Message: "Request validation failed",
	}

	response := APIResponse{
		Success:   false,
		Message:   "Validation failed",
		Error:     apiError,
		Data:      gin.H{"validation_errors": errors},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(http.StatusBadRequest, response)
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		return requestID.(string)
	}
	return ""
}

// getErrorCode returns error code based on HTTP status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "RATE_LIMIT_EXCEEDED"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
