package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// V2Response standard API response
type V2Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *V2Error    `json:"error,omitempty"`
}

// V2Error error details
type V2Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// V2Success returns a success response
func V2Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, V2Response{
		Success: true,
		Data:    data,
	})
}

// V2Created returns a 201 Created response
func V2Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, V2Response{
		Success: true,
		Data:    data,
	})
}

// V2ErrorResponse returns an error response
func V2ErrorResponse(c *gin.Context, status int, message string, err error) {
	v2Err := &V2Error{
		Code:    getErrorCode(status),
		Message: message,
	}
	if err != nil && status < http.StatusInternalServerError {
		v2Err.Details = err.Error()
	}
	c.JSON(status, V2Response{
		Success: false,
		Error:   v2Err,
	})
}

// V2ErrorFrom writes err with the status derived from the error taxonomy
func V2ErrorFrom(c *gin.Context, err error, fallback string) {
	status := StatusFor(err)
	message := fallback
	switch status {
	case http.StatusNotFound:
		message = "Conversation not found"
		if IsUserNotFound(err) {
			message = "User not found"
		}
	case http.StatusForbidden:
		message = "Access denied"
	case http.StatusBadRequest:
		message = ValidationMessage(err)
	}
	V2ErrorResponse(c, status, message, err)
}

// getErrorCode generates error code from HTTP status
func getErrorCode(status int) string {
	switch status {
	case 400:
		return "BAD_REQUEST"
	case 401:
		return "UNAUTHORIZED"
	case 403:
		return "FORBIDDEN"
	case 404:
		return "NOT_FOUND"
	case 409:
		return "CONFLICT"
	case 429:
		return "TOO_MANY_REQUESTS"
	case 500:
		return "INTERNAL_SERVER_ERROR"
	default:
		return "ERROR"
	}
}
