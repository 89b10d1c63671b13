package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details string      `json:"details,omitempty"`
}

// AppError is an error with the HTTP status it should be reported with
type AppError struct {
	Status  int
	Message string
	Details string
	Raw     error
}

func (e *AppError) Error() string {
	if e.Raw != nil {
		return e.Message + ": " + e.Raw.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Raw
}

func badRequest(details string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: "Bad Request", Details: details}
}

// toAppError maps domain errors onto HTTP statuses
func toAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, entity.ErrNotFound):
		return &AppError{Status: http.StatusNotFound, Message: "Not Found", Details: err.Error(), Raw: err}
	case errors.Is(err, entity.ErrInvalidProvider),
		errors.Is(err, entity.ErrInvalidInput),
		errors.Is(err, entity.ErrUnsupportedDocument):
		return &AppError{Status: http.StatusBadRequest, Message: "Bad Request", Details: err.Error(), Raw: err}
	case errors.Is(err, entity.ErrOracleUnavailable):
		return &AppError{Status: http.StatusBadGateway, Message: "Bad Gateway", Details: err.Error(), Raw: err}
	default:
		return &AppError{Status: http.StatusInternalServerError, Message: "Internal Server Error", Raw: err}
	}
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// respondError writes the error envelope. Server errors other than 502 never
// leak their cause to the client.
func (h *Handlers) respondError(c *gin.Context, err error) {
	appErr := toAppError(err)

	resp := Response{Success: false, Error: appErr.Message, Details: appErr.Details}
	if appErr.Status >= http.StatusInternalServerError {
		requestID, _ := c.Get(requestIDKey)
		h.logger.Error("Request failed",
			"request_id", requestID,
			"path", c.Request.URL.Path,
			"error", err,
		)
		if appErr.Status != http.StatusBadGateway {
			resp = Response{Success: false, Error: "Internal Server Error"}
		}
	}
	c.AbortWithStatusJSON(appErr.Status, resp)
}
