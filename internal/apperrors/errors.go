package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error is an error carrying the HTTP status it should be reported with.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error.
func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Wrap returns a copy of base wrapping err.
func Wrap(base *Error, err error) *Error {
	return &Error{Code: base.Code, Message: base.Message, Err: err}
}

var (
	ErrBadRequest     = New(http.StatusBadRequest, "bad request", nil)
	ErrNotFound       = New(http.StatusNotFound, "not found", nil)
	ErrConflict       = New(http.StatusConflict, "conflict", nil)
	ErrBadGateway     = New(http.StatusBadGateway, "upstream request failed", nil)
	ErrInternalServer = New(http.StatusInternalServerError, "internal server error", nil)
)

// Mapping translates domain sentinel errors into response errors.
type Mapping struct {
	Target error
	As     *Error
}

// Resolve finds the response error for err. Errors already of type *Error
// win, then the first matching mapping, then ErrInternalServer.
func Resolve(err error, mappings ...Mapping) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, m := range mappings {
		if errors.Is(err, m.Target) {
			return Wrap(m.As, err)
		}
	}
	return Wrap(ErrInternalServer, err)
}

// Respond writes err as a JSON body and aborts the chain.
func Respond(c *gin.Context, err error, mappings ...Mapping) *Error {
	appErr := Resolve(err, mappings...)
	_ = c.Error(appErr)
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
	return appErr
}
