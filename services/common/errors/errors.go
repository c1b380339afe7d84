package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error is an application error carrying the HTTP status it maps to.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
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

// Is matches on code and message so a wrapped copy of a sentinel still
// satisfies errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Wrap returns a copy of base carrying err as its cause. Sentinels are never
// mutated.
func Wrap(base *Error, err error) *Error {
	return &Error{Code: base.Code, Message: base.Message, Err: err}
}

// StatusCode maps err to an HTTP status, 500 for anything untyped.
func StatusCode(err error) int {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// Respond writes the standard failure body. Untyped errors are reported with
// a generic message so internal detail never reaches the client.
func Respond(c *gin.Context, err error) {
	var appErr *Error
	if !stderrors.As(err, &appErr) {
		appErr = ErrInternalServer
	}
	c.AbortWithStatusJSON(appErr.Code, gin.H{"success": false, "message": appErr.Message})
}

var (
	ErrBadRequest         = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized       = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden          = New(http.StatusForbidden, "Forbidden", nil)
	ErrNotFound           = New(http.StatusNotFound, "Not found", nil)
	ErrInternalServer     = New(http.StatusInternalServerError, "Internal server error", nil)
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "Service unavailable", nil)
)

// Checkout saga
var (
	ErrEmptyCart             = New(http.StatusBadRequest, "Cart is empty", nil)
	ErrInvalidCart           = New(http.StatusBadRequest, "Cart contains invalid items", nil)
	ErrInvalidOrderID        = New(http.StatusBadRequest, "Invalid order id", nil)
	ErrOrderNotFound         = New(http.StatusNotFound, "Order not found", nil)
	ErrOrderNotCancellable   = New(http.StatusBadRequest, "Order can no longer be cancelled", nil)
	ErrInvalidPaymentRequest = New(http.StatusBadRequest, "Invalid payment request", nil)
	ErrPaymentNotFound       = New(http.StatusNotFound, "Payment not found", nil)
)
