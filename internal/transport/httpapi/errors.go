package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"pixelcircuits.dev/internal/persistence/document"
	"pixelcircuits.dev/internal/persistence/store"
	"pixelcircuits.dev/internal/protocol"
	"pixelcircuits.dev/internal/sim/circuit"
)

// APIError is the JSON body of every failed request. Code uses the wire
// protocol's error codes.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func newError(status int, code, message string, cause error) *APIError {
	err := &APIError{Status: status, Code: code, Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

func badRequest(message string, cause error) *APIError {
	return newError(http.StatusBadRequest, protocol.ErrBadRequest, message, cause)
}

func notFound(resource, id string) *APIError {
	return newError(http.StatusNotFound, protocol.ErrNotFound, fmt.Sprintf("%s not found: %s", resource, id), nil)
}

// fromErr maps store, document and circuit errors onto API errors.
func fromErr(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, store.ErrNotFound), errors.Is(err, circuit.ErrNotFound):
		return newError(http.StatusNotFound, protocol.ErrNotFound, "not found", err)
	case errors.Is(err, store.ErrForbidden):
		return newError(http.StatusForbidden, protocol.ErrForbidden, "forbidden", err)
	case errors.Is(err, store.ErrAuth):
		return newError(http.StatusUnauthorized, protocol.ErrUnauthorized, "invalid credentials", nil)
	case errors.Is(err, store.ErrExists):
		return newError(http.StatusConflict, protocol.ErrConflict, "already exists", err)
	case errors.Is(err, document.ErrVersion), errors.Is(err, document.ErrMalformed):
		return badRequest("invalid document", err)
	case errors.Is(err, circuit.ErrMode):
		return newError(http.StatusConflict, protocol.ErrMode, "wrong circuit mode", err)
	default:
		return newError(http.StatusInternalServerError, protocol.ErrInternal, "internal error", err)
	}
}

// ErrorHandler renders errors as APIError JSON.
// Usage: e.HTTPErrorHandler = httpapi.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var apiErr *APIError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		code := protocol.ErrBadRequest
		switch httpErr.Code {
		case http.StatusUnauthorized:
			code = protocol.ErrUnauthorized
		case http.StatusForbidden:
			code = protocol.ErrForbidden
		case http.StatusNotFound:
			code = protocol.ErrNotFound
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			code = protocol.ErrBusy
		default:
			if httpErr.Code >= 500 {
				code = protocol.ErrInternal
			}
		}
		apiErr = &APIError{Status: httpErr.Code, Code: code, Message: fmt.Sprintf("%v", httpErr.Message)}
	default:
		apiErr = fromErr(err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}
