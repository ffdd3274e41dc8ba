// Package apperr defines the error conditions shared by the sync engine,
// the WhatsApp session and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAuthenticationMissing = errors.New("authentication material missing")
	ErrNotConnected          = errors.New("whatsapp not connected")
	ErrNotFound              = errors.New("not found")
	ErrSchemaMismatch        = errors.New("spreadsheet schema mismatch")
	ErrUnsupportedMediaKind  = errors.New("unsupported media kind")
	ErrUpstream              = errors.New("upstream failure")
	ErrVersionConflict       = errors.New("document version conflict")
	ErrInvalidInput          = errors.New("invalid input")
)

// Upstream wraps an I/O failure of the spreadsheet or the mirror store.
// Both ErrUpstream and the underlying cause stay reachable through errors.Is.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstream) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}

// HTTPStatus maps an error to the status code returned by the API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnsupportedMediaKind):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSchemaMismatch), errors.Is(err, ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrAuthenticationMissing), errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
