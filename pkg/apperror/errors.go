// Package apperror defines the error taxonomy shared by every layer of the
// service and its mapping onto HTTP status codes. Callers match with errors.Is
// and wrap with fmt.Errorf("...: %w", err).
package apperror

import (
	"errors"
	"net/http"

	"writingstuff/pkg/logger"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrTooLarge             = errors.New("payload too large")
	ErrRateLimited          = errors.New("rate limited")
)

var statuses = []struct {
	err    error
	status int
}{
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrNotFound, http.StatusNotFound},
	{ErrConflict, http.StatusConflict},
	{ErrUnsupportedMediaType, http.StatusUnsupportedMediaType},
	{ErrInvalidArgument, http.StatusBadRequest},
	{ErrTooLarge, http.StatusRequestEntityTooLarge},
	{ErrRateLimited, http.StatusTooManyRequests},
}

// Status returns the HTTP status for err. Errors outside the taxonomy are 500.
func Status(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Write reports err to the client. Internal errors are logged and replaced by
// a generic message so causes never leak.
func Write(w http.ResponseWriter, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		logger.Sugar.Errorf("Internal error: %v", err)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
