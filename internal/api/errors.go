package api

import (
	"net/http"

	"github.com/pixell07/localrag/internal/apperr"
)

// envelope is the error body shape spec.md §6 names:
// {error, message, details?}.
type envelope struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeAppError converts any error into the HTTP error envelope,
// mapping *apperr.Error through its own Kind/Status and falling back to
// a generic 500 for anything unrecognized.
func writeAppError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if apperr.As(err, &appErr) {
		writeJSON(w, appErr.HTTPStatus(), envelope{
			Error:   string(appErr.Kind),
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, envelope{
		Error:   "InternalError",
		Message: err.Error(),
	})
}

func apperrUnauthorized(message string) *apperr.Error {
	return apperr.New(apperr.KindValidation, message).WithStatus(http.StatusUnauthorized)
}

func apperrForbidden(message string) *apperr.Error {
	return apperr.New(apperr.KindValidation, message).WithStatus(http.StatusForbidden)
}
