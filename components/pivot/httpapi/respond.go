package httpapi

import (
	"errors"
	"net/http"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/goliatone/go-pivot/components/pivot/commands"
	"github.com/goliatone/go-pivot/components/pivot/tablecard"
)

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps command and query errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, pivot.ErrUnknownWidget):
		return http.StatusNotFound
	case errors.Is(err, pivot.ErrMissingWidgetID),
		errors.Is(err, pivot.ErrInvalidLevel),
		errors.Is(err, pivot.ErrUnknownEvent),
		errors.Is(err, commands.ErrInvalidInput),
		errors.Is(err, tablecard.ErrNoSource):
		return http.StatusBadRequest
	case errors.Is(err, tablecard.ErrStaleResult):
		return http.StatusConflict
	case errors.Is(err, pivot.ErrNoExporter), errors.Is(err, tablecard.ErrNoExecutor):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
