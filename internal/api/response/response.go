package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/edvin/peacock/internal/core"
	"github.com/edvin/peacock/internal/store"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteServiceError writes err with the status code matching its cause.
func WriteServiceError(w http.ResponseWriter, err error) {
	WriteError(w, StatusFor(err), err.Error())
}

// StatusFor maps a service error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrIllegalTransition),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, core.ErrNotEvaluable):
		return http.StatusConflict
	case strings.Contains(err.Error(), "validation error"):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Accepted is returned by endpoints that hand work to the orchestrator.
type Accepted struct {
	RequestID  string `json:"request_id"`
	InstanceID string `json:"instance_id"`
}

// PaginatedResponse wraps a list with pagination metadata.
type PaginatedResponse struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// WritePaginated writes a paginated JSON response.
func WritePaginated(w http.ResponseWriter, status int, items any, nextCursor string, hasMore bool) {
	WriteJSON(w, status, PaginatedResponse{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	})
}
