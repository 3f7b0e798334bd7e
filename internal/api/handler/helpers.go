package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/peacock/internal/api/request"
	"github.com/edvin/peacock/internal/api/response"
)

// pathID reads the {id} URL parameter. It writes a 400 and returns false
// when the parameter is missing.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

// nextCursor returns the cursor for the page after items.
func nextCursor[T any](items []T, hasMore bool, id func(T) string) string {
	if !hasMore || len(items) == 0 {
		return ""
	}
	return id(items[len(items)-1])
}
