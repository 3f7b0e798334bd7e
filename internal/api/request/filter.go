package request

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/edvin/peacock/internal/model"
)

// ListParams holds pagination and filter parameters.
type ListParams struct {
	Limit      int
	Cursor     string
	Statuses   []model.Status
	Definition string
}

// ParseListParams extracts list parameters from the query string. status
// accepts a comma separated list.
func ParseListParams(r *http.Request) (ListParams, error) {
	pg := ParsePagination(r)
	p := ListParams{
		Limit:      pg.Limit,
		Cursor:     pg.Cursor,
		Definition: r.URL.Query().Get("definition"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s, err := model.ParseStatus(strings.TrimSpace(part))
			if err != nil {
				return ListParams{}, fmt.Errorf("validation error: %w", err)
			}
			p.Statuses = append(p.Statuses, s)
		}
	}
	return p, nil
}
