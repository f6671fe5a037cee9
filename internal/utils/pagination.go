package utils

import (
	"fmt"
	"net/http"
	"strconv"

	"ms-booking/internal/models"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ParsePage reads skip and limit from the query string. Missing values fall
// back to 0 and defaultLimit. A limit above MaxLimit is rejected rather than
// truncated.
func ParsePage(r *http.Request, defaultLimit int) (models.Page, error) {
	page := models.Page{Skip: 0, Limit: defaultLimit}
	q := r.URL.Query()

	if v := q.Get("skip"); v != "" {
		skip, err := strconv.Atoi(v)
		if err != nil || skip < 0 {
			return page, fmt.Errorf("%w: skip must be a non-negative integer", models.ErrValidation)
		}
		page.Skip = skip
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return page, fmt.Errorf("%w: limit must be a positive integer", models.ErrValidation)
		}
		if limit > MaxLimit {
			return page, fmt.Errorf("%w: limit must not exceed %d", models.ErrValidation, MaxLimit)
		}
		page.Limit = limit
	}
	return page, nil
}
