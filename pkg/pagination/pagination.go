package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Window is a validated page/limit pair read from the request query.
// Repositories translate it to an offset themselves, so the window carries
// only what the API contract names.
type Window struct {
	Page  int
	Limit int
}

// Parse reads page and limit from the query string, clamping both into
// range. Anything missing or unparseable falls back to the defaults.
func Parse(c *gin.Context) Window {
	w := Window{Page: 1, Limit: defaultLimit}
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		w.Page = page
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		w.Limit = limit
	}
	if w.Limit > maxLimit {
		w.Limit = maxLimit
	}
	return w
}
