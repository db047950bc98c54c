package shared

import (
	"net/http"
	"strconv"
)

// Page bounds a listing query.
type Page struct {
	Limit int
	Skip  int
}

// Clamp normalises user-supplied paging values; a missing or oversized limit
// collapses to maxLimit.
func (p Page) Clamp(maxLimit int) Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit < 0 {
		p.Limit = 0
	}
	if maxLimit > 0 && (p.Limit <= 0 || p.Limit > maxLimit) {
		p.Limit = maxLimit
	}
	return p
}

// PageFromRequest reads limit and skip query parameters. Malformed values
// fall back to zero and are normalised by Clamp.
func PageFromRequest(r *http.Request) Page {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	return Page{Limit: limit, Skip: skip}
}
