package http

import (
	"net/url"
	"strconv"
)

// MaxPage is the largest page number /exchanges accepts.
const MaxPage = 1_000_000

// ListExchangesQuery is the DTO for paging through exchange history.
type ListExchangesQuery struct {
	Page     int `validate:"gte=1,lte=1000000"`
	PageSize int `validate:"gte=1,lte=500"`
}

// parseListExchangesQuery reads page and page_size, defaulting to 1 and 20.
// A non-numeric value is kept as 0 so validation rejects it.
func parseListExchangesQuery(q url.Values) ListExchangesQuery {
	out := ListExchangesQuery{Page: 1, PageSize: 20}
	if v := q.Get("page"); v != "" {
		out.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("page_size"); v != "" {
		out.PageSize, _ = strconv.Atoi(v)
	}
	return out
}
