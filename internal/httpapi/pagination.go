package httpapi

import (
	"net/http"
	"net/url"
	"strconv"

	domainerrors "github.com/bookstore/services/reviews/internal/errors"
	"github.com/bookstore/services/reviews/internal/service"
	"github.com/gin-gonic/gin"
)

// Pagination describes one page of a listing and links to its neighbours.
type Pagination struct {
	Total        int64           `json:"total"`
	CurrentPage  int             `json:"current_page"`
	ItemsPerPage int             `json:"items_per_page"`
	TotalPages   int             `json:"total_pages"`
	FirstPage    int             `json:"first_page"`
	LastPage     int             `json:"last_page"`
	FirstItem    int64           `json:"first_item"`
	LastItem     int64           `json:"last_item"`
	Links        PaginationLinks `json:"links"`
}

// PaginationLinks are absolute URLs; Prev and Next are omitted at the ends.
type PaginationLinks struct {
	First string `json:"first"`
	Last  string `json:"last"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
}

// BuildPagination renders the pagination block for total items split into
// pages of limit, for the page being served at route. Query parameters of r
// other than page and limit are carried into every link. An empty result
// still has one (empty) last page so that first and last links are valid.
func BuildPagination(r *http.Request, total int64, page, limit int, route string) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	lastPage := max(totalPages, 1)

	p := Pagination{
		Total:        total,
		CurrentPage:  page,
		ItemsPerPage: limit,
		TotalPages:   totalPages,
		FirstPage:    1,
		LastPage:     lastPage,
	}

	if page >= 1 && page <= totalPages {
		start := int64(page-1) * int64(limit)
		p.FirstItem = start + 1
		p.LastItem = min(start+int64(limit), total)
	}

	base := baseURL(r) + route
	query := r.URL.Query()
	link := func(n int) string {
		query.Set("page", strconv.Itoa(n))
		query.Set("limit", strconv.Itoa(limit))
		return base + "?" + query.Encode()
	}

	p.Links.First = link(1)
	p.Links.Last = link(lastPage)
	if page > 1 {
		p.Links.Prev = link(min(page-1, lastPage))
	}
	if page < totalPages {
		p.Links.Next = link(page + 1)
	}
	return p
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// pageParams reads page and limit from the query string. Missing values take
// the defaults, limit is capped, and anything unparsable, below 1 or past
// service.MaxPage is a validation error.
func pageParams(c *gin.Context) (page, limit int, err error) {
	fields := map[string]string{}

	page = service.DefaultPage
	if raw, ok := c.GetQuery("page"); ok {
		if page, err = strconv.Atoi(raw); err != nil || page < 1 {
			fields["page"] = "must be a positive integer"
		} else if page > service.MaxPage {
			fields["page"] = "must not exceed " + strconv.Itoa(service.MaxPage)
		}
	}

	limit = service.DefaultLimit
	if raw, ok := c.GetQuery("limit"); ok {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 {
			fields["limit"] = "must be a positive integer"
		}
	}

	if len(fields) > 0 {
		return 0, 0, domainerrors.ValidationWithDetails("invalid pagination parameters", fields)
	}
	return page, min(limit, service.MaxLimit), nil
}

// routeURL builds the path of a route from path segments, escaping each.
func routeURL(segments ...string) string {
	path := ""
	for _, s := range segments {
		path += "/" + url.PathEscape(s)
	}
	return path
}
