package dashboard

import (
	"fmt"
	"net/url"

	"github.com/oapi-codegen/runtime"
)

// query collects form-style query parameters.
type query struct {
	values url.Values
	err    error
}

func newQuery() *query {
	return &query{values: url.Values{}}
}

// add styles value as an exploded form parameter. Zero values are skipped.
func (q *query) add(name string, value any) *query {
	if q.err != nil || isZero(value) {
		return q
	}

	styled, err := runtime.StyleParamWithLocation("form", true, name, runtime.ParamLocationQuery, value)
	if err != nil {
		q.err = fmt.Errorf("query parameter %s: %w", name, err)
		return q
	}
	parsed, err := url.ParseQuery(styled)
	if err != nil {
		q.err = fmt.Errorf("query parameter %s: %w", name, err)
		return q
	}
	for k, vs := range parsed {
		for _, v := range vs {
			q.values.Add(k, v)
		}
	}
	return q
}

func (q *query) build() (url.Values, error) {
	return q.values, q.err
}

func isZero(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case int:
		return v == 0
	default:
		return false
	}
}

// pageQuery is the page/limit pair every list endpoint takes.
func pageQuery(page, limit int) (url.Values, int, int, error) {
	page, limit = normalizePage(page, limit)
	values, err := newQuery().add("page", page).add("limit", limit).build()
	return values, page, limit, err
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	return page, limit
}
