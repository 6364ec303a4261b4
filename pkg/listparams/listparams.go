// Package listparams reads the ordering, limit and equality criteria of a
// list request from its query string.
package listparams

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	OrderParam = "order"
	LimitParam = "limit"
)

// Params holds list parameters extracted from a request.
type Params struct {
	// Order is a field name, "-field" for descending. Empty keeps backend order.
	Order string
	// Limit truncates the result; 0 means no limit.
	Limit int
	// Criteria maps field names to the exact value they must equal.
	Criteria map[string]string
}

// FromContext extracts list parameters from the echo context. Every query
// parameter other than order and limit is an equality criterion. A parameter
// given more than once is rejected since criteria are single-valued.
func FromContext(c echo.Context) (Params, error) {
	query := c.QueryParams()
	p := Params{
		Order:    strings.TrimSpace(query.Get(OrderParam)),
		Criteria: make(map[string]string),
	}

	if raw := strings.TrimSpace(query.Get(LimitParam)); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return Params{}, fmt.Errorf("limit must be a non-negative integer, got %q", raw)
		}
		p.Limit = limit
	}

	for key, values := range query {
		if key == OrderParam || key == LimitParam {
			continue
		}
		if len(values) > 1 {
			return Params{}, fmt.Errorf("criterion %s given %d times", key, len(values))
		}
		p.Criteria[key] = values[0]
	}
	return p, nil
}

// HasCriteria reports whether the request asked for a filter rather than a
// plain list.
func (p Params) HasCriteria() bool {
	return len(p.Criteria) > 0
}

// CriteriaMap returns the criteria as a generic map for the repository.
func (p Params) CriteriaMap() map[string]interface{} {
	out := make(map[string]interface{}, len(p.Criteria))
	for k, v := range p.Criteria {
		out[k] = v
	}
	return out
}

// String renders the parameters in a stable form, used in logs.
func (p Params) String() string {
	keys := make([]string, 0, len(p.Criteria))
	for k := range p.Criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys)+2)
	for _, k := range keys {
		parts = append(parts, k+"="+p.Criteria[k])
	}
	if p.Order != "" {
		parts = append(parts, OrderParam+"="+p.Order)
	}
	if p.Limit > 0 {
		parts = append(parts, LimitParam+"="+strconv.Itoa(p.Limit))
	}
	return strings.Join(parts, "&")
}

// Response wraps a list API response.
type Response struct {
	Data  interface{} `json:"data"`
	Count int         `json:"count"`
}

func NewResponse(data interface{}, count int) *Response {
	return &Response{Data: data, Count: count}
}
