// Package api contains models for API communication
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/n1rna/invadmin/internal/entity"
)

// ErrNotFound matches API errors with status 404.
var ErrNotFound = errors.New("not found")

// QueryParams selects a page of a collection.
type QueryParams struct {
	Page    int
	Size    int
	Sort    []string          // e.g. "name,asc"
	Filters map[string]string // e.g. "name.contains" -> "bolt"
}

// Values encodes the params as URL query values. Zero page/size are omitted.
func (p QueryParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Size > 0 {
		v.Set("size", strconv.Itoa(p.Size))
	}
	for _, s := range p.Sort {
		v.Add("sort", s)
	}

	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, p.Filters[k])
	}
	return v
}

// Page is one page of a collection query.
type Page struct {
	Records []entity.WireRecord
	Total   int64
}

// APIError represents an API error response (problem details)
type APIError struct {
	Status  int    `json:"status"`
	Title   string `json:"title,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = e.Title
	}
	if detail == "" {
		detail = http.StatusText(e.Status)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, detail)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{}
	if len(body) > 0 && json.Unmarshal(body, apiErr) == nil {
		apiErr.Status = status
		return apiErr
	}
	apiErr.Status = status
	if len(body) > 0 {
		apiErr.Detail = string(body)
	}
	return apiErr
}
