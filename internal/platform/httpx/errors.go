// Package httpx holds the JSON and problem+json response helpers shared by
// the HTTP surfaces.
package httpx

import (
	"errors"
	"net/http"
)

// Errors wrapped with these are rendered with a matching status.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("upstream unavailable")
)

type mapping struct {
	target error
	status int
	title  string
}

var mappings = []mapping{
	{ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{ErrNotFound, http.StatusNotFound, "Not Found"},
	{ErrConflict, http.StatusConflict, "Conflict"},
	{ErrUnavailable, http.StatusBadGateway, "Upstream Unavailable"},
}

func lookup(err error) mapping {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m
		}
	}
	return mapping{status: http.StatusInternalServerError, title: "Internal Error"}
}

// RespondError writes err as a problem response. Unmapped errors become a
// 500 whose detail is withheld.
func RespondError(w http.ResponseWriter, err error) {
	m := lookup(err)
	detail := ""
	if m.target != nil {
		detail = err.Error()
	}
	Problem(w, m.status, m.title, detail)
}
