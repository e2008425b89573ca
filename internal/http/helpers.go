package http

import (
	"net/http"
	"strings"
)

// sanitizeInput removes control characters except tab and newlines, then
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// isHTMX reports whether the request came from an htmx form.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
