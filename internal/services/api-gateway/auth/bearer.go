package auth

import (
	"net/http"
	"strings"
)

// bearer pulls the token out of the Authorization header. A value without the
// Bearer scheme is taken as the raw token.
func bearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if v == "" {
		return ""
	}
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return v
}
