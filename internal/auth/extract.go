package auth

import (
	"net/http"
	"strings"
)

// CookieName is the cookie that carries the token between requests.
const CookieName = "token"

// TokenFromRequest extracts the bearer token from a request. The
// cookie takes precedence; the Authorization header is the fallback.
// An empty return means no token was supplied.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value
		}
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
