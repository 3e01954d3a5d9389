package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminTokenHeader is accepted as an alternative to "Authorization: Bearer".
const AdminTokenHeader = "X-Admin-Token"

// AdminAuth guards mutating routes with a shared token. An empty token disables the check.
type AdminAuth struct {
	token string
}

// NewAdminAuth creates the guard.
func NewAdminAuth(token string) *AdminAuth {
	return &AdminAuth{token: strings.TrimSpace(token)}
}

// Enabled reports whether a token is required.
func (a *AdminAuth) Enabled() bool {
	return a != nil && a.token != ""
}

// Middleware rejects requests without the admin token with 401.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() || secureEqual(requestToken(r), a.token) {
			next.ServeHTTP(w, r)
			return
		}
		RecordConnectionRejected("auth")
		w.Header().Set("WWW-Authenticate", `Bearer realm="wave-arena"`)
		writeError(w, "admin token required", http.StatusUnauthorized)
	})
}

func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get(AdminTokenHeader))
}

// secureEqual compares in constant time for equal-length inputs.
func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
