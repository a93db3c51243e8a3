package middleware

import (
	"net/http"
	"strings"
)

// publicPath reports whether a request may pass without authentication.
// The status lamp and its websocket stay open so the passive display can
// run unattended; metrics stay open for scrapers.
func publicPath(path string) bool {
	switch path {
	case "/login", "/auth/login", "/api/status", "/api/view", "/metrics":
		return true
	}
	return strings.HasPrefix(path, "/static/")
}

// AuthMiddleware gates the dashboard behind the static password cookie.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie("authenticated")
		if err != nil || cookie.Value != "true" {
			// API requests get 401, page requests go to the login form.
			if r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				strings.HasPrefix(r.URL.Path, "/api/") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
