package middleware

import (
	"net/http"
	"strings"
)

// CORSConfig answers cross-origin requests for browser clients of the
// registry. With no configured origins the middleware is a pass-through,
// which is the default for fieldbus gateways talking server to server.
type CORSConfig struct {
	allowAll bool
	origins  map[string]struct{}
	methods  string
	headers  string
}

// NewCORSConfig parses a comma-separated origin list. "*" allows any origin.
func NewCORSConfig(originsCSV, methods, headers string) *CORSConfig {
	c := &CORSConfig{
		origins: map[string]struct{}{},
		methods: methods,
		headers: headers,
	}
	for _, o := range strings.Split(originsCSV, ",") {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			c.allowAll = true
		default:
			c.origins[o] = struct{}{}
		}
	}
	return c
}

func (c *CORSConfig) allowOrigin(origin string) (string, bool) {
	if c.allowAll {
		return "*", true
	}
	if _, ok := c.origins[origin]; ok {
		return origin, true
	}
	return "", false
}

// Handle sets the CORS response headers for allowed origins and terminates
// OPTIONS preflights with a 204.
func (c *CORSConfig) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || (!c.allowAll && len(c.origins) == 0) {
			next.ServeHTTP(w, r)
			return
		}

		if allow, ok := c.allowOrigin(origin); ok {
			w.Header().Set("Access-Control-Allow-Origin", allow)
			w.Header().Set("Access-Control-Allow-Methods", c.methods)
			w.Header().Set("Access-Control-Allow-Headers", c.headers)
			if allow != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
