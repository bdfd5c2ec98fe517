package http

import (
	"net/http"
	"strings"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so the first one listed sees the request first.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NoStore marks every response as uncacheable. A rebuild replaces files
// under the same names, so browsers must always revalidate.
func NoStore() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}

// PublicPathPrefix extracts the URL path prefix assets are requested under
// from a public path. Relative and empty public paths serve from the root;
// absolute URLs contribute their path component.
func PublicPathPrefix(publicPath string) string {
	p := publicPath
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
		slash := strings.Index(p, "/")
		if slash < 0 {
			return ""
		}
		p = p[slash:]
	}
	if !strings.HasPrefix(p, "/") {
		return ""
	}
	return strings.TrimSuffix(p, "/")
}

// StripPublicPath removes the public path prefix from request paths so
// assets referenced as /static/main.js are found as main.js. Requests
// outside the prefix pass through unchanged, which keeps the page itself
// reachable at /.
func StripPublicPath(publicPath string) Middleware {
	prefix := PublicPathPrefix(publicPath)
	return func(next http.Handler) http.Handler {
		if prefix == "" {
			return next
		}
		stripped := http.StripPrefix(prefix, next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == prefix || strings.HasPrefix(r.URL.Path, prefix+"/") {
				stripped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
