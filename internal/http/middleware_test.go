package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublicPathPrefix(t *testing.T) {
	tests := []struct {
		name       string
		publicPath string
		expected   string
	}{
		{name: "empty", publicPath: "", expected: ""},
		{name: "relative", publicPath: "./", expected: ""},
		{name: "root", publicPath: "/", expected: ""},
		{name: "absolute path", publicPath: "/static/", expected: "/static"},
		{name: "no trailing slash", publicPath: "/static", expected: "/static"},
		{name: "url with path", publicPath: "https://cdn.example.com/assets/", expected: "/assets"},
		{name: "url without path", publicPath: "https://cdn.example.com", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, PublicPathPrefix(tt.publicPath))
		})
	}
}

func TestStripPublicPath(t *testing.T) {
	var seen string
	handler := StripPublicPath("/static/")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Path
	}))

	tests := []struct {
		path     string
		expected string
	}{
		{path: "/static/main.js", expected: "/main.js"},
		{path: "/static/img/a.png", expected: "/img/a.png"},
		{path: "/", expected: "/"},
		{path: "/staticfile.js", expected: "/staticfile.js"},
	}

	for _, tt := range tests {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))
		require.Equal(t, tt.expected, seen, tt.path)
	}
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mark("a"), mark("b"), NoStore())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"a", "b", "handler"}, order)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
