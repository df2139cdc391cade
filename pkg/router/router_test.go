package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func named(name string) HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(name))
	}
}

func TestWildcardRoutesMatchInRegistrationOrder(t *testing.T) {
	r := New(nil)
	r.GET("/api/v1/runs", named("list"))
	r.GET("/api/v1/runs/*/tasks", named("tasks"))
	r.GET("/api/v1/runs/*", named("get"))
	r.DELETE("/api/v1/checkpoints/*/*", named("reset"))

	cases := []struct {
		method, path, want string
		status             int
	}{
		{http.MethodGet, "/api/v1/runs", "list", http.StatusOK},
		{http.MethodGet, "/api/v1/runs/abc/tasks", "tasks", http.StatusOK},
		{http.MethodGet, "/api/v1/runs/abc", "get", http.StatusOK},
		{http.MethodDelete, "/api/v1/checkpoints/sales/load", "reset", http.StatusOK},
		{http.MethodGet, "/api/v1/checkpoints/sales/load", "", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/v1/checkpoints/sales", "", http.StatusNotFound},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		r.Handler().ServeHTTP(rec, httptest.NewRequest(c.method, c.path, nil))
		assert.Equal(t, c.status, rec.Code, "%s %s", c.method, c.path)
		if c.want != "" {
			assert.Equal(t, c.want, rec.Body.String())
		}
	}
}

func TestMatchWildcardRoute(t *testing.T) {
	assert.True(t, matchWildcardRoute("/swagger/index.html", "/swagger/*"))
	assert.True(t, matchWildcardRoute("/swagger/a/b", "/swagger/*"))
	assert.False(t, matchWildcardRoute("/swagger", "/swagger/*"))
	assert.True(t, matchWildcardRoute("/a/x/c", "/a/*/c"))
	assert.False(t, matchWildcardRoute("/a/x/d", "/a/*/c"))
}
