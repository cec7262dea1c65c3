package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T, config RouterConfig) *Router {
	t.Helper()

	ping := AsHttpHandler("GET /items/{name}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.PathValue("name"))
	}))

	boom := AsHttpHandler("GET /panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	return NewRouter(RouterParams{
		Config:   config,
		Handlers: []*HttpHandler{ping.Handler, boom.Handler},
		Logger:   zaptest.NewLogger(t),
	})
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Mounts(t *testing.T) {
	router := newTestRouter(t, RouterConfig{APIVersion: "v2"})

	for _, target := range []string{"/items/a", "/api/v2/items/a"} {
		w := serve(router, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusOK, w.Code, target)
		assert.Equal(t, "a", w.Body.String(), target)
	}

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/items/a", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_DefaultVersion(t *testing.T) {
	router := newTestRouter(t, RouterConfig{})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/items/b", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b", w.Body.String())
}

func TestRouter_RequestID(t *testing.T) {
	router := newTestRouter(t, RouterConfig{})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/items/a", nil))
	assert.Len(t, w.Header().Get(requestIDHeader), 26)

	req := httptest.NewRequest(http.MethodGet, "/items/a", nil)
	req.Header.Set(requestIDHeader, "given")

	w = serve(router, req)
	assert.Equal(t, "given", w.Header().Get(requestIDHeader))
}

func TestRouter_RecoversPanics(t *testing.T) {
	router := newTestRouter(t, RouterConfig{})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRouter_CorsAllowAll(t *testing.T) {
	router := newTestRouter(t, RouterConfig{
		Cors: CorsConfig{AllowedOrigins: []string{"*"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/items/a", nil)
	req.Header.Set("Origin", "https://app.example.com")

	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, requestIDHeader, w.Header().Get("Access-Control-Expose-Headers"))
}

func TestRouter_CorsPreflight(t *testing.T) {
	router := newTestRouter(t, RouterConfig{
		Cors: CorsConfig{AllowedOrigins: []string{"https://app.example.com/"}},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/items/a", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")

	w := serve(router, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodPost, w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "content-type", strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_CorsDisallowed(t *testing.T) {
	router := newTestRouter(t, RouterConfig{
		Cors: CorsConfig{AllowedOrigins: []string{"https://app.example.com"}},
	})

	req := httptest.NewRequest(http.MethodOptions, "/items/a", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	w := serve(router, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/items/a", nil)
	req.Header.Set("Origin", "https://evil.example.com")

	w = serve(router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_CorsNoOrigins(t *testing.T) {
	router := newTestRouter(t, RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/items/a", nil)
	req.Header.Set("Origin", "https://app.example.com")

	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
