package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomidate/internal/views"
)

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t, 50)

	rr := ts.get("/health")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "rbxcdn.com")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 50)

	rr := ts.get("/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
}

func TestUnknownPageRendersNotFound(t *testing.T) {
	ts := newTestServer(t, 50)

	rr := ts.get("/nowhere")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "That page does not exist.")
}

func TestStaticAssets(t *testing.T) {
	ts := newTestServer(t, 50)

	rr := ts.get("/static/app.css")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAPICORSPreflight(t *testing.T) {
	ts := newTestServer(t, 50)

	req := httptest.NewRequest(http.MethodOptions, "/api/me", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := ts.do(req)

	assert.Equal(t, "https://app.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/me", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr = ts.do(req)

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestLimitPages(t *testing.T) {
	ts := newTestServer(t, 50)

	handler := ts.limitPages(NewRateLimiter(1, time.Minute))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "198.51.100.4:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusNoContent, call().Code)

	rr := call()
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "Too many attempts.")
}

func TestFlashRoundTrip(t *testing.T) {
	ts := newTestServer(t, 50)

	rr := httptest.NewRecorder()
	ts.setFlash(rr, views.FlashSuccess, "Saved & done.")
	cookie := responseCookie(rr, flashCookie)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	out := httptest.NewRecorder()
	flash := popFlash(out, req)
	require.NotNil(t, flash)
	assert.Equal(t, views.FlashSuccess, flash.Kind)
	assert.Equal(t, "Saved & done.", flash.Message)

	cleared := responseCookie(out, flashCookie)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestPopFlashIgnoresGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookie, Value: "not base64!"})
	assert.Nil(t, popFlash(httptest.NewRecorder(), req))
}
