package roblox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoblox struct {
	users        map[string]int64
	descriptions map[int64]string
	avatars      map[int64]string
	fail         bool
	avatarCalls  int
	mu           sync.Mutex
}

func (f *fakeRoblox) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/usernames/users", func(w http.ResponseWriter, r *http.Request) {
		if f.fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body struct {
			Usernames          []string `json:"usernames"`
			ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.ExcludeBannedUsers)

		data := []map[string]any{}
		if id, ok := f.users[body.Usernames[0]]; ok {
			data = append(data, map[string]any{"id": id, "name": body.Usernames[0], "displayName": "Display"})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	mux.HandleFunc("GET /v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		for id, desc := range f.descriptions {
			if r.PathValue("id") == jsonNumber(id) {
				json.NewEncoder(w).Encode(map[string]any{"id": id, "description": desc})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /v1/users/avatar-headshot", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.avatarCalls++
		f.mu.Unlock()
		assert.Equal(t, "150x150", r.URL.Query().Get("size"))
		assert.Equal(t, "Png", r.URL.Query().Get("format"))
		assert.Equal(t, "false", r.URL.Query().Get("isCircular"))
		data := []map[string]any{}
		for id, u := range f.avatars {
			if r.URL.Query().Get("userIds") == jsonNumber(id) {
				data = append(data, map[string]any{"targetId": id, "state": "Completed", "imageUrl": u})
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	return mux
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func newTestClient(t *testing.T, f *fakeRoblox, cache AvatarCache) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Options{
		UsersURL:      srv.URL,
		ThumbnailsURL: srv.URL,
		Phrase:        "AnomiDate",
		Timeout:       2 * time.Second,
		Avatars:       cache,
	})
}

func TestResolveHandle(t *testing.T) {
	f := &fakeRoblox{users: map[string]int64{"builderman": 156}}
	c := newTestClient(t, f, nil)

	u, err := c.ResolveHandle(context.Background(), " builderman ")
	require.NoError(t, err)
	assert.Equal(t, int64(156), u.ID)

	_, err = c.ResolveHandle(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errors.Is(err, ErrUpstreamUnavailable))
}

func TestResolveHandleUpstreamFailureIsNotFound(t *testing.T) {
	f := &fakeRoblox{fail: true}
	c := newTestClient(t, f, nil)

	_, err := c.ResolveHandle(context.Background(), "builderman")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestIsVerifiedCaseInsensitive(t *testing.T) {
	f := &fakeRoblox{descriptions: map[int64]string{
		1: "hello there ANOMIDATE fan",
		2: "nothing to see",
	}}
	c := newTestClient(t, f, nil)

	assert.True(t, c.IsVerified(context.Background(), 1))
	assert.False(t, c.IsVerified(context.Background(), 2))
	assert.False(t, c.IsVerified(context.Background(), 3))
}

func TestUnreachableUpstreamDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(Options{UsersURL: srv.URL, ThumbnailsURL: srv.URL, Phrase: "x", Timeout: time.Second})

	_, err := c.ResolveHandle(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, c.IsVerified(context.Background(), 1))
	assert.Equal(t, "", c.AvatarURL(context.Background(), 1))
}

func TestTimeoutDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{UsersURL: srv.URL, ThumbnailsURL: srv.URL, Phrase: "x", Timeout: 50 * time.Millisecond})
	assert.False(t, c.IsVerified(context.Background(), 1))
}

type memoryAvatars struct {
	m map[int64]string
}

func (m *memoryAvatars) GetAvatar(_ context.Context, id int64) (string, bool, error) {
	v, ok := m.m[id]
	return v, ok, nil
}

func (m *memoryAvatars) SetAvatar(_ context.Context, id int64, url string) error {
	m.m[id] = url
	return nil
}

func TestAvatarURLCached(t *testing.T) {
	f := &fakeRoblox{avatars: map[int64]string{9: "https://tr.rbxcdn.com/9.png"}}
	cache := &memoryAvatars{m: map[int64]string{}}
	c := newTestClient(t, f, cache)

	assert.Equal(t, "https://tr.rbxcdn.com/9.png", c.AvatarURL(context.Background(), 9))
	assert.Equal(t, "https://tr.rbxcdn.com/9.png", c.AvatarURL(context.Background(), 9))
	assert.Equal(t, 1, f.avatarCalls)

	// Misses are not cached.
	assert.Equal(t, "", c.AvatarURL(context.Background(), 10))
	assert.Equal(t, "", c.AvatarURL(context.Background(), 10))
	assert.Equal(t, 3, f.avatarCalls)
}
