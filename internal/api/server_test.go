package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"anomidate/internal/accounts"
	"anomidate/internal/auth"
	"anomidate/internal/config"
	"anomidate/internal/db"
	"anomidate/internal/matching"
	"anomidate/internal/messaging"
	"anomidate/internal/models"
	"anomidate/internal/moderation"
	"anomidate/internal/roblox"
	"anomidate/internal/verification"
	"anomidate/internal/views"
	"anomidate/internal/ws"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "password123"
)

type fakeRoblox struct {
	accounts map[string]int64
	verified map[int64]bool
}

func (f *fakeRoblox) ResolveHandle(_ context.Context, name string) (*roblox.ExternalUser, error) {
	id, ok := f.accounts[name]
	if !ok {
		return nil, roblox.ErrNotFound
	}
	return &roblox.ExternalUser{ID: id, Name: name}, nil
}

func (f *fakeRoblox) IsVerified(_ context.Context, id int64) bool { return f.verified[id] }

func (f *fakeRoblox) Phrase() string { return "anomidate" }

func (f *fakeRoblox) AvatarURL(_ context.Context, id int64) string {
	return fmt.Sprintf("https://tr.rbxcdn.com/%d.png", id)
}

type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *recordingMailer) SendPasswordResetCode(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *recordingMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type testServer struct {
	*Server
	verifications *db.VerificationRepository
	roblox        *fakeRoblox
	mailer        *recordingMailer
	nextExternal  int64
}

func newTestServer(t *testing.T, dailyLimit int) *testServer {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{
			Name:           "anomidate",
			AllowedOrigins: []string{"https://app.example"},
		},
		RateLimits: config.RateLimitConfig{AuthPerMinute: 1000, APIPerMinute: 1000},
	}

	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	sessions, err := auth.NewSessionService(testSecret, time.Hour)
	require.NoError(t, err)

	renderer, err := views.New("anomidate")
	require.NoError(t, err)

	users := db.NewUserRepository(database)
	verifications := db.NewVerificationRepository(database)
	rb := &fakeRoblox{accounts: map[string]int64{}, verified: map[int64]bool{}}
	mailer := &recordingMailer{codes: map[string]string{}}

	engine := matching.NewEngine(users, db.NewSwipeRepository(database), db.NewQuotaRepository(database), matching.Options{
		DailyLimit: dailyLimit,
		Notifier:   hub,
	})
	srv, err := NewServer(cfg, Deps{
		DB:           database,
		Views:        renderer,
		Accounts:     accounts.NewService(users, db.NewPasswordResetRepository(database), auth.NewResetCodeService(15*time.Minute), mailer),
		Verification: verification.NewService(rb, users, verifications),
		Matching:     engine,
		Messaging:    messaging.NewService(db.NewMessageRepository(database), engine, hub),
		Moderation:   moderation.NewService(database, time.UTC),
		Avatars:      rb,
		Sessions:     sessions,
		States:       auth.NewStateSigner(testSecret),
		Hub:          hub,
	})
	require.NoError(t, err)

	return &testServer{
		Server:        srv,
		verifications: verifications,
		roblox:        rb,
		mailer:        mailer,
		nextExternal:  1000,
	}
}

// user registers an account and, when verified is set, links it to a
// Roblox account.
func (ts *testServer) user(t *testing.T, name string, verified bool) *models.User {
	t.Helper()
	ctx := context.Background()

	u, err := ts.accounts.Register(ctx, accounts.RegisterInput{Username: name, Password: testPassword})
	require.NoError(t, err)

	if verified {
		ts.nextExternal++
		require.NoError(t, ts.users.SetExternalID(ctx, u.ID, fmt.Sprint(ts.nextExternal)))
		_, err := ts.verifications.Upsert(ctx, &models.ExternalVerification{
			UserID:           u.ID,
			ExternalUsername: name + "_rbx",
			ExternalUserID:   ts.nextExternal,
			Verified:         true,
			Method:           models.VerificationMethodPhrase,
		})
		require.NoError(t, err)
	}

	u, err = ts.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	return u
}

func (ts *testServer) operator(t *testing.T, name string, role models.Role) *models.Operator {
	t.Helper()
	op, err := ts.moderation.CreateOperator(context.Background(), name, "correct-horse-battery", role)
	require.NoError(t, err)
	return op
}

func (ts *testServer) session(u *models.User) *http.Cookie {
	token, _ := ts.sessions.Issue(auth.SubjectUser, u.ID)
	return &http.Cookie{Name: sessionCookie, Value: token}
}

func (ts *testServer) adminSession(op *models.Operator) *http.Cookie {
	token, _ := ts.sessions.Issue(auth.SubjectOperator, op.ID)
	return &http.Cookie{Name: adminCookie, Value: token}
}

func visited() *http.Cookie {
	return &http.Cookie{Name: visitedCookie, Value: "1"}
}

func (ts *testServer) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	return ts.do(req, cookies...)
}

func (ts *testServer) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(req, cookies...)
}

func (ts *testServer) postJSON(path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return ts.do(req, cookies...)
}

func (ts *testServer) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req.RemoteAddr = "203.0.113.9:5555"
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	ts.ServeHTTP(rr, req)
	return rr
}

func responseCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
