package api

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomidate/internal/accounts"
)

func TestHomeSendsFirstVisitToWelcome(t *testing.T) {
	ts := newTestServer(t, 50)

	rr := ts.get("/")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/welcome", rr.Header().Get("Location"))

	rr = ts.get("/welcome")
	assert.Equal(t, http.StatusOK, rr.Code)
	c := responseCookie(rr, visitedCookie)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
}

func TestHomeGates(t *testing.T) {
	ts := newTestServer(t, 50)
	unverified := ts.user(t, "carol", false)
	verified := ts.user(t, "alice", true)

	rr := ts.get("/", visited())
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))

	rr = ts.get("/", visited(), ts.session(unverified))
	assert.Equal(t, "/profile/verify", rr.Header().Get("Location"))

	rr = ts.get("/", visited(), ts.session(verified))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Hi alice")
	assert.Contains(t, rr.Body.String(), "of 50 swipes used today")
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t, 50)

	form := url.Values{"username": {"alice"}, "password": {testPassword}, "email": {"alice@example.com"}}
	rr := ts.postForm("/auth/register", form)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/profile/verify", rr.Header().Get("Location"))
	require.NotNil(t, responseCookie(rr, sessionCookie))

	rr = ts.postForm("/auth/register", form)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "already taken")

	rr = ts.postForm("/auth/register", url.Values{"username": {"bob"}, "password": {"short"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Password must be at least 8 characters.")
	assert.Contains(t, rr.Body.String(), `value="bob"`, "the form is echoed back")
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, 50)
	ts.user(t, "alice", true)

	rr := ts.postForm("/auth/login", url.Values{"username": {"alice"}, "password": {"wrong-password"}})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Wrong username or password.")
	assert.Nil(t, responseCookie(rr, sessionCookie))

	rr = ts.postForm("/auth/login", url.Values{"username": {"alice"}, "password": {testPassword}})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	c := responseCookie(rr, sessionCookie)
	require.NotNil(t, c)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestLoginRefusesBannedAccount(t *testing.T) {
	ts := newTestServer(t, 50)
	u := ts.user(t, "alice", true)
	require.NoError(t, ts.users.SetBanned(context.Background(), u.ID, true))

	rr := ts.postForm("/auth/login", url.Values{"username": {"alice"}, "password": {testPassword}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "banned")
}

func TestSessionEndsWhenUserIsRestricted(t *testing.T) {
	ts := newTestServer(t, 50)
	ctx := context.Background()
	banned := ts.user(t, "alice", true)
	suspended := ts.user(t, "bob", true)
	require.NoError(t, ts.users.SetBanned(ctx, banned.ID, true))
	until := time.Now().Add(48 * time.Hour)
	require.NoError(t, ts.users.SetSuspendedUntil(ctx, suspended.ID, &until))

	for _, u := range []int64{banned.ID, suspended.ID} {
		user, err := ts.users.FindByID(ctx, u)
		require.NoError(t, err)

		rr := ts.get("/swipe", ts.session(user))
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/auth/login", rr.Header().Get("Location"))

		c := responseCookie(rr, sessionCookie)
		require.NotNil(t, c)
		assert.Negative(t, c.MaxAge)
		assert.NotNil(t, responseCookie(rr, flashCookie))
	}
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t, 50)
	u := ts.user(t, "alice", true)

	rr := ts.postForm("/auth/logout", nil, ts.session(u))
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))
	c := responseCookie(rr, sessionCookie)
	require.NotNil(t, c)
	assert.Negative(t, c.MaxAge)
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	ts := newTestServer(t, 50)
	registerWithEmail(t, ts, "alice", "alice@example.com")

	known := ts.postForm("/auth/forgot", url.Values{"email": {"alice@example.com"}})
	unknown := ts.postForm("/auth/forgot", url.Values{"email": {"nobody@example.com"}})

	assert.Equal(t, http.StatusSeeOther, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, "/auth/reset?email=alice%40example.com", known.Header().Get("Location"))
	assert.Equal(t, "/auth/reset?email=nobody%40example.com", unknown.Header().Get("Location"))
	assert.NotEmpty(t, ts.mailer.code("alice@example.com"))
	assert.Empty(t, ts.mailer.code("nobody@example.com"))
}

func TestResetPassword(t *testing.T) {
	ts := newTestServer(t, 50)
	registerWithEmail(t, ts, "alice", "alice@example.com")
	ts.postForm("/auth/forgot", url.Values{"email": {"alice@example.com"}})
	code := ts.mailer.code("alice@example.com")
	require.Len(t, code, 6)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	rr := ts.postForm("/auth/reset", url.Values{
		"email":    {"alice@example.com"},
		"code":     {wrong},
		"password": {"new-password-1"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid or used reset code.")

	rr = ts.postForm("/auth/reset", url.Values{
		"email":    {"alice@example.com"},
		"code":     {code},
		"password": {"new-password-1"},
	})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))

	rr = ts.postForm("/auth/login", url.Values{"username": {"alice"}, "password": {"new-password-1"}})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

func registerWithEmail(t *testing.T, ts *testServer, name, email string) {
	t.Helper()
	_, err := ts.accounts.Register(context.Background(), accounts.RegisterInput{
		Username: name,
		Password: testPassword,
		Email:    email,
	})
	require.NoError(t, err)
}
