package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwipeShowsCandidate(t *testing.T) {
	ts := newTestServer(t, 50)
	alice := ts.user(t, "alice", true)
	bob := ts.user(t, "bob", true)

	rr := ts.get("/swipe", ts.session(alice))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<h2>bob")
	assert.Contains(t, body, fmt.Sprintf("/swipe/%d/like", bob.ID))
	assert.Contains(t, body, "50 of 50 swipes left today")
}

func TestSwipeFiltersAreEchoed(t *testing.T) {
	ts := newTestServer(t, 50)
	alice := ts.user(t, "alice", true)
	ts.user(t, "bob", true)

	rr := ts.get("/swipe?age_min=18&gender=nobody", ts.session(alice))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `name="age_min" type="number" min="0" value="18"`)
	assert.Contains(t, body, "No one to show")
}

func TestSwipeMutualLikeFlashesMatch(t *testing.T) {
	ts := newTestServer(t, 50)
	alice := ts.user(t, "alice", true)
	bob := ts.user(t, "bob", true)

	rr := ts.postForm(fmt.Sprintf("/swipe/%d/like?gender=male", bob.ID), nil, ts.session(alice))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/swipe?gender=male", rr.Header().Get("Location"))
	assert.Nil(t, responseCookie(rr, flashCookie))

	rr = ts.postForm(fmt.Sprintf("/swipe/%d/like", alice.ID), nil, ts.session(bob))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/swipe", rr.Header().Get("Location"))
	require.NotNil(t, responseCookie(rr, flashCookie))

	rr = ts.get("/matches", ts.session(alice))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), fmt.Sprintf(`href="/messages/%d"`, bob.ID))
}

func TestSwipeQuotaExhausted(t *testing.T) {
	ts := newTestServer(t, 2)
	alice := ts.user(t, "alice", true)
	bob := ts.user(t, "bob", true)
	like := fmt.Sprintf("/swipe/%d/like", bob.ID)

	for range 2 {
		rr := ts.postForm(like, nil, ts.session(alice))
		require.Equal(t, http.StatusSeeOther, rr.Code)
		require.Nil(t, responseCookie(rr, flashCookie))
	}

	rr := ts.postForm(like, nil, ts.session(alice))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.NotNil(t, responseCookie(rr, flashCookie), "quota refusal is reported")

	count, err := ts.matching.GetDailyCount(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	rr = ts.get("/swipe", ts.session(alice))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "all for today")
	assert.NotContains(t, rr.Body.String(), like)
}

func TestSwipeRejectsBadTargets(t *testing.T) {
	ts := newTestServer(t, 50)
	alice := ts.user(t, "alice", true)
	bob := ts.user(t, "bob", true)

	rr := ts.postForm(fmt.Sprintf("/swipe/%d/like", alice.ID), nil, ts.session(alice))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.postForm(fmt.Sprintf("/swipe/%d/superlike", bob.ID), nil, ts.session(alice))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.postForm("/swipe/424242/pass", nil, ts.session(alice))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	count, err := ts.matching.GetDailyCount(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
