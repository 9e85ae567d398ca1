package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationBetweenMatches(t *testing.T) {
	ts := newTestServer(t, 50)
	ctx := context.Background()
	alice := ts.user(t, "alice", true)
	bob := ts.user(t, "bob", true)
	match(t, ts, alice, bob)

	rr := ts.postForm(fmt.Sprintf("/messages/%d", bob.ID), url.Values{"content": {"<b>hey</b> there"}}, ts.session(alice))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, fmt.Sprintf("/messages/%d", bob.ID), rr.Header().Get("Location"))

	unread, err := ts.messaging.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	rr = ts.get(fmt.Sprintf("/messages/%d", alice.ID), ts.session(bob))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `<span class="text">hey there</span>`)

	unread, err = ts.messaging.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, unread, "opening the conversation marks it read")
}

func TestConversationEscapesContent(t *testing.T) {
	ts := newTestServer(t, 50)
	alice := ts.user(t, "alice", true)
	bob := ts.user(t, "bob", true)
	match(t, ts, alice, bob)

	ts.postForm(fmt.Sprintf("/messages/%d", bob.ID), url.Values{"content": {"1 < 2 & 3"}}, ts.session(alice))

	rr := ts.get(fmt.Sprintf("/messages/%d", bob.ID), ts.session(alice))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "1 &lt; 2 &amp; 3")
}

func TestConversationRequiresMatch(t *testing.T) {
	ts := newTestServer(t, 50)
	alice := ts.user(t, "alice", true)
	carol := ts.user(t, "carol", true)

	rr := ts.get(fmt.Sprintf("/messages/%d", carol.ID), ts.session(alice))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.postForm(fmt.Sprintf("/messages/%d", carol.ID), url.Values{"content": {"hi"}}, ts.session(alice))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	msgs, err := ts.messaging.GetConversation(context.Background(), alice.ID, carol.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendMessageTooLong(t *testing.T) {
	ts := newTestServer(t, 50)
	alice := ts.user(t, "alice", true)
	bob := ts.user(t, "bob", true)
	match(t, ts, alice, bob)

	rr := ts.postForm(fmt.Sprintf("/messages/%d", bob.ID), url.Values{"content": {strings.Repeat("a", 2001)}}, ts.session(alice))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.NotNil(t, responseCookie(rr, flashCookie))

	msgs, err := ts.messaging.GetConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
