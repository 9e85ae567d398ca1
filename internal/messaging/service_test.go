package messaging

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomidate/internal/db"
	"anomidate/internal/models"
)

type captureNotifier struct {
	sent []*models.Message
}

func (n *captureNotifier) MessageCreated(m *models.Message) {
	n.sent = append(n.sent, m)
}

type testEnv struct {
	users    *db.UserRepository
	swipes   *db.SwipeRepository
	service  *Service
	notifier *captureNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	env := &testEnv{
		users:    db.NewUserRepository(database),
		swipes:   db.NewSwipeRepository(database),
		notifier: &captureNotifier{},
	}
	env.service = NewService(db.NewMessageRepository(database), env.swipes, env.notifier)
	return env
}

func (e *testEnv) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), name, nil, "hash")
	require.NoError(t, err)
	return u
}

func (e *testEnv) like(t *testing.T, actor, target *models.User) {
	t.Helper()
	_, err := e.swipes.Record(context.Background(), actor.ID, target.ID, models.ActionLike, "2026-01-01", 100)
	require.NoError(t, err)
}

func TestSendMessageRequiresMatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")

	_, err := env.service.SendMessage(ctx, alice.ID, bob.ID, "hi")
	assert.ErrorIs(t, err, ErrNotMatched)

	env.like(t, alice, bob)
	_, err = env.service.SendMessage(ctx, alice.ID, bob.ID, "hi")
	assert.ErrorIs(t, err, ErrNotMatched)

	env.like(t, bob, alice)
	msg, err := env.service.SendMessage(ctx, alice.ID, bob.ID, "  hi bob  ")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "hi bob", msg.Content)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, bob.ID, msg.ReceiverID)
	assert.Len(t, env.notifier.sent, 1)
}

func TestSendMessageBlankIsNoop(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	env.like(t, alice, bob)
	env.like(t, bob, alice)

	for _, content := range []string{"", "   ", "\n\t", "<b></b>"} {
		msg, err := env.service.SendMessage(ctx, alice.ID, bob.ID, content)
		require.NoError(t, err)
		assert.Nil(t, msg)
	}

	conv, err := env.service.GetConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, conv)
	assert.Empty(t, env.notifier.sent)
}

func TestSendMessageStripsMarkup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	env.like(t, alice, bob)
	env.like(t, bob, alice)

	msg, err := env.service.SendMessage(ctx, alice.ID, bob.ID, `<script>alert(1)</script>hello <b>you</b> & me`)
	require.NoError(t, err)
	assert.Equal(t, "hello you & me", msg.Content)
}

func TestSendMessageLimits(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	env.like(t, alice, bob)
	env.like(t, bob, alice)

	_, err := env.service.SendMessage(ctx, alice.ID, alice.ID, "me")
	assert.ErrorIs(t, err, ErrSelfConversation)

	_, err = env.service.SendMessage(ctx, alice.ID, bob.ID, strings.Repeat("x", MaxMessageLength+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestConversationOrderAndRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	env.like(t, alice, bob)
	env.like(t, bob, alice)

	for _, step := range []struct {
		from, to *models.User
		text     string
	}{
		{alice, bob, "one"},
		{bob, alice, "two"},
		{alice, bob, "three"},
	} {
		_, err := env.service.SendMessage(ctx, step.from.ID, step.to.ID, step.text)
		require.NoError(t, err)
	}

	conv, err := env.service.GetConversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, conv, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{conv[0].Content, conv[1].Content, conv[2].Content})

	unread, err := env.service.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	require.NoError(t, env.service.MarkRead(ctx, bob.ID, alice.ID))
	unread, err = env.service.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	unread, err = env.service.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestConversationReadableAfterUnmatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	env.like(t, alice, bob)
	env.like(t, bob, alice)

	_, err := env.service.SendMessage(ctx, alice.ID, bob.ID, "hello")
	require.NoError(t, err)

	_, err = env.swipes.DeletePair(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	conv, err := env.service.GetConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Len(t, conv, 1)

	_, err = env.service.SendMessage(ctx, alice.ID, bob.ID, "still there?")
	assert.ErrorIs(t, err, ErrNotMatched)
}
