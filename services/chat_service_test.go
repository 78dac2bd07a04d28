package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomie_server/apperrors"
	"roomie_server/models"
)

func TestSendMessage_EmptyTextIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.match(t, "A", "B")
	_, err := env.chat.SendMessage(ctx, id, "A", "first")
	require.NoError(t, err)
	env.bus.Wait()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := env.chat.SendMessage(ctx, id, "A", text)
		assert.ErrorIs(t, err, apperrors.ErrEmptyMessage)
	}

	assert.Equal(t, 1, env.count(t, models.MessagesTable))
	assert.Equal(t, "first", env.getMatch(t, id).LastMessage)
}

func TestSendMessage_UpdatesMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.match(t, "A", "B")

	msg, err := env.chat.SendMessage(ctx, id, "B", "  hello there  ")
	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Text)
	assert.Equal(t, int64(1), msg.Seq)
	assert.NotEmpty(t, msg.MessageID)
	env.bus.Wait()

	m := env.getMatch(t, id)
	assert.Equal(t, "hello there", m.LastMessage)
	assert.Equal(t, "B", m.LastSender)
	assert.Equal(t, msg.CreatedAt, m.LastActivity)
	assert.Equal(t, int64(1), m.MessageCount)
	assert.Equal(t, 1, m.Unread["A"])
	assert.False(t, m.Read["A"])
	assert.Equal(t, 0, m.Unread["B"])
}

func TestSendMessage_TimestampsStrictlyIncrease(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.match(t, "A", "B")
	freezeTime(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	var last string
	for i := 0; i < 5; i++ {
		msg, err := env.chat.SendMessage(ctx, id, "A", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
		assert.Greater(t, msg.CreatedAt, last)
		last = msg.CreatedAt
	}

	msgs, err := env.chat.Messages(ctx, id, "B", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i := 1; i < len(msgs); i++ {
		assert.Less(t, msgs[i-1].CreatedAt, msgs[i].CreatedAt)
	}
	assert.Equal(t, "m0", msgs[0].Text)
}

func TestSendMessage_MembershipAndExistence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.match(t, "A", "B")

	_, err := env.chat.SendMessage(ctx, id, "C", "hi")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = env.chat.SendMessage(ctx, "nope_nope", "A", "hi")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.chat.Messages(ctx, id, "C", 10)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestMessages_LatestPageAscending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.match(t, "A", "B")
	for i := 0; i < 12; i++ {
		_, err := env.chat.SendMessage(ctx, id, "A", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	msgs, err := env.chat.Messages(ctx, id, "A", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m9", "m10", "m11"}, []string{msgs[0].Text, msgs[1].Text, msgs[2].Text})
}

func TestMarkAsRead_OnlyTouchesReader(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.match(t, "A", "B")

	_, err := env.chat.SendMessage(ctx, id, "A", "to B")
	require.NoError(t, err)
	_, err = env.chat.SendMessage(ctx, id, "B", "to A")
	require.NoError(t, err)
	env.bus.Wait()

	m := env.getMatch(t, id)
	require.Equal(t, 1, m.Unread["A"])
	require.Equal(t, 1, m.Unread["B"])

	require.NoError(t, env.chat.MarkAsRead(ctx, id, "B"))

	m = env.getMatch(t, id)
	assert.Equal(t, 0, m.Unread["B"])
	assert.True(t, m.Read["B"])
	assert.Equal(t, 1, m.Unread["A"])
	assert.False(t, m.Read["A"])

	assert.ErrorIs(t, env.chat.MarkAsRead(ctx, id, "C"), apperrors.ErrForbidden)
	assert.ErrorIs(t, env.chat.MarkAsRead(ctx, "x_y", "A"), apperrors.ErrNotFound)
}

func TestMatchService_ListOrderedByActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	freezeTime(t, base)
	first := env.match(t, "A", "B")
	freezeTime(t, base.Add(time.Hour))
	second := env.match(t, "A", "C")
	env.match(t, "D", "C")

	matches, err := env.matches.List(ctx, "A")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, second, matches[0].MatchID)

	freezeTime(t, base.Add(2*time.Hour))
	_, err = env.chat.SendMessage(ctx, first, "B", "bump")
	require.NoError(t, err)

	matches, err = env.matches.List(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, first, matches[0].MatchID)

	_, err = env.matches.Get(ctx, first, "D")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestWatchMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.match(t, "A", "B")

	_, err := env.chat.WatchMessages(ctx, id, "C", 10)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	sub, err := env.chat.WatchMessages(ctx, id, "A", 10)
	require.NoError(t, err)
	defer sub.Cancel()
	assert.Empty(t, <-sub.C)

	_, err = env.chat.SendMessage(ctx, id, "B", "ping")
	require.NoError(t, err)

	select {
	case msgs := <-sub.C:
		require.Len(t, msgs, 1)
		assert.Equal(t, "ping", msgs[0].Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after send")
	}
}
