package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSendAndHistory(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a", "Alice")
	f.addUser(t, "b", "Bob")
	f.addUser(t, "x", "Xavier")
	f.befriend(t, "a", "b")
	created := f.createEvent(t, "a", "b")

	_, err := f.chat.Send(f.ctx, "a", created.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	msg, err := f.chat.Send(f.ctx, "a", created.ID, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "Alice", msg.Sender)
	assert.Equal(t, "09:00", msg.Timestamp)

	_, err = f.chat.Send(f.ctx, "b", created.ID, "hi")
	require.NoError(t, err)

	_, err = f.chat.Send(f.ctx, "x", created.ID, "let me in")
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = f.chat.History(f.ctx, "x", created.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)

	history, err := f.chat.History(f.ctx, "b", created.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Text)
	assert.Equal(t, "Bob", history[1].Sender)
}

func TestChatHistoryIsBounded(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a", "Alice")
	created := f.createEvent(t, "a")

	for _, text := range []string{"1", "2", "3", "4", "5"} {
		_, err := f.chat.Send(f.ctx, "a", created.ID, text)
		require.NoError(t, err)
	}

	history, err := f.chat.History(f.ctx, "a", created.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "3", history[0].Text)
	assert.Equal(t, "5", history[2].Text)
}

func TestChatTruncatesLongMessages(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a", "Alice")
	created := f.createEvent(t, "a")

	msg, err := f.chat.Send(f.ctx, "a", created.ID, strings.Repeat("é", maxChatMessageRunes+10))
	require.NoError(t, err)
	assert.Equal(t, maxChatMessageRunes, len([]rune(msg.Text)))
}
