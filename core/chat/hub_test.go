package chat_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/chat"
	inmemdb "github.com/zenabi/tuzo/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// failingRepo refuses writes; reads come back empty.
type failingRepo struct{}

func (failingRepo) CreateMessage(context.Context, chat.Message) (chat.Message, error) {
	return chat.Message{}, errors.New("store is down")
}

func (failingRepo) QueryMessages(context.Context, string) ([]chat.Message, error) {
	return nil, nil
}

func newHub(t *testing.T) *chat.Hub {
	t.Helper()
	return chat.NewHub(inmemdb.NewChatRepository(inmemdb.Open()), nopLogger{})
}

func receiveOne(t *testing.T, sub *chat.Subscriber) chat.Message {
	t.Helper()
	select {
	case msg, ok := <-sub.Receive():
		require.True(t, ok, "subscriber channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a message")
		return chat.Message{}
	}
}

func TestHub_Send(t *testing.T) {
	ctx := context.Background()
	learner := core.Actor{ID: "u1", Name: "Neo", Role: core.RoleLearner}
	admin := core.Actor{ID: "a1", Name: "Boss", Role: core.RoleAdmin}

	t.Run("persists then broadcasts with server metadata", func(t *testing.T) {
		hub := newHub(t)
		sub := hub.Join("s1")
		defer sub.Close()

		sent, err := hub.Send(ctx, "s1", learner, "  hello  ")
		require.NoError(t, err)
		assert.NotEmpty(t, sent.ID)
		assert.Equal(t, "hello", sent.Body, "whitespace trimmed")
		assert.Equal(t, "Neo", sent.Sender)
		assert.Equal(t, core.RoleLearner, sent.SenderRole)
		assert.False(t, sent.CreatedAt.IsZero())

		got := receiveOne(t, sub)
		assert.Equal(t, sent, got)

		history, err := hub.History(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, sent, history[0])
	})

	t.Run("empty message is refused", func(t *testing.T) {
		hub := newHub(t)
		_, err := hub.Send(ctx, "s1", learner, "   ")
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)

		history, err := hub.History(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("messages persist with no subscribers", func(t *testing.T) {
		hub := newHub(t)
		_, err := hub.Send(ctx, "s1", admin, "anyone here?")
		require.NoError(t, err)

		history, err := hub.History(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, history, 1)
	})

	t.Run("all subscribers of the channel receive each message", func(t *testing.T) {
		hub := newHub(t)
		a := hub.Join("s1")
		defer a.Close()
		b := hub.Join("s1")
		defer b.Close()
		other := hub.Join("s2")
		defer other.Close()

		sent, err := hub.Send(ctx, "s1", admin, "looks good")
		require.NoError(t, err)

		assert.Equal(t, sent, receiveOne(t, a))
		assert.Equal(t, sent, receiveOne(t, b))
		select {
		case msg := <-other.Receive():
			t.Fatalf("unrelated channel received %v", msg)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("single sender messages arrive in send order", func(t *testing.T) {
		hub := newHub(t)
		sub := hub.Join("s1")
		defer sub.Close()

		const n = 20
		for i := 0; i < n; i++ {
			_, err := hub.Send(ctx, "s1", learner, fmt.Sprintf("msg-%02d", i))
			require.NoError(t, err)
		}
		for i := 0; i < n; i++ {
			got := receiveOne(t, sub)
			assert.Equal(t, fmt.Sprintf("msg-%02d", i), got.Body)
		}

		history, err := hub.History(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, history, n)
		for i, msg := range history {
			assert.Equal(t, fmt.Sprintf("msg-%02d", i), msg.Body)
		}
	})

	t.Run("persistence failure suppresses the broadcast", func(t *testing.T) {
		hub := chat.NewHub(failingRepo{}, nopLogger{})
		sub := hub.Join("s1")
		defer sub.Close()

		_, err := hub.Send(ctx, "s1", learner, "hello")
		require.Error(t, err)

		select {
		case msg := <-sub.Receive():
			t.Fatalf("broadcast leaked after failed persist: %v", msg)
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestHub_SlowSubscriber(t *testing.T) {
	ctx := context.Background()
	learner := core.Actor{ID: "u1", Name: "Neo", Role: core.RoleLearner}

	hub := newHub(t)
	slow := hub.Join("s1") // never drained
	defer slow.Close()
	fast := hub.Join("s1")
	defer fast.Close()

	// overflow the slow subscriber's buffer; the channel must not stall
	const n = 64
	for i := 0; i < n; i++ {
		_, err := hub.Send(ctx, "s1", learner, fmt.Sprintf("msg-%02d", i))
		require.NoError(t, err)
	}

	for i := 0; i < n; i++ {
		receiveOne(t, fast)
	}

	history, err := hub.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, history, n, "the store keeps everything even when live delivery drops")
}

func TestSubscriber_Close(t *testing.T) {
	ctx := context.Background()
	learner := core.Actor{ID: "u1", Name: "Neo", Role: core.RoleLearner}
	hub := newHub(t)

	sub := hub.Join("s1")
	sub.Close()
	sub.Close() // safe to call twice

	_, ok := <-sub.Receive()
	assert.False(t, ok, "delivery channel closed")

	// closed subscribers no longer receive
	_, err := hub.Send(ctx, "s1", learner, "after close")
	require.NoError(t, err)
}
