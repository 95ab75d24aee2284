package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkdeck/linkdeck/internal/pubsub"
)

func TestHub_RoutesNoticesByUsername(t *testing.T) {
	h := NewHub()
	go h.Run()

	alice := &Subscriber{Username: "alice", Send: make(chan []byte, 1)}
	bob := &Subscriber{Username: "bob", Send: make(chan []byte, 1)}
	h.Register <- alice
	h.Register <- bob

	h.Broadcast <- Notice{Username: "alice", Data: []byte("updated")}

	select {
	case msg := <-alice.Send:
		assert.Equal(t, "updated", string(msg))
	case <-time.After(time.Second):
		t.Fatal("alice never received the notice")
	}

	select {
	case msg := <-bob.Send:
		t.Fatalf("bob received a notice for alice's profile: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSendChannel(t *testing.T) {
	h := NewHub()
	go h.Run()

	sub := &Subscriber{Username: "alice", Send: make(chan []byte, 1)}
	h.Register <- sub
	h.Unregister <- sub

	select {
	case _, open := <-sub.Send:
		assert.False(t, open, "send channel should be closed after unregister")
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	h := NewHub()
	go h.Run()

	// A zero-capacity channel that is never read simulates a stuck client.
	slow := &Subscriber{Username: "alice", Send: make(chan []byte)}
	h.Register <- slow

	h.Broadcast <- Notice{Username: "alice", Data: []byte("first")}

	select {
	case _, open := <-slow.Send:
		assert.False(t, open, "stuck subscriber should have been dropped")
	case <-time.After(time.Second):
		t.Fatal("stuck subscriber was not dropped")
	}
}

func TestStartRelay_ForwardsBusNotices(t *testing.T) {
	bridge := pubsub.NewWatermillBridge()
	t.Cleanup(func() { _ = bridge.Close() })

	h := NewHub()
	go h.Run()

	sub := &Subscriber{Username: "alice", Send: make(chan []byte, 1)}
	h.Register <- sub

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, StartRelay(ctx, bridge, h))

	err := bridge.Publish(ctx, pubsub.Message{
		Topic:    pubsub.TopicProfileUpdated,
		Username: "alice",
		Payload:  []byte(`{"username":"alice"}`),
	})
	require.NoError(t, err)

	select {
	case msg := <-sub.Send:
		assert.JSONEq(t, `{"username":"alice"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("relay never forwarded the bus notice")
	}
}
