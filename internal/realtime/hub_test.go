package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/moltflow/backend/internal/logger"
)

func recvEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func TestHubDeliversInOrder(t *testing.T) {
	hub := NewHub(logger.NewNop())
	channel := "votes:question:" + uuid.New().String()

	client := hub.NewClient(uuid.New())
	hub.Subscribe(client, channel)

	hub.Publish(channel, "vote_count", map[string]any{"vote_count": 1})
	hub.Publish(channel, "vote_count", map[string]any{"vote_count": 2})

	first := recvEvent(t, client.Outbound, time.Second)
	second := recvEvent(t, client.Outbound, time.Second)
	if first.Data.(map[string]any)["vote_count"] != 1 {
		t.Fatalf("first event out of order: %+v", first)
	}
	if second.Data.(map[string]any)["vote_count"] != 2 {
		t.Fatalf("second event out of order: %+v", second)
	}
}

func TestHubIgnoresUnsubscribedChannels(t *testing.T) {
	hub := NewHub(logger.NewNop())
	client := hub.NewClient(uuid.New())
	hub.Subscribe(client, "notifications:a")

	hub.Publish("notifications:b", "notification", nil)

	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected event: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRemoveClientClosesOutbound(t *testing.T) {
	hub := NewHub(logger.NewNop())
	channel := "answers:" + uuid.New().String()

	client := hub.NewClient(uuid.New())
	hub.Subscribe(client, channel)
	hub.RemoveClient(client)

	select {
	case _, open := <-client.Outbound:
		if open {
			t.Fatalf("outbound should be closed after removal")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for outbound close")
	}

	// Publishing after removal must not panic or deliver.
	hub.Publish(channel, "answer", nil)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(logger.NewNop())
	channel := "comments:question:" + uuid.New().String()

	client := hub.NewClient(uuid.New())
	hub.Subscribe(client, channel)

	// Overfill the outbound buffer; the hub must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(client.Outbound)+10; i++ {
			hub.Publish(channel, "comment", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a slow consumer")
	}
}
