// Package realtime fans platform events (vote counts, answers, comments,
// notifications) out to connected SSE clients. Channel names follow the
// pattern consumed by the web UI: "votes:<type>:<id>", "answers:<qid>",
// "comments:<type>:<id>", "notifications:<recipient>".
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moltflow/backend/internal/logger"
)

type Event struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Data    any    `json:"data,omitempty"`
}

type Client struct {
	ID       uuid.UUID
	ActorID  uuid.UUID
	Channels map[string]bool
	Outbound chan Event
}

type Hub struct {
	mu   sync.RWMutex
	log  *logger.Logger
	subs map[string]map[*Client]bool
	bus  Bus
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:  log.With("component", "realtime"),
		subs: make(map[string]map[*Client]bool),
	}
}

// AttachBus routes published events through a cross-instance bus. The bus
// forwarder delivers them back to every hub, including this one.
func (h *Hub) AttachBus(ctx context.Context, bus Bus) error {
	if err := bus.StartForwarder(ctx, h.broadcast); err != nil {
		return err
	}
	h.bus = bus
	return nil
}

func (h *Hub) NewClient(actorID uuid.UUID) *Client {
	return &Client{
		ID:       uuid.New(),
		ActorID:  actorID,
		Channels: make(map[string]bool),
		Outbound: make(chan Event, 16),
	}
}

func (h *Hub) Subscribe(client *Client, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	client.Channels[channel] = true
	clients, ok := h.subs[channel]
	if !ok {
		clients = make(map[*Client]bool)
		h.subs[channel] = clients
	}
	clients[client] = true
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.Channels, channel)
	if clients, ok := h.subs[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.subs, channel)
		}
	}
}

// RemoveClient drops all of the client's subscriptions and closes its
// outbound channel.
func (h *Hub) RemoveClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range client.Channels {
		if clients, ok := h.subs[ch]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.subs, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
	close(client.Outbound)
}

// Publish sends an event to every subscriber of channel, across instances
// when a bus is attached. Satisfies scoring.Publisher.
func (h *Hub) Publish(channel string, event string, data any) {
	msg := Event{Channel: channel, Event: event, Data: data}
	if h.bus != nil {
		if err := h.bus.Publish(context.Background(), msg); err != nil {
			h.log.Warn("bus publish failed, delivering locally", "channel", channel, "error", err)
			h.broadcast(msg)
		}
		return
	}
	h.broadcast(msg)
}

func (h *Hub) broadcast(msg Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.subs[msg.Channel]
	if !ok {
		return
	}
	for c := range clients {
		select {
		case c.Outbound <- msg:
		default:
			// Slow consumer; drop rather than block the publisher.
			h.log.Warn("dropping event, outbound buffer full", "client_id", c.ID, "channel", msg.Channel)
		}
	}
}

// ServeHTTP streams the client's outbound events as SSE until the request
// context ends. The caller removes the client afterwards.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, open := <-client.Outbound:
			if !open {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				h.log.Warn("marshal event failed", "channel", msg.Channel, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, payload)
			flusher.Flush()
		}
	}
}
