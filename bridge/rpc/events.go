package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zclubweb3/solana-bridge/bridge/models"
)

const (
	subscriberBuffer  = 64
	heartbeatInterval = 15 * time.Second
)

// EventHub fans published results out to every open event stream. A slow
// subscriber loses events instead of blocking the publisher.
type EventHub struct {
	mu        sync.RWMutex
	subs      map[uuid.UUID]chan models.Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[uuid.UUID]chan models.Event),
		done: make(chan struct{}),
	}
}

// Close ends every open stream. Publishing after Close is a no-op for
// streams but still counts the event.
func (h *EventHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Publish pushes r to all subscribers and returns the event that was sent.
func (h *EventHub) Publish(r models.Result) models.Event {
	ev := models.NewEvent(r)
	eventsPublished.WithLabelValues(ev.Name).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			eventsDropped.Inc()
			Logger.Warn().Str("subscriber", id.String()).Str("event", ev.Name).Msg("Event dropped, subscriber too slow")
		}
	}
	return ev
}

// Subscribe registers a new listener. The returned cancel must be called
// when the listener goes away.
func (h *EventHub) Subscribe() (<-chan models.Event, func()) {
	id := uuid.New()
	ch := make(chan models.Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	eventSubscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			eventSubscribers.Dec()
		})
	}
}

func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeHTTP streams events as server-sent events until the client leaves.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, cancel := h.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	// comment line so clients see the stream open
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-events:
			if err := writeEvent(w, ev); err != nil {
				Logger.Debug().Err(err).Msg("Event stream closed")
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Name, data)
	return err
}
