package pivot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Host event names.
const (
	EventExpandAll     = "pivot-expand-all"
	EventCollapseAll   = "pivot-collapse-all"
	EventExportExcel   = "pivot-export-excel"
	EventDataReady     = "pivot-data-ready"
	EventLayoutChanged = "pivot-layout-changed"
)

// Event is a notification emitted by a widget.
type Event struct {
	Name     string         `json:"name"`
	WidgetID string         `json:"widget_id"`
	Payload  map[string]any `json:"payload,omitempty"`
	At       time.Time      `json:"at"`
}

// EventSink receives widget notifications.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

type noopEventSink struct{}

func (noopEventSink) Publish(context.Context, Event) error { return nil }

func normalizeEventSink(s EventSink) EventSink {
	if s == nil {
		return noopEventSink{}
	}
	return s
}

// EventHub fans out widget events to in-process subscribers, SSE clients and
// WebSocket clients. Slow subscribers drop events rather than block widgets.
type EventHub struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[int]chan Event),
	}
}

// Publish satisfies EventSink.
func (h *EventHub) Publish(ctx context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of events and a cancel func.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Event, 16)
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Subscribers returns the number of active subscriptions.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventConn is the socket side of a subscription. Both *websocket.Conn and
// go-router's WebSocketContext satisfy it.
type EventConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
}

// Stream writes hub events to conn until ctx ends, the client goes away or a
// write fails. Inbound frames are read and discarded so a client close is
// noticed while no events flow. An empty widget streams every widget.
func (h *EventHub) Stream(ctx context.Context, conn EventConn, widget string) error {
	events, cancel := h.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if widget != "" && event.WidgetID != widget {
				continue
			}
			if err := conn.WriteJSON(event); err != nil {
				return err
			}
		}
	}
}

// ServeWebSocket upgrades the request and streams events as JSON. An optional
// widget query parameter filters the stream.
func (h *EventHub) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer conn.Close()
	_ = h.Stream(r.Context(), conn, r.URL.Query().Get("widget"))
}

// ServeSSE streams events as Server-Sent Events.
func (h *EventHub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	widget := r.URL.Query().Get("widget")
	events, cancel := h.Subscribe()
	defer cancel()

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if widget != "" && event.WidgetID != widget {
				continue
			}
			if err := WriteSSE(w, event); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// WriteSSE writes one event frame in text/event-stream format.
func WriteSSE(w io.Writer, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, data)
	return err
}
