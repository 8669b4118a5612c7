package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/gommon/log"
)

// RequestEvent is what operator dashboards see over the websocket stream:
// one message per ledger row lifecycle transition.
type RequestEvent struct {
	RequestID  uint      `json:"request_id"`
	JobID      string    `json:"job_id"`
	Resource   string    `json:"resource"`
	ResourceID uint      `json:"resource_id"`
	Lang       string    `json:"lang,omitempty"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	EntityID   uint      `json:"entity_id,omitempty"`
	At         time.Time `json:"at"`
}

// EventHub fans request lifecycle events out to connected websocket clients.
// Publish never blocks callback handling; when the buffer is full the event
// is dropped.
type EventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool

	events chan RequestEvent
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[*websocket.Conn]bool),
		events:  make(chan RequestEvent, 256),
	}
}

func (h *EventHub) Publish(evt RequestEvent) {
	if h == nil {
		return
	}
	select {
	case h.events <- evt:
	default:
		log.Warn("event buffer full, dropping event", "request", evt.RequestID)
	}
}

func (h *EventHub) Run() {
	for evt := range h.events {
		h.broadcast(evt)
	}
}

func (h *EventHub) broadcast(evt RequestEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(evt); err != nil {
			log.Warn("failed to write event to client", "error", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
	wsClientsGauge.Set(float64(len(h.clients)))
}

func (h *EventHub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	wsClientsGauge.Set(float64(len(h.clients)))
	h.mu.Unlock()

	// Drain the read side so pings and close frames are processed; drop the
	// client on any read error.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			wsClientsGauge.Set(float64(len(h.clients)))
			h.mu.Unlock()
			conn.Close()
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *EventHub) ClientCount() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
