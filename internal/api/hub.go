package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"waitroom/internal/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// EventType names a push notification.
type EventType string

const (
	// EventHello is sent to each new subscriber once it is registered.
	EventHello EventType = "hello"
	// EventChanged means a document in the data directory changed.
	EventChanged EventType = "changed"
	// EventReload asks displays to reload their playlist now.
	EventReload EventType = "reload"
)

// Event is a message pushed to display subscribers.
type Event struct {
	Type      EventType `json:"type"`
	File      string    `json:"file,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Displays on the clinic LAN connect from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to every connected display.
type Hub struct {
	subs       map[*subscriber]bool
	broadcast  chan []byte
	register   chan *subscriber
	unregister chan *subscriber
	done       chan struct{}
	once       sync.Once

	mu    sync.Mutex
	count int
	log   *log.Logger
}

// NewHub returns a hub. Nothing is delivered until Run is started.
func NewHub() *Hub {
	return &Hub{
		subs:       make(map[*subscriber]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		done:       make(chan struct{}),
		log:        log.LogWithFields(log.F("component", "hub")),
	}
}

// Run delivers events until ctx is cancelled, then disconnects every
// subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer h.once.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			for sub := range h.subs {
				h.drop(sub)
			}
			return
		case sub := <-h.register:
			h.subs[sub] = true
			h.setCount(len(h.subs))
		case sub := <-h.unregister:
			if h.subs[sub] {
				h.drop(sub)
			}
		case msg := <-h.broadcast:
			for sub := range h.subs {
				select {
				case sub.send <- msg:
				default:
					h.log.Warn("Dropping slow subscriber")
					h.drop(sub)
				}
			}
		}
	}
}

func (h *Hub) drop(sub *subscriber) {
	delete(h.subs, sub)
	close(sub.send)
	h.setCount(len(h.subs))
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// Subscribers returns the number of connected displays.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Broadcast queues ev for every subscriber. It never blocks; events are
// dropped when the hub is stopped or its queue is full.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Warn("Failed to encode event")
		return
	}
	select {
	case <-h.done:
	case h.broadcast <- data:
	default:
		h.log.With(log.F("type", string(ev.Type))).Warn("Event queue full, dropping event")
	}
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	sub := &subscriber{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}

	hello, _ := json.Marshal(Event{Type: EventHello})
	sub.send <- hello

	select {
	case h.register <- sub:
	case <-h.done:
		conn.Close()
		return
	}
	h.log.With(log.F("remote", r.RemoteAddr)).Debug("Display subscribed")

	go sub.writePump()
	go sub.readPump()
}

// readPump only services control frames; displays never send events.
func (s *subscriber) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.log.WithError(err).Debug("Subscriber read failed")
			}
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
