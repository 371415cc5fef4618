// Package wshub fans pipeline frames out to websocket subscribers.
package wshub

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// sendBuffer is the per-client outbound queue. A client that falls this
// far behind starts losing frames rather than stalling the hub.
const sendBuffer = 64

// Hub tracks connected websocket clients and broadcasts encoded frames to
// them. It implements the pubsub transport contract: Send never blocks.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	drops atomic.Uint64
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	// topics the client subscribed to (bare names); empty means all.
	topics map[string]struct{}
}

// New creates an empty hub.
func New(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 65536,
		},
		clients: make(map[*client]struct{}),
	}
}

// Send broadcasts one encoded frame to every subscriber of the topic.
// Clients with a full queue lose the frame; the hub counts the loss and
// moves on.
func (h *Hub) Send(topic string, payload []byte) error {
	msg, err := EncodeEnvelope(topic, payload)
	if err != nil {
		return err
	}
	bare := topic
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		bare = topic[i+1:]
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if len(c.topics) > 0 {
			if _, ok := c.topics[bare]; !ok {
				continue
			}
		}
		select {
		case c.send <- msg:
		default:
			h.drops.Add(1)
		}
	}
	return nil
}

// Drops returns the number of frames lost to slow clients.
func (h *Hub) Drops() uint64 { return h.drops.Load() }

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams frames until the client goes
// away. Clients choose topics with ?topics=spectrum,audio; no parameter
// subscribes to everything.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if raw := r.URL.Query().Get("topics"); raw != "" {
		c.topics = make(map[string]struct{})
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				c.topics[t] = struct{}{}
			}
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("client connected", "remote", conn.RemoteAddr().String(), "clients", n)

	go c.writePump()

	// Read pump: the protocol is one way, but reading is what detects a
	// gone client.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	n = len(h.clients)
	h.mu.Unlock()
	close(c.send)
	h.log.Info("client disconnected", "remote", conn.RemoteAddr().String(), "clients", n)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// EncodeEnvelope frames a payload with its topic: one length byte, the
// topic, then the payload.
func EncodeEnvelope(topic string, payload []byte) ([]byte, error) {
	if len(topic) == 0 || len(topic) > 255 {
		return nil, fmt.Errorf("wshub: topic length %d outside [1, 255]", len(topic))
	}
	msg := make([]byte, 0, 1+len(topic)+len(payload))
	msg = append(msg, byte(len(topic)))
	msg = append(msg, topic...)
	return append(msg, payload...), nil
}

// DecodeEnvelope splits a framed message into topic and payload.
func DecodeEnvelope(msg []byte) (topic string, payload []byte, err error) {
	if len(msg) == 0 {
		return "", nil, fmt.Errorf("wshub: empty message")
	}
	n := int(msg[0])
	if len(msg) < 1+n {
		return "", nil, fmt.Errorf("wshub: truncated topic")
	}
	return string(msg[1 : 1+n]), msg[1+n:], nil
}
