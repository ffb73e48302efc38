// Package rooms fans out realtime messages to WebSocket subscribers grouped
// by community. The hub owns no message format: handlers hand it JSON
// payloads and room IDs.
package rooms

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// sendBufferSize is the per-client queue; slow consumers drop messages
	// rather than block the broadcaster.
	sendBufferSize = 64

	// PingInterval is how often each connection is pinged. A missed pong
	// does not evict the client; the transport timeout closes dead
	// connections on its own.
	PingInterval = 30 * time.Second

	writeWait = 10 * time.Second
)

// Registry is the fan-out surface handlers use.
type Registry interface {
	Join(conn *websocket.Conn, communityIDs []string) *Client
	Leave(c *Client)
	Broadcast(communityID string, payload []byte)
	Rooms() map[string]int
}

// Hub maintains rooms keyed by community ID.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

var _ Registry = (*Hub)(nil)

// Client is one subscribed connection. All writes go through the send
// channel so a single goroutine owns the connection (gorilla requires one
// writer).
type Client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool

	communityIDs []string
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Join registers the connection in every listed room and starts its write
// loop. The caller keeps reading from the connection and calls Leave when
// the read side errors.
func (h *Hub) Join(conn *websocket.Conn, communityIDs []string) *Client {
	c := &Client{
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		communityIDs: communityIDs,
	}
	h.mu.Lock()
	for _, id := range communityIDs {
		if h.rooms[id] == nil {
			h.rooms[id] = make(map[*Client]struct{})
		}
		h.rooms[id][c] = struct{}{}
	}
	h.mu.Unlock()

	go c.writeLoop()
	return c
}

// Leave removes the client from all its rooms, pruning rooms that empty
// out, and shuts down its write loop. Safe to call more than once.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	for _, id := range c.communityIDs {
		if room, ok := h.rooms[id]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, id)
			}
		}
	}
	h.mu.Unlock()
	c.close()
}

// Broadcast queues the payload for every client in the room. Clients with a
// full queue miss this message.
func (h *Hub) Broadcast(communityID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[communityID] {
		c.trySend(payload)
	}
}

// Rooms returns a snapshot of room sizes.
func (h *Hub) Rooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.rooms))
	for id, room := range h.rooms {
		out[id] = len(room)
	}
	return out
}

// Send queues a payload for this client only (welcome frames, pong replies).
func (c *Client) Send(payload []byte) {
	c.trySend(payload)
}

// CommunityIDs returns the rooms this client joined.
func (c *Client) CommunityIDs() []string {
	return c.communityIDs
}

func (c *Client) trySend(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		// Drop if client is slow — prevents blocking the broadcaster.
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
