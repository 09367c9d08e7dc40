package server

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans model events out to every connected feed client. The most
// recent event is replayed to clients as they join.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
	seq     uint64
	last    []byte
}

// NewBroadcaster creates a broadcaster with no clients.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]bool),
	}
}

// AddClient registers conn, replays the last event to it and starts its
// write pump.
func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	last := b.last
	b.mu.Unlock()

	if last != nil {
		select {
		case c.send <- last:
		default:
			// Client too slow, drop the replay
		}
	}

	return c
}

// RemoveClient closes c. Removing a client twice is a no-op.
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// Publish stamps the next sequence number on an event and sends it. Sends
// happen under the lock so RemoveClient cannot close a channel mid-send.
func (b *Broadcaster) Publish(t MessageType, payload EventPayload) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	data, err := json.Marshal(WSMessage{Type: t, Seq: b.seq, Payload: payload})
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}
	b.last = data

	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up, disconnect it
			log.Printf("ws client too slow, disconnecting")
			delete(b.clients, c)
			c.close()
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
