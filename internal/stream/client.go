package stream

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type client struct {
	hub  *Hub
	conn *websocket.Conn
	id   string
	out  chan []byte

	mu   sync.RWMutex
	subs map[string]bool

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(h *Hub, conn *websocket.Conn, id string) *client {
	return &client{
		hub:  h,
		conn: conn,
		id:   id,
		out:  make(chan []byte, h.opts.SendBuffer),
		subs: make(map[string]bool),
		done: make(chan struct{}),
	}
}

// subscribed reports whether the client wants topic.
func (c *client) subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) == 0 || c.subs[topic]
}

func (c *client) subscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		if t = strings.TrimSpace(t); knownTopic(t) {
			c.subs[t] = true
		}
	}
}

func (c *client) unsubscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.subs, strings.TrimSpace(t))
	}
}

func (c *client) topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for t := range c.subs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// enqueue queues a frame without blocking. It returns false when the buffer is full.
func (c *client) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.out <- b:
		return true
	default:
		return false
	}
}

// send queues a direct reply to this client.
func (c *client) send(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = c.hub.now().UTC()
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if !c.enqueue(b) {
		c.hub.unregister(c)
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(c.hub.now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(c.hub.now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Str("client_id", c.id).Msg("read error")
			}
			return
		}
		c.handle(raw)
	}
}

func (c *client) handle(raw []byte) {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		c.send(Message{Type: TypeError, Error: "invalid message"})
		return
	}

	switch req.Type {
	case "subscribe":
		c.subscribe(req.Streams)
		c.send(Message{Type: TypeSubscriptionConfirmed, Streams: c.topics()})
	case "unsubscribe":
		c.unsubscribe(req.Streams)
		c.send(Message{Type: TypeUnsubscriptionConfirmed, Streams: req.Streams})
	case "ping":
		c.send(Message{Type: TypePong})
	case "get_status":
		c.send(c.hub.statusMessage())
	default:
		c.send(Message{Type: TypeError, Error: "unknown message type: " + req.Type})
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(c.hub.now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case b := <-c.out:
			_ = c.conn.SetWriteDeadline(c.hub.now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.hub.unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(c.hub.now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.unregister(c)
				return
			}
		}
	}
}
