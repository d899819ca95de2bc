package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"lifesim/internal/sim"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	backlogSize = 500
	sendBuffer  = 256
	pingPeriod  = 50 * time.Second
	pongWait    = 60 * time.Second
	writeWait   = 10 * time.Second
)

// Frame is one websocket message.
type Frame struct {
	Type  string `json:"type"`
	Age   int    `json:"age,omitempty"`
	Text  string `json:"text,omitempty"`
	Class string `json:"class,omitempty"`
	Name  string `json:"name,omitempty"`
	Value any    `json:"value,omitempty"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	closed int32
}

func (c *client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		close(c.send)
	}
}

// Hub is the render sink of one live session. It fans frames out to every
// subscriber and keeps recent log lines for late joiners.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	backlog [][]byte
	logger  *log.Logger
	done    bool
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{clients: map[*client]struct{}{}, logger: logger}
}

func (h *Hub) Log(e sim.LogEntry) {
	h.publish(Frame{Type: "log", Age: e.Age, Text: e.Text, Class: e.Class}, true)
}

func (h *Hub) Field(name string, value any) {
	h.publish(Frame{Type: "field", Name: name, Value: value}, false)
}

func (h *Hub) publish(f Frame, keep bool) {
	msg, err := json.Marshal(f)
	if err != nil {
		h.logger.Warn("encode frame", "type", f.Type, "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if keep {
		h.backlog = append(h.backlog, msg)
		if len(h.backlog) > backlogSize {
			h.backlog = h.backlog[len(h.backlog)-backlogSize:]
		}
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// slow reader; drop rather than stall the tick
		}
	}
}

func (h *Hub) subscribe(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer+backlogSize)}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, msg := range h.backlog {
		c.send <- msg
	}
	if h.done {
		c.close()
		return c
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// serve upgrades the request and pumps frames until either side goes away.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", "err", err)
		return
	}
	c := h.subscribe(conn)
	go h.writePump(c)

	defer h.unsubscribe(c)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read", "err", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("websocket write", "err", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
