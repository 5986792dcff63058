package status

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	INFO = iota
	ERROR
	PROGRESS
)

type Message struct {
	Message  string
	Time     time.Time
	Type     int
	Progress float32
}

type client struct {
	id   uuid.UUID
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(time.Second * 30)
	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[status] %v ws write msg error: %v", c.id, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[status] %v ws write ping error: %v", c.id, err)
				return
			}
		}
	}
}

// readPump drains control frames and notices disconnects
func (c *client) readPump() {
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			c.hub.unregister(c)
			return
		}
	}
}

// Hub broadcasts status messages to every connected websocket client. New
// clients receive the last message right away.
type Hub struct {
	broadcast chan *Message
	lock      sync.Mutex
	clients   map[*client]bool
	last      []byte
}

func NewHub() *Hub {
	h := &Hub{
		broadcast: make(chan *Message, 16),
		clients:   make(map[*client]bool),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for s := range h.broadcast {
		data, err := json.Marshal(s)
		if err != nil {
			panic(err)
		}
		h.lock.Lock()
		h.last = data
		for c := range h.clients {
			select {
			case c.send <- data:
			default:
				log.Printf("[status] %v is too slow, dropping", c.id)
				h.drop(c)
			}
		}
		h.lock.Unlock()
	}
}

// drop expects h.lock to be held
func (h *Hub) drop(c *client) {
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) unregister(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.drop(c)
}

// Serve takes ownership of the websocket connection.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := &client{id: uuid.New(), hub: h, conn: conn, send: make(chan []byte, 32)}
	h.lock.Lock()
	h.clients[c] = true
	if h.last != nil {
		c.send <- h.last
	}
	h.lock.Unlock()

	log.Printf("[status] client %v connected", c.id)
	go c.writePump()
	go c.readPump()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (h *Hub) HandlerWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[status] ws upgrade error: %v", err)
		return
	}
	h.Serve(conn)
}

func (h *Hub) Status(msg string, _type int, progress float32) {
	if math.IsNaN(float64(progress)) || math.IsInf(float64(progress), 0) {
		progress = 0
	}
	h.broadcast <- &Message{
		Message:  msg,
		Time:     time.Now(),
		Type:     _type,
		Progress: progress}
}

func (h *Hub) Info(format string, a ...interface{}) {
	h.Status(fmt.Sprintf(format, a...), INFO, 0.0)
}

func (h *Hub) Error(format string, a ...interface{}) {
	h.Status(fmt.Sprintf(format, a...), ERROR, 0.0)
}

func (h *Hub) Progress(progress float32, format string, a ...interface{}) {
	h.Status(fmt.Sprintf(format, a...), PROGRESS, progress)
}

var DefaultHub = NewHub()

func Info(format string, a ...interface{}) {
	DefaultHub.Info(format, a...)
}

func Error(format string, a ...interface{}) {
	DefaultHub.Error(format, a...)
}

func Progress(progress float32, format string, a ...interface{}) {
	DefaultHub.Progress(progress, format, a...)
}
