package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventRuleMatched = "rule_matched"

	writeWait      = 10 * time.Second
	clientBuffer   = 64
	broadcastQueue = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is what dashboards receive
type Event struct {
	Type      string    `json:"type"`
	CompanyID string    `json:"companyId"`
	Data      any       `json:"data"`
	At        time.Time `json:"at"`
}

// Client is one dashboard connection, subscribed to a single company
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	companyID string
}

type outbound struct {
	companyID string
	payload   []byte
}

// Hub fans automation events out to the dashboards of the owning company.
// Publish never blocks: events are dropped when the queue or a client
// buffer is full.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		broadcast:  make(chan outbound, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

// Run delivers events until ctx is done, then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("WebSocket client registered", zap.String("company_id", client.companyID))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("WebSocket client unregistered", zap.String("company_id", client.companyID))
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.companyID != message.companyID {
					continue
				}
				select {
				case client.send <- message.payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for the company's dashboards
func (h *Hub) Publish(companyID, eventType string, data any) {
	payload, err := json.Marshal(Event{Type: eventType, CompanyID: companyID, Data: data, At: time.Now().UTC()})
	if err != nil {
		h.logger.Warn("Error marshaling WS event", zap.String("type", eventType), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- outbound{companyID: companyID, payload: payload}:
	default:
		h.logger.Warn("WS event queue full, dropping event", zap.String("type", eventType))
	}
}

// ConnectedClients returns how many dashboards follow companyID
func (h *Hub) ConnectedClients(companyID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for client := range h.clients {
		if client.companyID == companyID {
			n++
		}
	}
	return n
}

// ServeWs upgrades GET /ws/companies/:companyId/automation
func (h *Hub) ServeWs(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, clientBuffer), companyID: c.Param("companyId")}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only watches for the peer going away
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
