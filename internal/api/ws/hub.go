package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
)

// Event types sent to clients
const (
	EventSystem       = "system"
	EventNotification = "notification"
	EventReload       = "reload"
	EventPong         = "pong"
	EventError        = "error"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxMessage   = 4096
)

// ErrHubClosed is returned by Reload after Close
var ErrHubClosed = errors.New("ws: hub closed")

var codec = sonic.ConfigStd

// Event is one message on the stream
type Event struct {
	Type         string              `json:"type"`
	ClientID     string              `json:"clientId,omitempty"`
	Message      string              `json:"message,omitempty"`
	Notification *types.Notification `json:"notification,omitempty"`
	Frame        *types.FrameSpec    `json:"frame,omitempty"`
	Timestamp    int64               `json:"timestamp"`
}

// inbound is a message read from a client
type inbound struct {
	Type string `json:"type"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans workspace events out to every connected WebSocket client
type Hub struct {
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	policy   *bluemonday.Policy
	upgrader websocket.Upgrader
	now      func() time.Time

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

// NewHub creates a hub. Origins are checked by CORS in front of the router.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		policy: bluemonday.StrictPolicy(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// WithMetrics attaches metrics to the hub
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// Notify broadcasts a sanitized notification. It never blocks.
func (h *Hub) Notify(message string, severity types.Severity) {
	n := types.Notification{
		Message:  h.policy.Sanitize(message),
		Severity: severity,
		Time:     h.now(),
	}
	h.broadcast(Event{Type: EventNotification, Notification: &n})
}

// Reload asks clients to reload one frame
func (h *Hub) Reload(ctx context.Context, frame types.FrameSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrHubClosed
	}
	h.broadcast(Event{Type: EventReload, Frame: &frame})
	return nil
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

// HandleConnection upgrades the request and serves the client until it leaves
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if !h.register(cl) {
		conn.Close()
		return
	}
	defer h.unregister(cl)

	h.logger.Debug("WebSocket client connected", zap.String("client_id", cl.id))
	h.enqueue(cl, Event{Type: EventSystem, ClientID: cl.id, Message: "Connected to DeviceMatrix"})

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		c.close()
	}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.DecWSConnections()
	}
	h.logger.Debug("WebSocket client disconnected", zap.String("client_id", c.id))
}

func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := codec.Unmarshal(data, &msg); err != nil {
			h.enqueue(c, Event{Type: EventError, Message: "malformed message"})
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		switch msg.Type {
		case "ping":
			h.enqueue(c, Event{Type: EventPong})
		default:
			h.enqueue(c, Event{Type: EventError, Message: "unknown message type"})
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
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) encode(ev Event) ([]byte, bool) {
	ev.Timestamp = h.now().Unix()
	data, err := codec.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("type", ev.Type), zap.Error(err))
		return nil, false
	}
	return data, true
}

// enqueue sends to one client. Callers hold no lock.
func (h *Hub) enqueue(c *client, ev Event) {
	data, ok := h.encode(ev)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, live := h.clients[c.id]; !live {
		return
	}
	select {
	case c.send <- data:
		h.recordOut(ev.Type)
	default:
	}
}

func (h *Hub) broadcast(ev Event) {
	data, ok := h.encode(ev)
	if !ok {
		return
	}

	var slow []*client
	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
			h.recordOut(ev.Type)
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	// clients that cannot keep up are dropped
	for _, c := range slow {
		h.logger.Warn("Dropping slow WebSocket client", zap.String("client_id", c.id))
		h.mu.Lock()
		if _, ok := h.clients[c.id]; ok {
			delete(h.clients, c.id)
			c.close()
		}
		h.mu.Unlock()
	}
}

func (h *Hub) recordOut(msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage("out", msgType)
	}
}
