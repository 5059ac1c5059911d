package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	models "AlphaCrew/internal/domain/models"
	xlogger "AlphaCrew/pkg/logger"
)

const (
	FrameInvocation = "invocation"
	FrameDrift      = "drift"
)

// Frame is one message on the telemetry stream.
type Frame struct {
	Type     string      `json:"type"`
	Producer string      `json:"producer"`
	Data     interface{} `json:"data"`
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	producer string // empty receives every producer
	once     sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// TelemetryHub streams invocation records and drift warnings to websocket
// clients. Slow clients are disconnected instead of blocking the collector.
type TelemetryHub struct {
	logger       *xlogger.Logger
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeWait    time.Duration
	bufSize      int

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewTelemetryHub(logger *xlogger.Logger, pingInterval time.Duration) *TelemetryHub {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &TelemetryHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		writeWait:    10 * time.Second,
		bufSize:      64,
		clients:      make(map[*client]struct{}),
	}
}

func (h *TelemetryHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/telemetry", h.Stream)
}

// Stream upgrades the request; ?producer= narrows the stream to one agent.
func (h *TelemetryHub) Stream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", xlogger.Error(err))
		return nil
	}
	cl := &client{conn: conn, send: make(chan []byte, h.bufSize), producer: c.QueryParam("producer")}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("ws client connected", xlogger.String("remote", c.RealIP()), xlogger.String("producer", cl.producer))

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

// readPump only watches for the peer going away.
func (h *TelemetryHub) readPump(cl *client) {
	defer h.remove(cl)
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *TelemetryHub) writePump(cl *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *TelemetryHub) remove(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	delete(h.clients, cl)
	h.mu.Unlock()
	if ok {
		cl.close()
	}
}

func (h *TelemetryHub) broadcast(f Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("ws marshal frame", xlogger.Error(err))
		return
	}
	var slow []*client
	h.mu.RLock()
	for cl := range h.clients {
		if cl.producer != "" && cl.producer != f.Producer {
			continue
		}
		select {
		case cl.send <- b:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()
	for _, cl := range slow {
		h.logger.Warn("ws client too slow, disconnecting", xlogger.String("producer", cl.producer))
		h.remove(cl)
	}
}

// OnRecord implements telemetry.Subscriber.
func (h *TelemetryHub) OnRecord(rec models.AgentInvocationRecord) {
	h.broadcast(Frame{Type: FrameInvocation, Producer: rec.Producer, Data: rec})
}

// OnDrift implements telemetry.DriftSubscriber.
func (h *TelemetryHub) OnDrift(report models.DriftReport) {
	h.broadcast(Frame{Type: FrameDrift, Producer: report.Producer, Data: report.Warnings()})
}

// Clients returns the number of connected clients.
func (h *TelemetryHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *TelemetryHub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for cl := range clients {
		cl.close()
	}
}
