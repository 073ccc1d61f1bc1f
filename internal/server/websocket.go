package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/conneroisu/assetpipe/internal/logging"
	"github.com/conneroisu/assetpipe/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed for the peer to answer a ping.
	pongWait = 60 * time.Second

	// Send pings to peer with this period.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Messages buffered per client before it is dropped as too slow.
	clientBuffer = 16
)

// Message types sent to the browser.
const (
	MessageReload = "reload"
	MessageError  = "error"
)

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Client represents a WebSocket client
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub tracks connected reload clients and fans messages out to them.
// Broadcasting never blocks: a client whose buffer is full is dropped.
type Hub struct {
	clients  map[string]*Client
	mutex    sync.RWMutex
	logger   logging.Logger
	recorder metrics.Recorder

	pingPeriod time.Duration
	pongWait   time.Duration

	// lastError is replayed to clients connecting while a failure is
	// outstanding.
	lastError string
}

// NewHub creates an empty hub.
func NewHub(logger logging.Logger, recorder metrics.Recorder) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Hub{
		clients:  make(map[string]*Client),
		logger:     logger.WithComponent("websocket"),
		recorder:   recorder,
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
	}
}

// Reload asks every client to refresh the page and clears any failure.
func (h *Hub) Reload(ctx context.Context) {
	h.mutex.Lock()
	h.lastError = ""
	h.mutex.Unlock()

	h.broadcast(ctx, UpdateMessage{Type: MessageReload, Timestamp: time.Now()})
}

// Failure asks every client to show err in an overlay.
func (h *Hub) Failure(ctx context.Context, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	h.mutex.Lock()
	h.lastError = msg
	h.mutex.Unlock()

	h.broadcast(ctx, UpdateMessage{Type: MessageError, Content: msg, Timestamp: time.Now()})
}

// LastError returns the outstanding failure message, if any.
func (h *Hub) LastError() string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.lastError
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mutex.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mutex.Unlock()

	for _, c := range clients {
		close(c.send)
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	h.recorder.SetReloadClients(0)
}

func (h *Hub) broadcast(ctx context.Context, msg UpdateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(ctx, err, "Failed to marshal message")
		data = []byte(`{"type":"reload"}`)
	}

	h.mutex.RLock()
	var slow []*Client
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	count := len(h.clients)
	h.mutex.RUnlock()

	for _, c := range slow {
		h.logger.Warn(ctx, nil, "Dropping slow client", "client", c.id)
		h.unregister(c)
	}
	h.logger.Debug(ctx, "Broadcast", "type", msg.Type, "clients", count-len(slow))
}

func (h *Hub) register(c *Client) {
	h.mutex.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	if h.lastError != "" {
		data, _ := json.Marshal(UpdateMessage{Type: MessageError, Content: h.lastError, Timestamp: time.Now()})
		c.send <- data
	}
	h.mutex.Unlock()

	h.recorder.SetReloadClients(count)
	h.logger.Debug(context.Background(), "Client connected", "client", c.id, "total", count)
}

func (h *Hub) unregister(c *Client) {
	h.mutex.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	count := len(h.clients)
	h.mutex.Unlock()

	if ok {
		c.conn.Close(websocket.StatusNormalClosure, "")
		h.recorder.SetReloadClients(count)
		h.logger.Debug(context.Background(), "Client disconnected", "client", c.id, "total", count)
	}
}

// ServeWS upgrades the request and serves one reload client until it
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, allowed []string) {
	if !checkOrigin(r, allowed) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: allowed,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientBuffer),
		hub:  h,
	}
	h.register(client)

	go client.writePump()
	client.readPump(r.Context())
}

// readPump consumes client messages until the connection fails. The
// browser never sends anything meaningful; reading keeps control frames
// flowing. Reads carry no deadline; dead peers are found by the pings in
// writePump.
func (c *Client) readPump(ctx context.Context) {
	defer c.hub.unregister(c)

	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.hub.logger.Debug(ctx, "WebSocket closed", "client", c.id, "error", err.Error())
			}
			return
		}
	}
}

// writePump pumps messages to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingPeriod)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.hub.unregister(c)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.hub.pongWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.hub.unregister(c)
				return
			}
		}
	}
}

// checkOrigin accepts same-origin browser requests and the configured dev
// hosts. Only http and https origins are allowed.
func checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	if originURL.Host == r.Host {
		return true
	}
	for _, a := range allowed {
		if originURL.Host == a {
			return true
		}
	}
	return false
}

// allowedOrigins lists the hosts a browser may connect from.
func allowedOrigins(host string, port int) []string {
	p := strconv.Itoa(port)
	origins := []string{host + ":" + p, "localhost:" + p, "127.0.0.1:" + p}
	if port == 80 {
		origins = append(origins, host, "localhost", "127.0.0.1")
	}
	return origins
}
