// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	applog "audioviz/internal/log"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

var wsLogger = applog.For("WebSocket")

const (
	// DefaultQueueSize bounds the broadcast queue.
	DefaultQueueSize = 256
	writeTimeout     = time.Second
)

// WebSocketOptions configures a WebSocketTransport.
type WebSocketOptions struct {
	Addr string
	// QueueSize bounds pending broadcasts; a full queue drops the message.
	QueueSize int
	// MessagesPerSecond caps the broadcast rate. Zero means unlimited.
	MessagesPerSecond float64
	// Gatherer, when set, is served at /metrics.
	Gatherer prometheus.Gatherer
	Metrics  *Metrics
}

// WebSocketTransport broadcasts every message as JSON to all clients
// connected at /ws.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	closed    bool // set by Close under clientsMu; no client is added after
	broadcast chan any
	limiter   *rate.Limiter
	gatherer  prometheus.Gatherer
	metrics   *Metrics

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWebSocketTransport creates a transport and starts its broadcast loop.
// Call ListenAndServe to accept clients on opts.Addr, or mount Handler on
// an existing server.
func NewWebSocketTransport(opts WebSocketOptions) *WebSocketTransport {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	wst := &WebSocketTransport{
		addr: opts.Addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // The renderer may be served from any origin.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, opts.QueueSize),
		gatherer:  opts.Gatherer,
		metrics:   opts.Metrics,
		done:      make(chan struct{}),
	}
	if opts.MessagesPerSecond > 0 {
		burst := int(opts.MessagesPerSecond / 10)
		if burst < 2 {
			burst = 2
		}
		wst.limiter = rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), burst)
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Handler returns the mux serving /ws and, when configured, /metrics.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	if wst.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(wst.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe binds the configured address and serves in the background.
// Bind errors are returned synchronously.
func (wst *WebSocketTransport) ListenAndServe() error {
	wst.mu.Lock()
	defer wst.mu.Unlock()

	select {
	case <-wst.done:
		return ErrClosed
	default:
	}
	if wst.server != nil {
		return fmt.Errorf("websocket server already listening on %s", wst.listener.Addr())
	}
	l, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", wst.addr, err)
	}
	wst.listener = l
	wst.server = &http.Server{
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	server := wst.server
	wst.wg.Add(1)
	go func() {
		defer wst.wg.Done()
		wsLogger.Infof("Starting WebSocket server on %s", l.Addr())
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wsLogger.Errorf("Server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before listening.
func (wst *WebSocketTransport) Addr() string {
	wst.mu.Lock()
	defer wst.mu.Unlock()
	if wst.listener != nil {
		return wst.listener.Addr().String()
	}
	return wst.addr
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket and keeps reading
// until the client goes away.
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-wst.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsLogger.Warnf("Upgrade error: %v", err)
		return
	}

	wst.addClient(conn)
}

// addClient registers conn and starts its read loop. It reports false, and
// closes conn, once Close has started.
func (wst *WebSocketTransport) addClient(conn *websocket.Conn) bool {
	wst.clientsMu.Lock()
	if wst.closed {
		wst.clientsMu.Unlock()
		conn.Close()
		return false
	}
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.wg.Add(1)
	wst.clientsMu.Unlock()

	wst.metrics.setClients(total)
	wsLogger.Infof("Client connected, total: %d", total)

	go func() {
		defer wst.wg.Done()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wst.removeClient(conn)
	}()
	return true
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	conn.Close()
	if ok {
		wst.metrics.setClients(total)
		wsLogger.Infof("Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends queued messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.writeAll(data)
		}
	}
}

func (wst *WebSocketTransport) writeAll(data any) {
	kind := messageType(data)

	wst.clientsMu.Lock()
	var failed []*websocket.Conn
	for client := range wst.clients {
		client.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.WriteJSON(data); err != nil {
			wsLogger.Warnf("Error sending to client: %v", err)
			wst.metrics.writeFailed()
			failed = append(failed, client)
			continue
		}
		wst.metrics.messageSent(kind)
	}
	wst.clientsMu.Unlock()

	for _, client := range failed {
		wst.removeClient(client)
	}
}

// Send queues data for broadcast. Messages are dropped, not queued, when
// the queue is full or the rate limit is exceeded.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	if wst.limiter != nil && !wst.limiter.Allow() {
		wst.metrics.messageDropped("rate")
		return nil
	}

	select {
	case wst.broadcast <- data:
	default:
		wst.metrics.messageDropped("queue")
	}
	return nil
}

// Close shuts down the server, disconnects all clients and stops the
// broadcast loop.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wsLogger.Infof("Closing server")
		close(wst.done)

		wst.mu.Lock()
		if wst.server != nil {
			err = wst.server.Close()
		}
		wst.mu.Unlock()

		wst.clientsMu.Lock()
		wst.closed = true
		for client := range wst.clients {
			client.Close()
		}
		wst.clientsMu.Unlock()

		wst.wg.Wait()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
