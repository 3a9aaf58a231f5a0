// Package dashboard serves the copier's HTTP status endpoints.
//
// The server exposes:
//   - /metrics: Prometheus metrics from a metrics.Collector
//   - /health: readiness as JSON, 503 until setup has completed
//   - /ws: a WebSocket feed of copy activity
//
// Server implements daemon.Observer, so passing it as the daemon's
// observer is all that is needed to feed connected clients.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/containercopier/container-copier/internal/daemon"
	"github.com/containercopier/container-copier/internal/metrics"
	"github.com/containercopier/container-copier/internal/notify"
)

// MessageType names a feed message.
type MessageType string

const (
	// MessageTypeHello is sent to every client on connect.
	MessageTypeHello MessageType = "hello"

	// MessageTypeSetupComplete is sent once all watches are registered.
	MessageTypeSetupComplete MessageType = "setup_complete"

	// MessageTypeCopy reports a completed copy.
	MessageTypeCopy MessageType = "copy"

	// MessageTypeCopyFailed reports a failed copy. The daemon stops after it.
	MessageTypeCopyFailed MessageType = "copy_failed"

	// MessageTypeUnknownWatch reports an event for an unregistered watch.
	MessageTypeUnknownWatch MessageType = "unknown_watch"
)

// Message is one feed message.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// CopyData describes a copy or a failed copy.
type CopyData struct {
	Copyset string `json:"copyset"`
	Source  string `json:"source"`
	Target  string `json:"target"`
	Phase   string `json:"phase,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SetupData summarises setup.
type SetupData struct {
	Targets  int           `json:"targets"`
	Watches  int           `json:"watches"`
	Duration time.Duration `json:"duration"`
}

// UnknownWatchData names the unknown watch id.
type UnknownWatchData struct {
	WatchID int `json:"wd"`
}

// HealthData is the /health response body.
type HealthData struct {
	Status  string `json:"status"`
	Targets int    `json:"targets"`
	Copies  int64  `json:"copies"`
	Clients int    `json:"clients"`
}

// Config holds server configuration.
type Config struct {
	// Addr to listen on, e.g. ":9090". Port 0 picks a free port.
	Addr string

	// Logger for server activity. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics is served on /metrics. May be nil.
	Metrics *metrics.Collector
}

// Server serves the status endpoints and broadcasts feed messages.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	metrics  *metrics.Collector

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ready   atomic.Bool
	targets atomic.Int64
	copies  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *zap.Logger
}

var _ daemon.Observer = (*Server)(nil)

// NewServer creates a server. Call Start to begin listening.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      cfg.Addr,
		metrics:   cfg.Metrics,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.Named("dashboard"),
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("Status server listening", zap.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop closes client connections and shuts the server down.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	var err error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("server shutdown error: %w", shutdownErr)
		}
	}

	s.wg.Wait()
	s.logger.Debug("Status server stopped")
	return err
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected feed clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Broadcast queues msg for every client. It drops the message when the
// queue is full.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Warn("Broadcast queue full, dropping message", zap.String("type", string(msg.Type)))
	}
}

func (s *Server) publish(t MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("Failed to marshal message", zap.String("type", string(t)), zap.Error(err))
		return
	}
	s.Broadcast(Message{Type: t, Timestamp: time.Now(), Data: raw})
}

// SetupComplete marks the server ready and notifies clients.
func (s *Server) SetupComplete(targets, watches int, elapsed time.Duration) {
	s.targets.Store(int64(targets))
	s.ready.Store(true)
	s.publish(MessageTypeSetupComplete, SetupData{Targets: targets, Watches: watches, Duration: elapsed})
}

// Copied notifies clients of a completed copy.
func (s *Server) Copied(w *daemon.ResolvedWatch, phase string) {
	s.copies.Add(1)
	s.publish(MessageTypeCopy, CopyData{Copyset: w.Copyset, Source: w.Source, Target: w.Target, Phase: phase})
}

// CopyFailed notifies clients of a failed copy.
func (s *Server) CopyFailed(w *daemon.ResolvedWatch, err error) {
	s.publish(MessageTypeCopyFailed, CopyData{Copyset: w.Copyset, Source: w.Source, Target: w.Target, Error: err.Error()})
}

// UnknownWatch notifies clients of an event for an unregistered watch.
func (s *Server) UnknownWatch(id notify.WatchID) {
	s.publish(MessageTypeUnknownWatch, UnknownWatchData{WatchID: int(id)})
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error("Failed to marshal message", zap.Error(err))
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.logger.Debug("Failed to send to client", zap.Error(err))
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Debug("Client connected", zap.Int("clients", count))

	hello, _ := json.Marshal(Message{Type: MessageTypeHello, Timestamp: time.Now()})
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, hello)
	cancel()

	go s.readLoop(conn)
}

// readLoop drains the client until it disconnects.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)
	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, ok := s.clients[conn]; !ok {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, conn)
	count := len(s.clients)
	s.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Debug("Client disconnected", zap.Int("clients", count))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := HealthData{
		Status:  "starting",
		Targets: int(s.targets.Load()),
		Copies:  s.copies.Load(),
		Clients: s.ClientCount(),
	}
	code := http.StatusServiceUnavailable
	if s.ready.Load() {
		body.Status = "ok"
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
