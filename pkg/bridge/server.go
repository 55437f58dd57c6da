package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config holds bridge configuration.
type Config struct {
	Host string // bind address, empty = all interfaces
	Port int

	PressureThreshold float64    // initial threshold when Threshold is nil
	Threshold         *Threshold // shared gate; created from PressureThreshold if nil

	QueueCapacity  int           // per output queue
	MaxFrameBytes  int64         // read limit per frame
	ReadTimeout    time.Duration // idle read deadline, 0 = none
	FrameRate      float64       // frames/sec per connection, 0 = unlimited
	FrameBurst     int
	UpgradeRate    int // upgrade attempts per minute per IP, 0 = unlimited
	AllowedOrigins []string

	Logger  *log.Logger
	Verbose bool // log dropped frames

	Now   func() time.Time // timestamp source
	NewID func() string    // connection identity source
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:              3030,
		PressureThreshold: 200,
		QueueCapacity:     DefaultQueueCapacity,
		MaxFrameBytes:     4096,
		UpgradeRate:       60,
	}
}

// Addr returns the host:port the server binds.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Stats is a point-in-time view of the bridge.
type Stats struct {
	Connections       int     `json:"connections"`
	ActionsQueued     int     `json:"actions_queued"`
	SnapshotsQueued   int     `json:"snapshots_queued"`
	QueueCapacity     int     `json:"queue_capacity"`
	PressureThreshold float64 `json:"pressure_threshold"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// Server accepts controller connections and owns the shared state: the
// threshold gate, the connection state store and both output queues.
type Server struct {
	Config Config

	threshold    *Threshold
	states       *StateStore
	actions      *Ring[ActionEvent]
	simultaneous *Ring[SimultaneousActions]
	metrics      *Metrics
	logger       *log.Logger
	limiter      *upgradeLimiter
	upgrader     websocket.Upgrader
	mux          *http.ServeMux
	httpSrv      *http.Server
	startTime    time.Time

	mu       sync.Mutex
	listener net.Listener
	conns    map[*controllerConn]struct{}
	done     chan struct{}
	closed   bool
}

// New creates a server. Nothing is bound until Listen or Start.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Threshold == nil {
		cfg.Threshold = NewThreshold(cfg.PressureThreshold)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	s := &Server{
		Config:       cfg,
		threshold:    cfg.Threshold,
		states:       NewStateStore(),
		actions:      NewRing[ActionEvent](cfg.QueueCapacity),
		simultaneous: NewRing[SimultaneousActions](cfg.QueueCapacity),
		logger:       logger,
		limiter:      newUpgradeLimiter(cfg.UpgradeRate),
		mux:          http.NewServeMux(),
		startTime:    time.Now(),
		conns:        make(map[*controllerConn]struct{}),
		done:         make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
	}
	s.metrics = NewMetrics(s, s.startTime)
	s.registerRoutes()
	return s
}

// registerRoutes sets up the HTTP routes.
func (s *Server) registerRoutes() {
	upgrade := rateLimitMiddleware(s.limiter, http.HandlerFunc(s.handleWebSocket))

	// Controller firmware connects to "/", newer clients to "/ws".
	s.mux.Handle("GET /{$}", upgrade)
	s.mux.Handle("GET /ws", upgrade)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.httpSrv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handle mounts an extra handler (e.g. the admin API) on the server's mux.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler returns the root HTTP handler, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Metrics returns the server's metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Listen binds the configured address. A bind failure is returned as is;
// it is never retried.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.Config.Addr())
	if err != nil {
		return fmt.Errorf("bridge: listen on %s: %w", s.Config.Addr(), err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Printf("Listening for controllers on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections on the bound listener until the server is
// closed. Each connection is handled on its own goroutine.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("bridge: Serve called before Listen")
	}

	if s.limiter != nil {
		go s.limiterCleanup()
	}

	err := s.httpSrv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start binds and serves. It blocks; run it on its own goroutine, away from
// the consumer's tick loop.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Close stops accepting and drops every open controller connection.
func (s *Server) Close() error {
	conns := s.stop()
	for _, c := range conns {
		c.ws.Close()
	}
	return s.httpSrv.Close()
}

// Shutdown stops accepting, closes controllers with a going-away frame and
// waits for in-flight HTTP requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	conns := s.stop()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range conns {
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.ws.Close()
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) stop() []*controllerConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	conns := make([]*controllerConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

func (s *Server) limiterCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.limiter.cleanup(10 * time.Minute)
		}
	}
}

func (s *Server) track(c *controllerConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *controllerConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// --- Consumer API ---

// Threshold returns the shared threshold handle.
func (s *Server) Threshold() *Threshold {
	return s.threshold
}

// SetPressureThreshold replaces the pressure threshold for all connections.
func (s *Server) SetPressureThreshold(v float64) {
	s.threshold.Set(v)
}

// AdjustPressureThreshold moves the threshold by delta within
// [0, MaxPressureThreshold] and returns the new value.
func (s *Server) AdjustPressureThreshold(delta float64) float64 {
	return s.threshold.Adjust(delta)
}

// PressureThreshold returns the current pressure threshold.
func (s *Server) PressureThreshold() float64 {
	return s.threshold.Get()
}

// DrainActions removes and returns all queued action events, oldest first.
// It never blocks: if a handler holds the queue lock it returns nothing and
// the events wait for the next call.
func (s *Server) DrainActions() []ActionEvent {
	items, ok := s.actions.Drain()
	if !ok {
		s.metrics.drainMiss(queueActions)
	}
	return items
}

// DrainSimultaneous removes and returns all queued gesture snapshots with
// the same non-blocking semantics as DrainActions.
func (s *Server) DrainSimultaneous() []SimultaneousActions {
	items, ok := s.simultaneous.Drain()
	if !ok {
		s.metrics.drainMiss(queueSimultaneous)
	}
	return items
}

// ConnectionState returns the current state for a connection id.
func (s *Server) ConnectionState(id string) (ConnectionState, bool) {
	return s.states.Get(id)
}

// Stats returns a snapshot of connection and queue counts.
func (s *Server) Stats() Stats {
	return Stats{
		Connections:       s.states.Len(),
		ActionsQueued:     s.actions.Len(),
		SnapshotsQueued:   s.simultaneous.Len(),
		QueueCapacity:     s.actions.Cap(),
		PressureThreshold: s.threshold.Get(),
		UptimeSeconds:     time.Since(s.startTime).Seconds(),
	}
}

// --- Health Handler ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"version":        Version,
		"uptime_seconds": stats.UptimeSeconds,
		"connections":    stats.Connections,
	})
}
