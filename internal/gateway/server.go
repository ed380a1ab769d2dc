// Package gateway is a minimal scoring server for the pose stream. It speaks
// the same Engine.IO/Socket.IO subset as the client: open packet, namespace
// connect, ping/pong and JSON events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DFly7/SimpleMediaPipe/internal/config"
	"github.com/DFly7/SimpleMediaPipe/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	sendBuffer      = 64
	writeWait       = 10 * time.Second
	shutdownTimeout = 5 * time.Second

	// Engine.IO's default maxHttpBufferSize.
	maxPayload = 1_000_000
)

// ErrTooManyConnections is returned when the connection cap is reached.
var ErrTooManyConnections = errors.New("gateway: too many connections")

type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Gateway

	// Gatherer backs /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Seed fixes session id generation in tests.
	Seed int64
}

type Server struct {
	cfg      config.GatewayConfig
	log      *zap.Logger
	metrics  *metrics.Gateway
	gatherer prometheus.Gatherer
	sids     *sidGenerator
	upgrader websocket.Upgrader

	mu       sync.Mutex
	peers    map[*peer]bool
	reserved int
}

func New(cfg config.GatewayConfig, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:      cfg,
		log:      logger.With(zap.String("component", "gateway")),
		metrics:  opts.Metrics,
		gatherer: gatherer,
		sids:     newSIDGenerator(opts.Seed),
		peers:    make(map[*peer]bool),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: checkOrigin}
	return s
}

// Routes builds the HTTP handler: the Socket.IO endpoint plus health and
// metrics.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/socket.io/", s.handleSocket)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "ok %d\n", s.ConnCount())
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("EIO") != "4" || q.Get("transport") != "websocket" {
		http.Error(w, "unsupported transport", http.StatusBadRequest)
		return
	}

	if !s.reserve() {
		s.log.Warn("Rejecting connection", zap.String("remote", r.RemoteAddr), zap.Error(ErrTooManyConnections))
		http.Error(w, ErrTooManyConnections.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.release(nil)
		s.log.Warn("Upgrade failed", zap.Error(err))
		return
	}

	p := newPeer(s, ws, s.sids.next())
	s.adopt(p)
	s.log.Info("Client connected", zap.String("sid", p.sid), zap.String("remote", r.RemoteAddr))

	go p.writePump()
	go p.pingLoop(s.cfg.PingInterval)
	if err := p.open(s.cfg.PingInterval, s.cfg.PingTimeout); err != nil {
		s.log.Warn("Failed to send open packet", zap.Error(err))
		p.close()
	}

	go func() {
		defer func() {
			s.release(p)
			s.log.Info("Client disconnected", zap.String("sid", p.sid), zap.String("remote", r.RemoteAddr))
		}()
		p.readLoop(s.cfg.PingInterval + s.cfg.PingTimeout)
	}()
}

// reserve claims a connection slot ahead of the upgrade.
func (s *Server) reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxConnections > 0 && len(s.peers)+s.reserved >= s.cfg.MaxConnections {
		return false
	}
	s.reserved++
	return true
}

func (s *Server) adopt(p *peer) {
	s.mu.Lock()
	s.reserved--
	s.peers[p] = true
	s.mu.Unlock()
	s.metrics.ConnectionOpened()
}

// release frees p's slot, or an unused reservation when p is nil.
func (s *Server) release(p *peer) {
	s.mu.Lock()
	if p == nil {
		s.reserved--
		s.mu.Unlock()
		return
	}
	_, ok := s.peers[p]
	delete(s.peers, p)
	s.mu.Unlock()

	if ok {
		s.metrics.ConnectionClosed()
	}
	p.close()
}

// ConnCount reports open connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// CloseAll disconnects every client.
func (s *Server) CloseAll() {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Gateway listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// checkOrigin admits native clients (no Origin header), same-host pages and
// loopback origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Host == r.Host {
		return true
	}

	host := parsed.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1" || strings.HasSuffix(host, ".localhost")
}
