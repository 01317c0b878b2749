// Package dashboard serves the cycle prediction dashboard: an HTML form for
// interactive use, a JSON API for the same predictions, and an advisory
// question channel over HTTP and WebSocket.
//
// Predictions and advisory questions are handled by separate endpoints so a
// slow or failing advisory service never affects a prediction.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cycle-dashboard/internal/advisory"
	"cycle-dashboard/internal/common"
	"cycle-dashboard/internal/features"
	"cycle-dashboard/internal/gateway"
	"cycle-dashboard/internal/present"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Predictor is the model gateway as seen by the dashboard.
type Predictor interface {
	Classify(ctx context.Context, purpose present.Purpose, obs features.Observation) (present.Result, error)
	Status() []gateway.ModelStatus
	Available(purpose present.Purpose) bool
}

// Advisor answers free-text questions.
type Advisor interface {
	Ask(ctx context.Context, question string) advisory.Exchange
	Enabled() bool
}

// MetricsInterface records per-route request outcomes.
type MetricsInterface interface {
	HTTPRequestsInc(route string, code int)
}

type nopMetrics struct{}

func (nopMetrics) HTTPRequestsInc(string, int) {}

// Options configures the server.
type Options struct {
	Addr           string
	MetricsHandler http.Handler // defaults to promhttp.Handler()
	Metrics        MetricsInterface
}

// Server provides the dashboard HTTP and WebSocket endpoints.
type Server struct {
	predictor Predictor                // Model gateway
	advisor   Advisor                  // Advisory gateway, may be disabled
	metrics   MetricsInterface         // Request counters
	server    *http.Server             // HTTP server for dashboard
	router    *mux.Router              // Route table
	upgrader  websocket.Upgrader       // WebSocket upgrader for advisory questions
	clients   map[*websocket.Conn]bool // Connected WebSocket clients
	clientsMu sync.Mutex               // Mutex for client map access
	isRunning bool                     // Whether the server is running
	mu        sync.Mutex               // Mutex for server state
}

// NewServer wires the routes. A nil advisor behaves as a disabled one.
func NewServer(predictor Predictor, advisor Advisor, opts Options) *Server {
	if advisor == nil {
		advisor = (*advisory.Gateway)(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.MetricsHandler == nil {
		opts.MetricsHandler = promhttp.Handler()
	}

	s := &Server{
		predictor: predictor,
		advisor:   advisor,
		metrics:   opts.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		clients: make(map[*websocket.Conn]bool),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/v1/classify/{purpose}", s.handleClassify).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/models", s.handleModels).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/advisory", s.handleAdvisory).Methods(http.MethodPost)
	r.HandleFunc("/ws/advisory", s.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", opts.MetricsHandler).Methods(http.MethodGet)
	s.router = r

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      common.HTTPWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the dashboard server
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("dashboard is already running")
	}

	go func() {
		log.Info().
			Str("address", s.server.Addr).
			Msg("Starting dashboard server")

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Dashboard server failed")
		}
	}()

	s.isRunning = true
	return nil
}

// Stop closes WebSocket clients and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	// Close all WebSocket connections
	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.clientsMu.Unlock()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown dashboard server")
		return err
	}

	s.isRunning = false
	log.Info().Msg("Dashboard stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
