package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"torrentsession/internal/domain"
	"torrentsession/internal/usecase"
)

type AddTransferUseCase interface {
	Execute(ctx context.Context, input usecase.AddTransferInput) (domain.TransferInfo, error)
}

type PauseTransferUseCase interface {
	Execute(ctx context.Context, id domain.TransferID) (domain.TransferInfo, error)
}

type ResumeTransferUseCase interface {
	Execute(ctx context.Context, id domain.TransferID) (domain.TransferInfo, error)
}

type RemoveTransferUseCase interface {
	Execute(ctx context.Context, id domain.TransferID) error
}

type GetTransferUseCase interface {
	Execute(ctx context.Context, id domain.TransferID) (domain.TransferInfo, error)
}

type ListTransfersUseCase interface {
	Execute(ctx context.Context) []domain.TransferInfo
}

type HistoryStore interface {
	ListRecent(ctx context.Context, limit int) ([]domain.LifecycleEvent, error)
}

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRateLimitRPS   = 100
	defaultRateLimitBurst = 200
)

type Server struct {
	addTransfer    AddTransferUseCase
	pauseTransfer  PauseTransferUseCase
	resumeTransfer ResumeTransferUseCase
	removeTransfer RemoveTransferUseCase
	getTransfer    GetTransferUseCase
	listTransfers  ListTransfersUseCase
	history        HistoryStore
	allowedOrigins []string
	rateLimitRPS   float64
	rateLimitBurst int
	requestTimeout time.Duration
	uploadDir      string
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithPauseTransfer(uc PauseTransferUseCase) ServerOption {
	return func(s *Server) {
		s.pauseTransfer = uc
	}
}

func WithResumeTransfer(uc ResumeTransferUseCase) ServerOption {
	return func(s *Server) {
		s.resumeTransfer = uc
	}
}

func WithRemoveTransfer(uc RemoveTransferUseCase) ServerOption {
	return func(s *Server) {
		s.removeTransfer = uc
	}
}

func WithGetTransfer(uc GetTransferUseCase) ServerOption {
	return func(s *Server) {
		s.getTransfer = uc
	}
}

func WithListTransfers(uc ListTransfersUseCase) ServerOption {
	return func(s *Server) {
		s.listTransfers = uc
	}
}

// WithHistory enables GET /history. Without it the route answers 501.
func WithHistory(store HistoryStore) ServerOption {
	return func(s *Server) {
		s.history = store
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithRateLimit sets the global token bucket. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateLimitRPS = rps
		s.rateLimitBurst = burst
	}
}

func WithRequestTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		if timeout > 0 {
			s.requestTimeout = timeout
		}
	}
}

// WithUploadDir sets where uploaded metainfo files are staged before the
// engine reads them. Defaults to the OS temp dir.
func WithUploadDir(dir string) ServerOption {
	return func(s *Server) {
		s.uploadDir = dir
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(add AddTransferUseCase, opts ...ServerOption) *Server {
	s := &Server{
		addTransfer:    add,
		rateLimitRPS:   defaultRateLimitRPS,
		rateLimitBurst: defaultRateLimitBurst,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/transfers", s.handleTransfers)
	mux.HandleFunc("/transfers/", s.handleTransferByID)
	mux.HandleFunc("/history", s.handleHistory)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "torrent-session",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics"
		}),
	)
	var handler http.Handler = corsMiddleware(s.allowedOrigins, traced)
	handler = metricsMiddleware(handler)
	if s.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst, handler)
	}
	s.handler = recoveryMiddleware(s.logger, handler)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.wsHub == nil {
		http.Error(w, "websocket not available", http.StatusServiceUnavailable)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	// New clients get the current snapshot without waiting for the next tick.
	if s.listTransfers != nil {
		if payload, err := encodeWSMessage("transfers", s.listTransfers.Execute(r.Context())); err == nil {
			client.initial = payload
		}
	}
	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.done:
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// BroadcastTransfers pushes the current registry snapshot to all WebSocket
// clients.
func (s *Server) BroadcastTransfers(ctx context.Context) {
	if s.wsHub == nil || s.listTransfers == nil {
		return
	}
	s.wsHub.BroadcastTransfers(s.listTransfers.Execute(ctx))
}

// Close disconnects all WebSocket clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}
