// Package api exposes the KarunaBot HTTP surface: the WhatsApp webhook
// intake and the admin endpoints for flows, prompts, and the blacklist.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/karuna-es/karunabot/internal/appointments"
	"github.com/karuna-es/karunabot/internal/flow"
	"github.com/karuna-es/karunabot/internal/genai"
	"github.com/karuna-es/karunabot/internal/messaging"
	"github.com/karuna-es/karunabot/internal/pipeline"
	"github.com/karuna-es/karunabot/internal/store"
)

// DefaultAddr is the default listen address for the HTTP server.
const DefaultAddr = ":8000"

// Opts holds configurable options for the API server.
type Opts struct {
	Addr        string
	VerifyToken string
	MsgService  messaging.Service
	Recorder    appointments.Recorder
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the token expected on webhook verification requests.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// WithMessagingService sets the outbound messaging transport.
func WithMessagingService(svc messaging.Service) Option {
	return func(o *Opts) { o.MsgService = svc }
}

// WithRecorder sets the appointment recorder.
func WithRecorder(rec appointments.Recorder) Option {
	return func(o *Opts) { o.Recorder = rec }
}

// Server bundles the HTTP handlers with their collaborators.
type Server struct {
	addr        string
	verifyToken string
	flows       *flow.FlowStore
	blacklist   *flow.BlacklistStore
	pipeline    *pipeline.Pipeline
	msgService  messaging.Service
	recorder    appointments.Recorder
	validate    *validator.Validate
}

// NewServer assembles a server around an already-wired pipeline.
func NewServer(flows *flow.FlowStore, blacklist *flow.BlacklistStore, p *pipeline.Pipeline, msgService messaging.Service, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Recorder == nil {
		cfg.Recorder = appointments.NoopRecorder{}
	}
	return &Server{
		addr:        cfg.Addr,
		verifyToken: cfg.VerifyToken,
		flows:       flows,
		blacklist:   blacklist,
		pipeline:    p,
		msgService:  msgService,
		recorder:    cfg.Recorder,
		validate:    validator.New(),
	}
}

// Handler returns the routed HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/api/prompt", s.promptHandler)
	mux.HandleFunc("/api/flows", s.flowsHandler)
	mux.HandleFunc("/api/flows/", s.flowByIDHandler)
	mux.HandleFunc("/api/flow/activate", s.activateFlowHandler)
	mux.HandleFunc("/api/blacklist", s.blacklistHandler)
	mux.HandleFunc("/api/blacklist/add", s.blacklistAddHandler)
	mux.HandleFunc("/api/blacklist/remove", s.blacklistRemoveHandler)
	mux.HandleFunc("/api/appointments", s.appointmentsHandler)
	mux.HandleFunc("/v1/messages", s.sendMessageHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/connection-status", s.connectionStatusHandler)
	return mux
}

// ListenAndServe runs the HTTP server until it fails.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("Server.ListenAndServe: starting HTTP server", "addr", s.addr)
	return srv.ListenAndServe()
}

// Run wires the full application from storage to HTTP: the persisted
// configuration stores, the conversation engine, the pipeline, and the
// server. It blocks until the HTTP server fails.
func Run(st store.Store, ai genai.ClientInterface, opts ...Option) error {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MsgService == nil {
		return fmt.Errorf("messaging service is required")
	}

	flows, blacklist := flow.NewStores(st)
	engine := flow.NewEngine(flows, flow.NewRegistry(), ai)
	p := pipeline.NewPipeline(engine, blacklist, cfg.MsgService, cfg.Recorder)

	srv := NewServer(flows, blacklist, p, cfg.MsgService, opts...)
	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}
