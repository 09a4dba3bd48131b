// Package api provides HTTP handlers and the main API server logic for CaseFlow.
//
// It exposes RESTful endpoints for opening conversations, processing inbound
// messages through the intake pipeline, and serving flow and tier
// configuration. The API integrates with the flow engine, the store, the
// GenAI client, and the escalation notifier.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/CaseFlow/internal/flow"
	"github.com/BTreeMap/CaseFlow/internal/genai"
	"github.com/BTreeMap/CaseFlow/internal/notify"
	"github.com/BTreeMap/CaseFlow/internal/store"
)

// DefaultAddr is the address the API server listens on when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr      string
	StaticDir string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithStaticDir sets the directory served at the root path.
func WithStaticDir(dir string) Option {
	return func(o *Opts) { o.StaticDir = dir }
}

// Server holds the API's collaborators: persistence, the intake engine, the
// reply generator, and the escalation notifier.
type Server struct {
	st        store.Store
	engine    *flow.Engine
	gen       genai.ClientInterface
	notifier  notify.Notifier
	addr      string
	staticDir string
}

// NewServer creates an API server. gen may be nil, in which case the response
// formatter's template fallback supplies reply text.
func NewServer(st store.Store, engine *flow.Engine, gen genai.ClientInterface, notifier notify.Notifier, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Server{
		st:        st,
		engine:    engine,
		gen:       gen,
		notifier:  notifier,
		addr:      cfg.Addr,
		staticDir: cfg.StaticDir,
	}
}

// Handler builds the route table. Exposed separately so tests can drive the
// server through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/conversations", s.openConversationHandler)
	mux.HandleFunc("POST /api/v1/conversations/{id}/messages", s.messageHandler)
	mux.HandleFunc("GET /api/v1/conversations/{id}", s.getConversationHandler)
	mux.HandleFunc("GET /api/v1/flows", s.listFlowsHandler)
	mux.HandleFunc("GET /api/v1/flows/{type}", s.getFlowHandler)
	mux.HandleFunc("GET /api/v1/tiers", s.listTiersHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
	return mux
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("CaseFlow API running", "addr", s.addr, "staticDir", s.staticDir)
	return srv.ListenAndServe()
}
