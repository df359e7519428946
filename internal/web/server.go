// Package web serves the map page and runs one websocket session per browser
// tab. Each session owns an event loop, a surface controller and a chart
// canvas; HTTP handlers reach a session's chart through the registry.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/signalsfoundry/ndvi-overlay/internal/analytics"
	"github.com/signalsfoundry/ndvi-overlay/internal/chart"
	"github.com/signalsfoundry/ndvi-overlay/internal/export"
	"github.com/signalsfoundry/ndvi-overlay/internal/logging"
	"github.com/signalsfoundry/ndvi-overlay/internal/observability"
	"github.com/signalsfoundry/ndvi-overlay/internal/overlay"
	"github.com/signalsfoundry/ndvi-overlay/internal/surface"
)

//go:embed static/map.html
var staticFiles embed.FS

// Config configures the web surface.
type Config struct {
	Analytics analytics.Config
}

// Option customises Server construction.
type Option func(*Server)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.log = logging.OrNoop(l) }
}

// WithCollector attaches the Prometheus collector, which also serves /metrics.
func WithCollector(c *observability.OverlayCollector) Option {
	return func(s *Server) { s.collector = c }
}

// WithHTTPClient overrides the client sessions use to reach the analytics
// backend.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Server) { s.httpClient = hc }
}

// Server is the HTTP surface.
type Server struct {
	cfg        Config
	log        logging.Logger
	collector  *observability.OverlayCollector
	httpClient *http.Client
	sessions   *Registry
	handler    http.Handler
}

// NewServer validates cfg and builds the handler tree.
func NewServer(cfg Config, opts ...Option) (*Server, error) {
	if _, err := cfg.Analytics.Endpoint(); err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, log: logging.Noop()}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = NewRegistry(s.collector)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /export", s.handleExport)
	mux.HandleFunc("GET /frame", s.handleFrame)
	mux.HandleFunc("GET /chart", s.handleChart)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.collector.Handler())
	s.handler = withRequestID(s.log, mux)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Sessions exposes the live session registry.
func (s *Server) Sessions() *Registry { return s.sessions }

// Close drops every websocket session.
func (s *Server) Close() { s.sessions.CloseAll() }

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/map.html")
	if err != nil {
		http.Error(w, "map page missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "ok sessions=%d\n", s.sessions.Len())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, s.log)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Warn(ctx, "websocket upgrade failed", logging.Err(err))
		return
	}

	id := uuid.NewString()
	log = log.With(logging.String("session", id))
	sess := newSession(id, conn, log)

	opts := []analytics.Option{
		analytics.WithDispatcher(sess.loop),
		analytics.WithLogger(log),
		analytics.WithMetrics(s.collector),
	}
	if s.httpClient != nil {
		opts = append(opts, analytics.WithHTTPClient(s.httpClient))
	}
	client, err := analytics.NewClient(s.cfg.Analytics, opts...)
	if err != nil {
		log.Error(ctx, "analytics client", logging.Err(err))
		_ = conn.Close()
		return
	}

	sess.ctrl = surface.New(sess.loop, client,
		surface.WithRenderer(sess.canvas),
		surface.WithSubscriber(sess.publishView),
		surface.WithOverlayOptions(overlay.WithCapture(sess), overlay.WithObserver(s.collector)),
		surface.WithLogger(log),
		surface.WithMetrics(s.collector),
		surface.WithContext(ctx),
	)

	s.sessions.add(sess)
	defer s.sessions.remove(id)

	log.Info(ctx, "session opened", logging.String("analytics", client.Endpoint()))
	sess.run(ctx)
	log.Info(ctx, "session closed")
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := r.URL.Query().Get("session")
	if id == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return nil, false
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		s.collector.IncExport(observability.OutcomeNotFound)
		return
	}

	img, err := sess.export.ExportCurrentFrame()
	if errors.Is(err, export.ErrExportUnavailable) {
		s.collector.IncExport(observability.OutcomeUnavailable)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.collector.IncExport(observability.OutcomeOK)
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", img.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img.Data)
}

// handleFrame serves the current frame inline for the overlay panel. It is
// not counted as an export.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	img, err := sess.export.ExportCurrentFrame()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img.Data)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	series, err := sess.Series(r.Context())
	if err != nil {
		http.Error(w, "session closed", http.StatusGone)
		return
	}

	var buf bytes.Buffer
	if err := chart.Page(series, &buf); err != nil {
		logging.FromContext(r.Context(), s.log).Error(r.Context(), "render chart page", logging.Err(err))
		http.Error(w, "failed to render chart", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
