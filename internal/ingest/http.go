package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"hiprelay/internal/relay"
	logx "hiprelay/pkg/logx"
)

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr string
	// Metrics, when set, is served at GET /metrics.
	Metrics http.Handler
	// Pprof mounts /debug/pprof/, guarded by PprofToken when set.
	Pprof      bool
	PprofToken string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// HTTPServer exposes:
//
//	POST /v1/projects/{project}/alerts
//	POST /v1/projects/{project}/events
//	GET  /healthz
//	GET  /metrics
//	GET  /debug/pprof/
type HTTPServer struct {
	cfg HTTPConfig
	sub Submitter
	log logx.Logger

	mu   sync.Mutex
	addr string
}

func NewHTTP(cfg HTTPConfig, sub Submitter, log logx.Logger) *HTTPServer {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	return &HTTPServer{cfg: cfg, sub: sub, log: log}
}

// Addr returns the bound address once Run is listening.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/projects/{project}/alerts", s.handleAlert)
	mux.HandleFunc("POST /v1/projects/{project}/events", s.handleGroupEvent)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.Metrics != nil {
		mux.Handle("GET /metrics", s.cfg.Metrics)
	}
	if s.cfg.Pprof {
		mountPprof(mux, s.cfg.PprofToken)
	}
	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		return errors.New("ingest: http addr is empty")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	s.log.Info("ingest http started", logx.String("addr", ln.Addr().String()), logx.Bool("metrics", s.cfg.Metrics != nil), logx.Bool("pprof", s.cfg.Pprof))

	err = srv.Serve(ln)
	if ctx.Err() != nil || errors.Is(err, http.ErrServerClosed) {
		s.log.Info("ingest http stopped")
		return nil
	}
	return err
}

func (s *HTTPServer) handleAlert(w http.ResponseWriter, r *http.Request) {
	ev, err := decodeAlert(http.MaxBytesReader(w, r.Body, maxEventBytes), r.PathValue("project"))
	if err != nil {
		s.reject(w, r, err)
		return
	}
	s.respond(w, r, s.sub.SubmitAlert(r.Context(), ev), "alert", ev.ProjectID)
}

func (s *HTTPServer) handleGroupEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := decodeGroup(http.MaxBytesReader(w, r.Body, maxEventBytes), r.PathValue("project"))
	if err != nil {
		s.reject(w, r, err)
		return
	}
	s.respond(w, r, s.sub.SubmitGroupEvent(r.Context(), ev), "group", ev.ProjectID)
}

func (s *HTTPServer) reject(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusBadRequest
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		code = http.StatusRequestEntityTooLarge
	}
	s.log.Debug("ingest rejected event", logx.String("path", r.URL.Path), logx.Err(err))
	writeJSON(w, code, map[string]string{"status": "rejected", "error": err.Error()})
}

func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request, err error, kind, projectID string) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case errors.Is(err, relay.ErrQueueFull), errors.Is(err, relay.ErrStopped):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		s.log.Warn("ingest submit failed", logx.String("kind", kind), logx.String("project", projectID), logx.String("path", r.URL.Path), logx.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

