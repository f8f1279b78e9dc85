package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/config"
	"github.com/xkilldash9x/marionette/internal/input"
	"github.com/xkilldash9x/marionette/internal/observability"
	"github.com/xkilldash9x/marionette/internal/screen"
)

// outcome labels for the service request metric.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Server is the privileged GUI daemon. It binds a loopback address and
// performs capture and input injection on behalf of callers whose own
// execution context lacks the entitlements (launchd agents, ssh
// sessions, task runners). Its capture chain deliberately omits the
// service backend: the daemon must never recurse into itself.
type Server struct {
	cfg      *config.Config
	injector input.Injector
	capture  screen.Capturer
	logger   *zap.Logger
	version  string

	httpServer *http.Server
}

// NewServer builds the daemon from configuration, wiring the direct
// injector and a service-less capture chain.
func NewServer(cfg *config.Config, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("service")

	captureCfg := cfg.Capture
	captureCfg.ServiceEnabled = false

	return &Server{
		cfg:      cfg,
		injector: input.NewRobotInjector(cfg.Input, logger),
		capture:  screen.NewDefaultChain(captureCfg, nil, logger),
		logger:   logger,
		version:  version,
	}
}

// newServerForTest wires a daemon around fake collaborators.
func newServerForTest(cfg *config.Config, injector input.Injector, capture screen.Capturer, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, injector: injector, capture: capture, logger: logger, version: "test"}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Service.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Privileged GUI service listening",
		zap.String("addr", s.cfg.Service.Addr),
		zap.String("version", s.version))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("service listen on %s: %w", s.cfg.Service.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Service shutdown was not clean", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	s.logger.Info("Privileged GUI service stopped")
	return err
}

// routes assembles the daemon's endpoint table.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/screenshot", s.handleScreenshot)
	r.Post("/move", s.handleMove)
	r.Post("/click", s.handleClick)
	r.Post("/type", s.handleType)
	r.Post("/press_key", s.handlePressKey)
	if s.cfg.Service.Metrics {
		r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "health", http.StatusOK, schemas.ServiceResponse{
		Success: true,
		Status:  "ok",
		Version: s.version,
	})
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	shot, err := s.capture.Capture(r.Context())
	if err != nil {
		s.fail(w, "screenshot", err)
		return
	}
	s.respond(w, "screenshot", http.StatusOK, schemas.ServiceResponse{
		Success: true,
		Image:   base64.StdEncoding.EncodeToString(shot.PNG),
		Width:   shot.Width,
		Height:  shot.Height,
		Format:  "png",
	})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req schemas.PointRequest
	if !s.decode(w, r, "move", &req) {
		return
	}
	if err := s.injector.MoveMouse(r.Context(), req.X, req.Y); err != nil {
		s.fail(w, "move", err)
		return
	}
	s.respond(w, "move", http.StatusOK, schemas.ServiceResponse{Success: true})
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req schemas.PointRequest
	if !s.decode(w, r, "click", &req) {
		return
	}
	if err := s.injector.Click(r.Context(), req.X, req.Y); err != nil {
		s.fail(w, "click", err)
		return
	}
	s.logger.Debug("Service click executed", zap.Int("x", req.X), zap.Int("y", req.Y))
	s.respond(w, "click", http.StatusOK, schemas.ServiceResponse{Success: true})
}

func (s *Server) handleType(w http.ResponseWriter, r *http.Request) {
	var req schemas.TypeRequest
	if !s.decode(w, r, "type", &req) {
		return
	}
	if req.Text == "" {
		s.fail(w, "type", errors.New("type request carries no text"))
		return
	}
	interval := s.cfg.Input.TypeInterval
	if req.Interval > 0 {
		interval = time.Duration(req.Interval * float64(time.Second))
	}
	if err := s.injector.TypeText(r.Context(), req.Text, interval); err != nil {
		s.fail(w, "type", err)
		return
	}
	s.respond(w, "type", http.StatusOK, schemas.ServiceResponse{Success: true})
}

func (s *Server) handlePressKey(w http.ResponseWriter, r *http.Request) {
	var req schemas.KeyRequest
	if !s.decode(w, r, "press_key", &req) {
		return
	}
	if req.Key == "" {
		s.fail(w, "press_key", errors.New("press_key request carries no key"))
		return
	}
	// Normalize again on receipt; remote callers are not trusted to have
	// done it.
	if err := s.injector.PressKey(r.Context(), input.NormalizeKey(req.Key)); err != nil {
		s.fail(w, "press_key", err)
		return
	}
	s.respond(w, "press_key", http.StatusOK, schemas.ServiceResponse{Success: true})
}

// decode reads the request body into dst, answering the uniform failure
// envelope itself when the payload is malformed.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, endpoint string, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respond(w, endpoint, http.StatusBadRequest, schemas.ServiceResponse{
			Success: false,
			Error:   fmt.Sprintf("malformed request body: %v", err),
		})
		return false
	}
	return true
}

// fail answers the uniform failure envelope with a 500.
func (s *Server) fail(w http.ResponseWriter, endpoint string, err error) {
	s.logger.Warn("Service request failed", zap.String("endpoint", endpoint), zap.Error(err))
	s.respond(w, endpoint, http.StatusInternalServerError, schemas.ServiceResponse{
		Success: false,
		Error:   err.Error(),
	})
}

func (s *Server) respond(w http.ResponseWriter, endpoint string, status int, payload schemas.ServiceResponse) {
	outcome := outcomeOK
	if !payload.Success {
		outcome = outcomeError
	}
	observability.ServiceRequests.WithLabelValues(endpoint, outcome).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("Failed to write service response", zap.String("endpoint", endpoint), zap.Error(err))
	}
}
