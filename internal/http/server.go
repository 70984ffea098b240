package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/varela-dev/multipass/internal/http/httpx"
	"github.com/varela-dev/multipass/internal/observability/logger"
)

// Server envuelve http.Server con timeouts razonables y shutdown ordenado.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// NewServer crea un servidor listo para Start/Shutdown.
func NewServer(name, addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: logger.Named(name),
	}
}

// Start bloquea hasta que el servidor cierre. Un cierre por Shutdown no es
// error.
func (s *Server) Start() error {
	s.log.Info("escuchando", logger.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drena conexiones activas respetando el contexto.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("apagando")
	return s.srv.Shutdown(ctx)
}

// NewOpsRouter arma el router de operaciones (puerto interno): métricas
// Prometheus y probes. No pasa por el middleware de tenant ni rate limit.
func NewOpsRouter() (http.Handler, error) {
	metricsHandler, err := httpx.RegisterMetrics(nil)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Handle("/metrics", metricsHandler)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r, nil
}
