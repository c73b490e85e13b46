package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ltpexport/internal/entity"
	"ltpexport/internal/exporter"
	"ltpexport/internal/logging"
	"ltpexport/internal/metadata"
	"ltpexport/internal/worker"
)

// Exporter is the export entry point the webhook drives.
type Exporter interface {
	UpdateEntity(ctx context.Context, e *entity.Entity, mode metadata.UpdateMode) (exporter.Outcome, error)
	Directory(e *entity.Entity) string
}

// EntityLoader resolves the entity an event names.
type EntityLoader interface {
	Load(ctx context.Context, entityType, uuid string) (*entity.Entity, error)
}

// WorkerStatus reports the background worker, when one runs in-process.
type WorkerStatus interface {
	Status() worker.Status
}

// ServerOptions wires the webhook server.
type ServerOptions struct {
	Bind     string
	Token    string
	System   string
	Exporter Exporter
	Entities EntityLoader
	Queue    QueueReader
	Worker   WorkerStatus
	Logger   *slog.Logger
}

// Server is the event webhook listener.
type Server struct {
	bind     string
	token    string
	system   string
	exporter Exporter
	entities EntityLoader
	queueSvc *QueueService
	worker   WorkerStatus
	logger   *slog.Logger

	listener net.Listener
	server   *http.Server
}

// NewServer builds the server; call Start to listen.
func NewServer(opts ServerOptions) (*Server, error) {
	bind := strings.TrimSpace(opts.Bind)
	if bind == "" {
		return nil, errors.New("api bind address is empty")
	}
	if opts.Exporter == nil || opts.Entities == nil {
		return nil, errors.New("api server requires an exporter and an entity loader")
	}
	s := &Server{
		bind:     bind,
		token:    strings.TrimSpace(opts.Token),
		system:   opts.System,
		exporter: opts.Exporter,
		entities: opts.Entities,
		queueSvc: NewQueueService(opts.Queue),
		worker:   opts.Worker,
		logger:   logging.NewComponentLogger(opts.Logger, "api-server"),
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.authMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/queue", s.handleQueue)
		r.Post("/events", s.handleEvent)
		r.Post("/entities/{type}/{uuid}/export", s.handleExport)
	})
	return r
}

// Start listens on the bind address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}
