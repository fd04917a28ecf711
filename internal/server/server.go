package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/bankledger/internal/config"
	"github.com/congo-pay/bankledger/internal/infra"
	"github.com/congo-pay/bankledger/internal/routes"
)

// Server wraps the Fiber application, the ledgers and the relay worker.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	ledgers *routes.Ledgers
	logger  *slog.Logger

	stopWorker context.CancelFunc
	workerDone sync.WaitGroup
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, res *infra.Resources, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		Immutable:    true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	ledgers, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: res.DB, Cache: res.Cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	s := &Server{app: app, cfg: cfg, ledgers: ledgers, logger: logger}
	s.startWorker()
	return s, nil
}

// startWorker drains the relay outbox until Shutdown.
func (s *Server) startWorker() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWorker = cancel
	s.workerDone.Add(1)
	go func() {
		defer s.workerDone.Done()
		if err := s.ledgers.Worker.Run(ctx); err != nil {
			s.logger.Error("relay worker stopped", "error", err)
		}
	}()
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, then drains the relay worker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.stopWorker()
	s.workerDone.Wait()
	return err
}
