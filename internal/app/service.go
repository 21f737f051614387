package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"nocalert/internal/clock"
	"nocalert/internal/config"
	"nocalert/internal/ingest"
	"nocalert/internal/logging"
	"nocalert/internal/notify"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config source and shared runtime components.
// Returns: runnable alerting service.
type Service struct {
	source    config.ConfigSource
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func()
	manager   *Manager
	httpSrv   *http.Server
	obsSub    interface{ Close() error }
	probeSub  interface{ Close() error }
	readyFlag atomic.Bool
	clock     clock.Clock
}

// NewService builds a service instance from a config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	dispatcher := notify.NewDispatcher(cfg.Notify, logger)
	manager, err := NewManager(cfg, logger, dispatcher, clk)
	if err != nil {
		closeLog()
		return nil, err
	}

	service := &Service{
		source:   source,
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		manager:  manager,
		clock:    clk,
	}

	service.buildHTTPServer()
	if err := service.buildNATSSubscribers(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	return service, nil
}

// Run starts the service lifecycle and blocks until a shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	defer shutdownCancel()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", s.cfg.Ingest.HTTP.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	tickInterval := time.Duration(s.cfg.Service.TickIntervalSec) * time.Second
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-shutdownCtx.Done():
				return
			case <-ticker.C:
				if err := s.manager.Tick(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Error("tick processing failed", "error", err.Error())
				}
			}
		}
	}()

	sweepInterval := time.Duration(s.cfg.Service.SweepIntervalSec) * time.Second
	sweepTicker := time.NewTicker(sweepInterval)
	defer sweepTicker.Stop()
	go func() {
		for {
			select {
			case <-shutdownCtx.Done():
				return
			case <-sweepTicker.C:
				s.manager.Sweep()
			}
		}
	}()

	if s.cfg.Service.ReloadEnabled {
		reloadInterval := time.Duration(s.cfg.Service.ReloadIntervalSec) * time.Second
		reloadTicker := time.NewTicker(reloadInterval)
		defer reloadTicker.Stop()
		go func() {
			for {
				select {
				case <-shutdownCtx.Done():
					return
				case <-reloadTicker.C:
					if err := s.reloadConfig(); err != nil {
						s.logger.Error("reload failed", "error", err.Error())
					}
				}
			}
		}()
	}

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if s.obsSub != nil {
		if err := s.obsSub.Close(); err != nil {
			s.logger.Error("observation subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("observation subscriber close: %w", err))
		}
	}
	if s.probeSub != nil {
		if err := s.probeSub.Close(); err != nil {
			s.logger.Error("probe subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("probe subscriber close: %w", err))
		}
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.probeSub != nil {
		_ = s.probeSub.Close()
		s.probeSub = nil
	}
	if s.obsSub != nil {
		_ = s.obsSub.Close()
		s.obsSub = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildHTTPServer wires the mux with ingest, API, and health endpoints.
// Params: none.
// Returns: nothing, the server listens lazily inside Run.
func (s *Service) buildHTTPServer() {
	mux := http.NewServeMux()
	ingest.RegisterRoutes(mux, s.cfg.Ingest.HTTP, s.manager, s.manager, s.readyFlag.Load)
	NewAPI(s.manager, s.logger).Register(mux)

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Ingest.HTTP.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// buildNATSSubscribers starts JetStream ingest consumers when enabled.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSSubscribers() error {
	if !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	obsSub, err := ingest.NewObservationSubscriber(s.cfg.Ingest.NATS, config.DeriveObservationStream(s.cfg), s.manager, s.logger)
	if err != nil {
		return err
	}
	s.obsSub = obsSub

	probeSub, err := ingest.NewProbeSubscriber(s.cfg.Ingest.NATS, config.DeriveProbeStream(s.cfg), s.manager, s.logger)
	if err != nil {
		return err
	}
	s.probeSub = probeSub
	return nil
}

// reloadConfig reloads rule configuration and swaps runtime components.
// Params: none.
// Returns: load or apply error, the previous config stays active on failure.
func (s *Service) reloadConfig() error {
	cfg, err := config.LoadSnapshot(s.source)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := s.manager.ApplyConfig(cfg); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}
	s.manager.SetDispatcher(notify.NewDispatcher(cfg.Notify, s.logger))
	s.cfg.Routing = cfg.Routing
	s.cfg.Escalation = cfg.Escalation
	s.cfg.Contacts = cfg.Contacts
	s.cfg.Cooldown = cfg.Cooldown
	s.cfg.Notify = cfg.Notify
	s.logger.Info("configuration reloaded")
	return nil
}
