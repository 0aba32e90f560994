// Package server manages process lifecycle: ordered service startup,
// signal-driven shutdown, and reverse-order teardown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component owned by the lifecycle.
type Service interface {
	// Start runs the service, blocking until it stops or fails.
	Start() error
	// Stop gracefully stops the service and unblocks Start.
	Stop()
}

// FuncService adapts a start/stop function pair into a Service.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the underlying stop function.
func (f *FuncService) Stop() { f.StopFn() }

// Lifecycle starts named services in registration order and stops them in
// reverse order when the process receives SIGINT or SIGTERM, when the run
// context is cancelled, or when any service fails. For the realm server the
// order matters: the websocket acceptor stops before storage so disconnect
// cleanup can still persist records.
type Lifecycle struct {
	logger   *zap.Logger
	mu       sync.Mutex
	services []namedService
	stopOnce sync.Once
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle creates an empty Lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a named service. Services start in the order added.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts every registered service and blocks until shutdown is
// triggered, then tears everything down in reverse order.
//
// Postcondition: All services are stopped when this method returns.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(l.services))
	for _, ns := range l.services {
		ns := ns
		go func() {
			l.logger.Info("starting service", zap.String("service", ns.name))
			if err := ns.service.Start(); err != nil {
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
				cancel()
			}
		}()
	}

	l.logger.Info("all services started",
		zap.Int("count", len(l.services)),
		zap.Duration("startup", time.Since(start)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		l.logger.Error("service failed, shutting down", zap.Error(err))
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down")
	}

	l.Shutdown()

	l.logger.Info("shutdown complete", zap.Duration("uptime", time.Since(start)))
	return nil
}

// Shutdown stops every service in reverse registration order. Safe to call
// more than once; only the first call acts.
func (l *Lifecycle) Shutdown() {
	l.stopOnce.Do(func() {
		shutdownStart := time.Now()
		for i := len(l.services) - 1; i >= 0; i-- {
			ns := l.services[i]
			svcStart := time.Now()
			ns.service.Stop()
			l.logger.Info("service stopped",
				zap.String("service", ns.name),
				zap.Duration("elapsed", time.Since(svcStart)),
			)
		}
		l.logger.Info("all services stopped",
			zap.Duration("shutdown_elapsed", time.Since(shutdownStart)),
		)
	})
}
