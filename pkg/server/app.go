package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AlphaCrew/pkg/config"
	xhttp "AlphaCrew/pkg/http"
	applogger "AlphaCrew/pkg/logger"
)

// Component is a background part of the process. Components start in order
// before the HTTP server and stop in reverse order after it.
type Component struct {
	Name  string
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context) error
}

// Closer releases an infrastructure client once every component has stopped.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	components []Component
	closers    []Closer
	started    []Component
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, components []Component, closers []Closer) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
		components: components,
		closers:    closers,
	}
}

// HTTP exposes the server, mainly for tests.
func (a *App) HTTP() *xhttp.Server { return a.httpServer }

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts everything and blocks until ctx is done, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, c := range a.components {
		if c.Start == nil {
			a.started = append(a.started, c)
			continue
		}
		if err := c.Start(runCtx); err != nil {
			a.l.Error("component start failed", applogger.String("component", c.Name), applogger.Error(err))
			cancel()
			_ = a.shutdown()
			return fmt.Errorf("start %s: %w", c.Name, err)
		}
		a.started = append(a.started, c)
		a.l.Info("component started", applogger.String("component", c.Name))
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.l.Error("http server start error", applogger.Error(err))
			cancel()
			_ = a.shutdown()
			return err
		}
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 15 * time.Second
}

// shutdown stops the HTTP server first so no new work arrives, then drains
// components newest first, then closes clients.
func (a *App) shutdown() error {
	a.l.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	for i := len(a.started) - 1; i >= 0; i-- {
		c := a.started[i]
		if c.Stop == nil {
			continue
		}
		if err := c.Stop(ctx); err != nil {
			a.l.Warn("component stop error", applogger.String("component", c.Name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", c.Name, err))
		}
	}
	a.started = nil

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("client", c.Name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.Name, err))
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
