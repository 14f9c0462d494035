package server

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	xhttp "EduPulse/pkg/http"
	pkgkafka "EduPulse/pkg/kafka"
	applogger "EduPulse/pkg/logger"
	"EduPulse/pkg/queue"
)

// HTTPServer is the part of *xhttp.Server the App drives.
type HTTPServer interface {
	Start() error
	Stop(ctx context.Context) error
}

var _ HTTPServer = (*xhttp.Server)(nil)

// Worker is a background component such as a message consumer or job queue.
type Worker interface {
	Start() error
	Stop(ctx context.Context) error
}

var (
	_ Worker = (*pkgkafka.Consumer)(nil)
	_ Worker = (queue.Queue)(nil)
)

type namedWorker struct {
	name string
	w    Worker
}

// Waiter drains in-flight background work on shutdown.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Option configures App.
type Option func(*App)

// WithWorker runs w alongside the HTTP server. Workers start in the order
// given and stop in reverse.
func WithWorker(name string, w Worker) Option {
	return func(a *App) { a.workers = append(a.workers, namedWorker{name: name, w: w}) }
}

// WithBackground waits for w during shutdown, after HTTP has stopped and
// before workers stop.
func WithBackground(w Waiter) Option {
	return func(a *App) { a.background = append(a.background, w) }
}

// WithShutdownTimeout bounds the whole shutdown sequence.
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// App encapsulates the application lifecycle.
type App struct {
	log             *applogger.Logger
	http            HTTPServer
	workers         []namedWorker
	started         int
	background      []Waiter
	shutdownTimeout time.Duration
}

// New creates a new App.
func New(l *applogger.Logger, srv HTTPServer, opts ...Option) *App {
	a := &App{
		log:             l.With(applogger.String("component", "app")),
		http:            srv,
		shutdownTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until ctx ends or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, nw := range a.workers {
		if err := nw.w.Start(); err != nil {
			a.log.Error("worker start error", applogger.String("worker", nw.name), applogger.Error(err))
			return errors.Join(err, a.stopWorkers(context.Background()))
		}
		a.started++
		a.log.Info("worker started", applogger.String("worker", nw.name))
	}

	if err := a.http.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return errors.Join(err, a.shutdown())
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then drains background work, then stops workers.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.http.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	for _, w := range a.background {
		if err := w.Wait(ctx); err != nil {
			a.log.Warn("background work did not finish", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if err := a.stopWorkers(ctx); err != nil {
		errs = append(errs, err)
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) stopWorkers(ctx context.Context) error {
	var errs []error
	for i := a.started - 1; i >= 0; i-- {
		nw := a.workers[i]
		if err := nw.w.Stop(ctx); err != nil {
			a.log.Warn("worker stop error", applogger.String("worker", nw.name), applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.started = 0
	return errors.Join(errs...)
}
