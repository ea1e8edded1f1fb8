// Package app wires a built core.Engine to OS signal handling: run until
// SIGINT/SIGTERM, then drain in-flight connections within a grace period
// before exiting.
package app

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kvasten/webmux/core"
)

// App is the running application: one engine, one logger, one shutdown
// grace period.
type App struct {
	engine        *core.Engine
	log           *logrus.Logger
	shutdownGrace time.Duration
}

// New builds an App around an already-configured Engine.
func New(engine *core.Engine, log *logrus.Logger, shutdownGrace time.Duration) *App {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if shutdownGrace <= 0 {
		shutdownGrace = 10 * time.Second
	}
	return &App{engine: engine, log: log, shutdownGrace: shutdownGrace}
}

// Engine returns the underlying engine.
func (a *App) Engine() *core.Engine { return a.engine }

// Run blocks serving specs until a termination signal triggers a graceful
// shutdown, returning once every connection has drained or the grace
// period elapses.
func (a *App) Run(specs []core.ListenerSpec) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.engine.Serve(specs)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		a.log.WithField("signal", sig.String()).Info("shutting down")
		a.engine.Shutdown(a.shutdownGrace)
		return <-errCh
	}
}
