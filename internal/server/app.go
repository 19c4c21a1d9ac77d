// Package server initializes and runs the calbot core: it opens the
// connection pool, applies migrations, builds the user and schedule services
// and keeps them alive until a shutdown signal arrives.
package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/calbot/internal/logging"
	"github.com/dmitrijs2005/calbot/internal/server/config"
)

type App struct {
	config *config.Config
	logger logging.Logger
	core   *Core
}

// NewApp opens the core and migrates the schema.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.Environment, c.LogLevel)

	core, err := Open(ctx, c, logger)
	if err != nil {
		return nil, err
	}
	if err := core.Migrate(ctx); err != nil {
		core.Close()
		return nil, err
	}

	return &App{config: c, logger: logger, core: core}, nil
}

// Core exposes the services for an embedding transport.
func (app *App) Core() *Core { return app.core }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until ctx is cancelled or a shutdown signal arrives, then
// closes the pool.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	app.logger.Info(ctx, "Starting app...",
		"environment", app.config.Environment,
		"schema", app.config.DatabaseSchema,
		"max_conns", app.config.DBMaxConns,
	)

	<-ctx.Done()

	app.logger.Info(context.Background(), "Stopping app...")
	app.core.Close()
}
