package server

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/calbot/internal/dbx"
	"github.com/dmitrijs2005/calbot/internal/logging"
	"github.com/dmitrijs2005/calbot/internal/server/auth"
	"github.com/dmitrijs2005/calbot/internal/server/config"
	"github.com/dmitrijs2005/calbot/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/calbot/internal/server/services"
)

// Seams for tests.
var (
	openPool       = dbx.OpenPool
	newRepoManager = repomanager.NewPostgresRepositoryManager
)

// Core bundles the pool, repositories and services shared by the server
// and the admin CLI.
type Core struct {
	Config      *config.Config
	Logger      logging.Logger
	Pool        *dbx.Pool
	Repos       repomanager.RepositoryManager
	Users       *services.UserService
	Schedules   *services.ScheduleService
}

// Open connects to the database and builds the services. It does not run
// migrations; call Migrate for that.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Core, error) {
	issuer, err := auth.NewIssuer([]byte(cfg.SecretKey), cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	repos, err := newRepoManager(cfg.DatabaseSchema)
	if err != nil {
		return nil, fmt.Errorf("repository init error: %w", err)
	}

	pool, err := openPool(ctx, cfg.DatabaseDSN, cfg.PoolOptions(), logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return &Core{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Repos:     repos,
		Users:     services.NewUserService(pool, repos, issuer, logger),
		Schedules: services.NewScheduleService(pool, repos, logger),
	}, nil
}

// Migrate applies pending schema migrations.
func (c *Core) Migrate(ctx context.Context) error {
	if err := c.Repos.RunMigrations(ctx, c.Pool.DB()); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

// Close releases the pool.
func (c *Core) Close() {
	c.Pool.Close()
}
