// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together the bag repositories and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/dmitrijs2005/calbot/internal/dbx"
	"github.com/dmitrijs2005/calbot/internal/server/migrations"
	"github.com/dmitrijs2005/calbot/internal/server/repositories/bags"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// for one schema and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	schema    string
	users     *bags.Statements
	schedules *bags.Statements
}

// Users returns the users bag repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) bags.Repository {
	return bags.NewPostgresRepository(db, m.users)
}

// Schedules returns the schedules bag repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Schedules(db dbx.DBTX) bags.Repository {
	return bags.NewPostgresRepository(db, m.schedules)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	if err := os.Setenv(migrations.SchemaEnv, m.schema); err != nil {
		return fmt.Errorf("set migration schema: %w", err)
	}
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager
// whose tables live in schema (bags.DefaultSchema when empty).
func NewPostgresRepositoryManager(schema string) (RepositoryManager, error) {
	if schema == "" {
		schema = bags.DefaultSchema
	}
	users, err := bags.Compile(bags.UsersTable(schema))
	if err != nil {
		return nil, err
	}
	schedules, err := bags.Compile(bags.SchedulesTable(schema))
	if err != nil {
		return nil, err
	}
	return &PostgresRepositoryManager{schema: schema, users: users, schedules: schedules}, nil
}
