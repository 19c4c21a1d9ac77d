package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/calbot/internal/server/migrations"
	"github.com/dmitrijs2005/calbot/internal/server/repositories/bags"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	m, err := NewPostgresRepositoryManager("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var _ RepositoryManager = m

	if got := m.(*PostgresRepositoryManager).schema; got != bags.DefaultSchema {
		t.Fatalf("schema = %q, want %q", got, bags.DefaultSchema)
	}
}

func TestNewPostgresRepositoryManager_InvalidSchema(t *testing.T) {
	if _, err := NewPostgresRepositoryManager("v1;drop"); err == nil {
		t.Fatal("expected error for invalid schema")
	}
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, err := NewPostgresRepositoryManager("v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if u := m.Users(db); u == nil {
		t.Fatal("Users() nil")
	}
	if s := m.Schedules(db); s == nil {
		t.Fatal("Schedules() nil")
	}

	var _ *bags.PostgresRepository = m.Users(db).(*bags.PostgresRepository)
	var _ *bags.PostgresRepository = m.Schedules(db).(*bags.PostgresRepository)
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()
	t.Setenv(migrations.SchemaEnv, "")

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		if got := os.Getenv(migrations.SchemaEnv); got != "tenant" {
			return errors.New("schema not exported: " + got)
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m, err := NewPostgresRepositoryManager("tenant")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()
	t.Setenv(migrations.SchemaEnv, "")

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m, _ := NewPostgresRepositoryManager("")
	if err := m.RunMigrations(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrations.Migrations.ReadDir(".")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", len(entries))
	}
}
