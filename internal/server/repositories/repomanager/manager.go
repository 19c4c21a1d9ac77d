package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/calbot/internal/dbx"
	"github.com/dmitrijs2005/calbot/internal/server/repositories/bags"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) bags.Repository
	Schedules(db dbx.DBTX) bags.Repository
}
