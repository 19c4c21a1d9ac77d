package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/calbot/internal/common"
	"github.com/dmitrijs2005/calbot/internal/server/auth"
	"github.com/dmitrijs2005/calbot/internal/server/models"
	"github.com/dmitrijs2005/calbot/internal/server/services"
)

// Exit codes returned by Run.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// UserService is the part of services.UserService the tool uses.
type UserService interface {
	Register(ctx context.Context, email, password string) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
	Get(ctx context.Context, id string) (*models.User, error)
}

// ScheduleService is the part of services.ScheduleService the tool uses.
type ScheduleService interface {
	List(ctx context.Context, groupID string) ([]*models.Schedule, error)
}

// Migrator applies schema migrations.
type Migrator interface {
	Migrate(ctx context.Context) error
}

type App struct {
	users      UserService
	schedules  ScheduleService
	migrator   Migrator
	reader     *bufio.Reader
	out        io.Writer
	errOut     io.Writer
	diagnostic bool
}

// NewApp wires the tool to its collaborators. diagnostic controls whether
// storage failures are printed with their cause.
func NewApp(users UserService, schedules ScheduleService, migrator Migrator, in io.Reader, out, errOut io.Writer, diagnostic bool) *App {
	return &App{
		users:      users,
		schedules:  schedules,
		migrator:   migrator,
		reader:     bufio.NewReader(in),
		out:        out,
		errOut:     errOut,
		diagnostic: diagnostic,
	}
}

var errUsage = errors.New("usage")

// Run executes the command named by args[0] and returns an exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.usage()
		return ExitUsage
	}

	cmd, rest := args[0], args[1:]

	var err error
	switch cmd {
	case "help", "-h", "--help":
		a.usage()
		return ExitOK
	case "migrate":
		err = a.migrate(ctx)
	case "register":
		err = a.register(ctx, rest)
	case "login":
		err = a.login(ctx, rest)
	case "whoami":
		err = a.whoami(ctx, rest)
	case "schedules":
		err = a.listSchedules(ctx, rest)
	default:
		fmt.Fprintln(a.errOut, "Unknown command:", cmd)
		a.usage()
		return ExitUsage
	}

	if errors.Is(err, errUsage) {
		a.usage()
		return ExitUsage
	}
	if err != nil {
		fmt.Fprintln(a.errOut, "error:", common.Describe(err, a.diagnostic))
		return ExitError
	}
	return ExitOK
}

func (a *App) usage() {
	fmt.Fprintln(a.errOut, "Usage: cli [-c config.yaml] <command>")
	fmt.Fprintln(a.errOut, "Available commands: migrate, register <email>, login <email>, whoami <token>, schedules <token>")
}

func (a *App) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}
