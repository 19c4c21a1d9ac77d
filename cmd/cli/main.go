package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/calbot/internal/admin"
	"github.com/dmitrijs2005/calbot/internal/logging"
	"github.com/dmitrijs2005/calbot/internal/server"
	"github.com/dmitrijs2005/calbot/internal/server/config"
)

func main() {

	fs := flag.NewFlagSet("cli", flag.ExitOnError)
	fs.String("c", "", "Path to config file (short)")
	fs.String("config", "", "Path to config file")
	_ = fs.Parse(os.Args[1:])

	flagArgs := os.Args[1 : len(os.Args)-fs.NArg()]

	cfg, err := config.Load(flagArgs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(admin.ExitUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	logger := logging.New(os.Stderr, cfg.Environment, cfg.LogLevel)

	core, err := server.Open(ctx, cfg, logger)
	if err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(admin.ExitError)
	}

	app := admin.NewApp(core.Users, core.Schedules, core, os.Stdin, os.Stdout, os.Stderr, cfg.Diagnostic())
	code := app.Run(ctx, fs.Args())

	core.Close()
	stop()
	os.Exit(code)
}
