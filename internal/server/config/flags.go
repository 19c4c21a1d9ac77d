package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/calbot/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   PostgreSQL DSN
//	-n string   database schema
//	-s string   token HMAC secret key
//	-t int      token ttl, seconds
//	-e string   environment (development|production)
//	-l string   log level
//	-min int    minimum pool connections
//	-max int    maximum pool connections
//
// The args are first filtered to only the flags recognized here using
// flagx.FilterArgs, so flags belonging to other components are ignored.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-n", "-s", "-t", "-e", "-l", "-min", "-max"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DatabaseSchema, "n", config.DatabaseSchema, "database schema")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.Environment, "e", config.Environment, "environment")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	tokenTTL := fs.Int("t", int(config.TokenTTL.Seconds()), "token_ttl (in seconds)")
	minConns := fs.Int("min", int(config.DBMinConns), "minimum pool connections")
	maxConns := fs.Int("max", int(config.DBMaxConns), "maximum pool connections")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.TokenTTL = time.Duration(*tokenTTL) * time.Second
	config.DBMinConns = int32(*minConns)
	config.DBMaxConns = int32(*maxConns)
	return nil
}
