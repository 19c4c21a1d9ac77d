// Package migrations embeds the goose SQL migrations for the server schema.
//
// Statements reference the target schema as ${CALBOT_DB_SCHEMA:-v1}; goose
// expands it at apply time (ENVSUB), see SchemaEnv.
package migrations

import "embed"

// SchemaEnv names the environment variable the migrations read the target
// schema from.
const SchemaEnv = "CALBOT_DB_SCHEMA"

//go:embed *.sql
var Migrations embed.FS
