// Package admin provides the calbot operator command-line tool.
//
// It runs against the same core as the server (pool, repositories and
// services) and executes one command per invocation:
//   - migrate: apply pending schema migrations
//   - register <email>: create a user (password is prompted for)
//   - login <email>: verify credentials and print a session token
//   - whoami <token>: print the user a token belongs to
//   - schedules <token>: list the schedules of the token's owner
//
// See App.Run for exit codes.
package admin
