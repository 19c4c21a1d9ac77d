package bags

import (
	"fmt"
	"regexp"
)

// DefaultSchema is the PostgreSQL schema holding the bag tables.
const DefaultSchema = "v1"

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Table describes one bag table: its location, the name of the entity key
// column and the primary-key columns used as the upsert conflict target.
type Table struct {
	Schema         string
	Name           string
	EntityColumn   string
	ConflictTarget []string
}

// UsersTable is primary-keyed on (group_id, user_id).
func UsersTable(schema string) Table {
	return Table{Schema: schema, Name: "users", EntityColumn: "user_id", ConflictTarget: []string{"group_id", "user_id"}}
}

// SchedulesTable is primary-keyed on schedule_id alone.
func SchedulesTable(schema string) Table {
	return Table{Schema: schema, Name: "schedules", EntityColumn: "schedule_id", ConflictTarget: []string{"schedule_id"}}
}

// Validate rejects anything that is not a plain SQL identifier, since these
// names are interpolated into statements.
func (t Table) Validate() error {
	names := append([]string{t.Schema, t.Name, t.EntityColumn}, t.ConflictTarget...)
	if len(t.ConflictTarget) == 0 {
		return fmt.Errorf("bags: table %q has no conflict target", t.Name)
	}
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("bags: invalid identifier %q", n)
		}
	}
	return nil
}

func (t Table) qualified() string {
	return t.Schema + "." + t.Name
}
