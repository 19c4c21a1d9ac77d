// Package models defines server-side data models persisted in the database.
package models

import (
	"encoding/json"
	"time"
)

// Row is one property-bag record: fixed key columns plus an opaque JSON
// document. Users and schedules are both stored as rows.
type Row struct {
	GroupID   string
	EntityID  string
	Bag       json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}
