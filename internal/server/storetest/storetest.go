// Package storetest provides in-memory stand-ins for the pool, the
// repository manager and the bag repositories, for service-level tests.
package storetest

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/calbot/internal/common"
	"github.com/dmitrijs2005/calbot/internal/dbx"
	"github.com/dmitrijs2005/calbot/internal/server/models"
	"github.com/dmitrijs2005/calbot/internal/server/repositories/bags"
)

type key struct{ group, entity string }

// Store is an in-memory bags.Repository. When EntityKeyed is true the
// primary key is the entity id alone (schedules); otherwise it is
// (group, entity) (users).
type Store struct {
	EntityKeyed bool

	// Err, when set, is returned from every operation as a storage failure.
	Err error

	mu    sync.Mutex
	rows  map[key]*models.Row
	last  time.Time
	calls []string
}

var _ bags.Repository = (*Store)(nil)

// NewUsers returns a store keyed like the users table.
func NewUsers() *Store { return &Store{} }

// NewSchedules returns a store keyed like the schedules table.
func NewSchedules() *Store { return &Store{EntityKeyed: true} }

func (s *Store) k(groupID, entityID string) key {
	if s.EntityKeyed {
		return key{entity: entityID}
	}
	return key{group: groupID, entity: entityID}
}

// tick returns a strictly increasing timestamp.
func (s *Store) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

func (s *Store) enter(op string) error {
	s.calls = append(s.calls, op)
	if s.rows == nil {
		s.rows = make(map[key]*models.Row)
	}
	if s.Err != nil {
		return common.NewStorageError("storetest."+op, s.Err)
	}
	return nil
}

func copyRow(r *models.Row) *models.Row {
	c := *r
	c.Bag = append(json.RawMessage(nil), r.Bag...)
	return &c
}

// Calls lists the operations invoked so far, in order.
func (s *Store) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Len is the number of stored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Put stores row as-is, bypassing the repository contract.
func (s *Store) Put(row *models.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows == nil {
		s.rows = make(map[key]*models.Row)
	}
	s.rows[s.k(row.GroupID, row.EntityID)] = copyRow(row)
}

// Touch bumps updated_at of a stored row, simulating a concurrent writer.
func (s *Store) Touch(groupID, entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[s.k(groupID, entityID)]; ok {
		r.UpdatedAt = s.tick()
	}
}

func (s *Store) Upsert(ctx context.Context, groupID, entityID string, bag json.RawMessage) (*models.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Upsert"); err != nil {
		return nil, err
	}
	k := s.k(groupID, entityID)
	if r, ok := s.rows[k]; ok {
		r.GroupID = groupID
		r.Bag = append(json.RawMessage(nil), bag...)
		r.UpdatedAt = s.tick()
		return copyRow(r), nil
	}
	now := s.tick()
	r := &models.Row{GroupID: groupID, EntityID: entityID, Bag: append(json.RawMessage(nil), bag...), CreatedAt: now, UpdatedAt: now}
	s.rows[k] = r
	return copyRow(r), nil
}

func (s *Store) Insert(ctx context.Context, groupID, entityID string, bag json.RawMessage) (*models.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Insert"); err != nil {
		return nil, err
	}
	k := s.k(groupID, entityID)
	if _, ok := s.rows[k]; ok {
		return nil, common.ErrorAlreadyExists
	}
	now := s.tick()
	r := &models.Row{GroupID: groupID, EntityID: entityID, Bag: append(json.RawMessage(nil), bag...), CreatedAt: now, UpdatedAt: now}
	s.rows[k] = r
	return copyRow(r), nil
}

func (s *Store) FetchOne(ctx context.Context, groupID, entityID string) (*models.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FetchOne"); err != nil {
		return nil, err
	}
	r, ok := s.rows[s.k(groupID, entityID)]
	if !ok || r.GroupID != groupID {
		return nil, common.ErrorNotFound
	}
	return copyRow(r), nil
}

func (s *Store) FetchAllForGroup(ctx context.Context, groupID, sortField string) ([]*models.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FetchAllForGroup"); err != nil {
		return nil, err
	}
	out := make([]*models.Row, 0)
	for _, r := range s.rows {
		if r.GroupID == groupID {
			out = append(out, copyRow(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if sortField != "" {
		sort.SliceStable(out, func(i, j int) bool {
			ti, oki := bagTime(out[i].Bag, sortField)
			tj, okj := bagTime(out[j].Bag, sortField)
			if oki != okj {
				return oki
			}
			return oki && ti.Before(tj)
		})
	}
	return out, nil
}

func bagTime(bag json.RawMessage, field string) (time.Time, bool) {
	var m map[string]any
	if err := json.Unmarshal(bag, &m); err != nil {
		return time.Time{}, false
	}
	v, ok := m[field].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	return t, err == nil
}

func (s *Store) DeleteOne(ctx context.Context, groupID, entityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteOne"); err != nil {
		return false, err
	}
	k := s.k(groupID, entityID)
	r, ok := s.rows[k]
	if !ok || r.GroupID != groupID {
		return false, nil
	}
	delete(s.rows, k)
	return true, nil
}

func (s *Store) Count(ctx context.Context, groupID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Count"); err != nil {
		return 0, err
	}
	var n int64
	for _, r := range s.rows {
		if r.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateIfUnchanged(ctx context.Context, groupID, entityID string, bag json.RawMessage, expectedUpdatedAt time.Time) (*models.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateIfUnchanged"); err != nil {
		return nil, err
	}
	r, ok := s.rows[s.k(groupID, entityID)]
	if !ok || r.GroupID != groupID || !r.UpdatedAt.Equal(expectedUpdatedAt) {
		return nil, common.ErrVersionConflict
	}
	r.Bag = append(json.RawMessage(nil), bag...)
	r.UpdatedAt = s.tick()
	return copyRow(r), nil
}

// Manager is an in-memory repomanager.RepositoryManager.
type Manager struct {
	UsersStore     *Store
	SchedulesStore *Store
	MigrateErr     error
	Migrated       int
}

// NewManager returns a Manager with empty stores.
func NewManager() *Manager {
	return &Manager{UsersStore: NewUsers(), SchedulesStore: NewSchedules()}
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error {
	m.Migrated++
	return m.MigrateErr
}

func (m *Manager) Users(dbx.DBTX) bags.Repository     { return m.UsersStore }
func (m *Manager) Schedules(dbx.DBTX) bags.Repository { return m.SchedulesStore }

// Runner is a dbx.Runner that invokes fn without a real connection. Err
// simulates an acquisition failure.
type Runner struct {
	Err error

	mu  sync.Mutex
	ops []string
}

var _ dbx.Runner = (*Runner)(nil)

func (r *Runner) Run(ctx context.Context, op string, fn func(ctx context.Context, q dbx.DBTX) error) error {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
	if r.Err != nil {
		return common.NewStorageError(op, r.Err)
	}
	return fn(ctx, nil)
}

// Ops lists the operation names passed to Run.
func (r *Runner) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}
