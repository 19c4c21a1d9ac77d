package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/calbot/internal/common"
	"github.com/dmitrijs2005/calbot/internal/dbx"
	"github.com/dmitrijs2005/calbot/internal/logging"
	"github.com/dmitrijs2005/calbot/internal/server/models"
	"github.com/dmitrijs2005/calbot/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// listSortField is the bag key List orders by.
const listSortField = "start"

// ScheduleService manages the schedules owned by a group. Every operation is
// scoped by group id; a schedule of another group is indistinguishable from
// a missing one.
type ScheduleService struct {
	pool        dbx.Runner
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	newID       func() string
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(pool dbx.Runner, m repomanager.RepositoryManager, logger logging.Logger) *ScheduleService {
	return &ScheduleService{pool: pool, repomanager: m, logger: logger, newID: uuid.NewString}
}

// Create validates in, fills defaults and stores a new schedule under groupID.
func (s *ScheduleService) Create(ctx context.Context, groupID string, in models.ScheduleInput) (*models.Schedule, error) {
	if err := validateGroupID(groupID); err != nil {
		return nil, err
	}
	if err := validateScheduleInput(in); err != nil {
		return nil, err
	}

	raw, err := models.NewScheduleBag(in).Encode()
	if err != nil {
		return nil, err
	}

	id := s.newID()
	var row *models.Row
	err = s.pool.Run(ctx, "schedules.Create", func(ctx context.Context, q dbx.DBTX) error {
		var err error
		row, err = s.repomanager.Schedules(q).Insert(ctx, groupID, id, raw)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "schedule created", "gid", groupID, "uid", id)
	return decodeSchedule(row)
}

// Get returns one schedule or common.ErrorNotFoundOrNotOwned.
func (s *ScheduleService) Get(ctx context.Context, groupID, scheduleID string) (*models.Schedule, error) {
	if err := validateGroupID(groupID); err != nil {
		return nil, err
	}
	if !isID(scheduleID) {
		return nil, common.ErrorNotFoundOrNotOwned
	}

	var row *models.Row
	err := s.pool.Run(ctx, "schedules.Get", func(ctx context.Context, q dbx.DBTX) error {
		var err error
		row, err = s.repomanager.Schedules(q).FetchOne(ctx, groupID, scheduleID)
		return err
	})
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorNotFoundOrNotOwned
	}
	if err != nil {
		return nil, err
	}
	return decodeSchedule(row)
}

// Update merges patch over the stored schedule. The write only succeeds if
// the row has not changed since it was read; otherwise it returns
// common.ErrVersionConflict, or common.ErrorNotFoundOrNotOwned if the row is
// gone.
func (s *ScheduleService) Update(ctx context.Context, groupID, scheduleID string, patch models.SchedulePatch) (*models.Schedule, error) {
	if err := validateGroupID(groupID); err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	if !isID(scheduleID) {
		return nil, common.ErrorNotFoundOrNotOwned
	}

	var row *models.Row
	err := s.pool.Run(ctx, "schedules.Update", func(ctx context.Context, q dbx.DBTX) error {
		repo := s.repomanager.Schedules(q)

		current, err := repo.FetchOne(ctx, groupID, scheduleID)
		if err != nil {
			return err
		}
		bag, err := models.DecodeScheduleBag(current.Bag)
		if err != nil {
			return common.NewStorageError("schedules.Update", err)
		}

		merged := bag.Apply(patch)
		if err := validateMerged(merged); err != nil {
			return err
		}
		raw, err := merged.Encode()
		if err != nil {
			return err
		}

		row, err = repo.UpdateIfUnchanged(ctx, groupID, scheduleID, raw, current.UpdatedAt)
		if errors.Is(err, common.ErrVersionConflict) {
			if _, ferr := repo.FetchOne(ctx, groupID, scheduleID); errors.Is(ferr, common.ErrorNotFound) {
				return ferr
			}
		}
		return err
	})
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorNotFoundOrNotOwned
	}
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			s.logger.Info(ctx, "schedule update lost a race", "gid", groupID, "uid", scheduleID)
		}
		return nil, err
	}
	return decodeSchedule(row)
}

// Remove deletes the schedule if groupID owns it and reports whether a row
// was removed.
func (s *ScheduleService) Remove(ctx context.Context, groupID, scheduleID string) (bool, error) {
	if err := validateGroupID(groupID); err != nil {
		return false, err
	}
	if !isID(scheduleID) {
		return false, nil
	}

	var removed bool
	err := s.pool.Run(ctx, "schedules.Remove", func(ctx context.Context, q dbx.DBTX) error {
		var err error
		removed, err = s.repomanager.Schedules(q).DeleteOne(ctx, groupID, scheduleID)
		return err
	})
	return removed, err
}

// List returns every schedule of groupID ordered by start ascending.
func (s *ScheduleService) List(ctx context.Context, groupID string) ([]*models.Schedule, error) {
	if err := validateGroupID(groupID); err != nil {
		return nil, err
	}

	var rows []*models.Row
	err := s.pool.Run(ctx, "schedules.List", func(ctx context.Context, q dbx.DBTX) error {
		var err error
		rows, err = s.repomanager.Schedules(q).FetchAllForGroup(ctx, groupID, listSortField)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]*models.Schedule, 0, len(rows))
	for _, row := range rows {
		sc, err := decodeSchedule(row)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// Count returns the number of schedules owned by groupID.
func (s *ScheduleService) Count(ctx context.Context, groupID string) (int64, error) {
	if err := validateGroupID(groupID); err != nil {
		return 0, err
	}

	var n int64
	err := s.pool.Run(ctx, "schedules.Count", func(ctx context.Context, q dbx.DBTX) error {
		var err error
		n, err = s.repomanager.Schedules(q).Count(ctx, groupID)
		return err
	})
	return n, err
}

func decodeSchedule(row *models.Row) (*models.Schedule, error) {
	sc, err := models.ScheduleFromRow(row)
	if err != nil {
		return nil, common.NewStorageError("schedules.decode", err)
	}
	return sc, nil
}

func isID(s string) bool {
	return uuid.Validate(s) == nil
}
