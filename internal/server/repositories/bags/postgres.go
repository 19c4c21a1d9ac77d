// Package bags provides the PostgreSQL-backed property-bag store: rows of
// (group_id, entity_id, jsonb bag, created_at, updated_at), used identically
// for users and schedules.
package bags

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/calbot/internal/common"
	"github.com/dmitrijs2005/calbot/internal/dbx"
	"github.com/dmitrijs2005/calbot/internal/server/models"
)

// Statements holds the SQL for one table, built once by Compile.
type Statements struct {
	upsert, insert, fetchOne, fetchAll, fetchAllSorted, deleteOne, count, updateIfUnchanged string
}

// PostgresRepository implements Repository over a dbx.DBTX for a single table.
type PostgresRepository struct {
	db dbx.DBTX
	q  *Statements
}

// NewPostgresRepository binds compiled statements to db.
func NewPostgresRepository(db dbx.DBTX, q *Statements) *PostgresRepository {
	return &PostgresRepository{db: db, q: q}
}

// Compile validates t and renders its statements.
func Compile(t Table) (*Statements, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	cols := fmt.Sprintf("t.group_id, t.%s, t.bag, t.created_at, t.updated_at", t.EntityColumn)
	tbl := t.qualified()
	ent := t.EntityColumn
	// updated_at is strictly increasing per row so it can serve as a version.
	bump := "GREATEST(clock_timestamp(), t.updated_at + interval '1 microsecond')"

	return &Statements{
		upsert: fmt.Sprintf(`
		INSERT INTO %s AS t (group_id, %s, bag)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (%s) DO UPDATE SET
			group_id = EXCLUDED.group_id,
			bag = EXCLUDED.bag,
			updated_at = %s
		RETURNING %s`, tbl, ent, strings.Join(t.ConflictTarget, ", "), bump, cols),

		insert: fmt.Sprintf(`
		INSERT INTO %s AS t (group_id, %s, bag)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT DO NOTHING
		RETURNING %s`, tbl, ent, cols),

		fetchOne: fmt.Sprintf(`
		SELECT %s FROM %s AS t
		WHERE t.group_id = $1 AND t.%s = $2`, cols, tbl, ent),

		fetchAll: fmt.Sprintf(`
		SELECT %s FROM %s AS t
		WHERE t.group_id = $1
		ORDER BY t.created_at ASC, t.%s ASC`, cols, tbl, ent),

		fetchAllSorted: fmt.Sprintf(`
		SELECT %s FROM %s AS t
		WHERE t.group_id = $1
		ORDER BY (t.bag ->> $2)::timestamptz ASC NULLS LAST, t.created_at ASC`, cols, tbl),

		deleteOne: fmt.Sprintf(`
		DELETE FROM %s AS t
		WHERE t.group_id = $1 AND t.%s = $2`, tbl, ent),

		count: fmt.Sprintf(`
		SELECT COUNT(*) FROM %s AS t
		WHERE t.group_id = $1`, tbl),

		updateIfUnchanged: fmt.Sprintf(`
		UPDATE %s AS t SET
			bag = $3::jsonb,
			updated_at = %s
		WHERE t.group_id = $1 AND t.%s = $2 AND t.updated_at = $4
		RETURNING %s`, tbl, bump, ent, cols),
	}, nil
}

func scanRow(s interface{ Scan(dest ...any) error }) (*models.Row, error) {
	row := &models.Row{}
	var bag []byte
	if err := s.Scan(&row.GroupID, &row.EntityID, &bag, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return nil, err
	}
	row.Bag = json.RawMessage(bag)
	return row, nil
}

func dbError(op string, err error) error {
	return common.NewStorageError(op, fmt.Errorf("db error: %w", err))
}

// Upsert inserts the row or, on a primary-key conflict, replaces group_id and
// bag and bumps updated_at, all in one statement.
func (r *PostgresRepository) Upsert(ctx context.Context, groupID, entityID string, bag json.RawMessage) (*models.Row, error) {
	row, err := scanRow(r.db.QueryRowContext(ctx, r.q.upsert, groupID, entityID, string(bag)))
	if err != nil {
		return nil, dbError("bags.Upsert", err)
	}
	return row, nil
}

// Insert creates the row only if no row with the same key exists. A conflict
// yields common.ErrorAlreadyExists and leaves the stored row untouched.
func (r *PostgresRepository) Insert(ctx context.Context, groupID, entityID string, bag json.RawMessage) (*models.Row, error) {
	row, err := scanRow(r.db.QueryRowContext(ctx, r.q.insert, groupID, entityID, string(bag)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, dbError("bags.Insert", err)
	}
	return row, nil
}

// FetchOne returns the row scoped by (groupID, entityID) or common.ErrorNotFound.
func (r *PostgresRepository) FetchOne(ctx context.Context, groupID, entityID string) (*models.Row, error) {
	row, err := scanRow(r.db.QueryRowContext(ctx, r.q.fetchOne, groupID, entityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbError("bags.FetchOne", err)
	}
	return row, nil
}

// FetchAllForGroup returns every row owned by groupID. With an empty
// sortField rows come in creation order; otherwise they are ordered ascending
// by the timestamp stored under that top-level bag key.
func (r *PostgresRepository) FetchAllForGroup(ctx context.Context, groupID, sortField string) ([]*models.Row, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if sortField == "" {
		rows, err = r.db.QueryContext(ctx, r.q.fetchAll, groupID)
	} else {
		if !identRe.MatchString(sortField) {
			return nil, common.NewValidationError("sortField", "must be a plain field name")
		}
		rows, err = r.db.QueryContext(ctx, r.q.fetchAllSorted, groupID, sortField)
	}
	if err != nil {
		return nil, dbError("bags.FetchAllForGroup", err)
	}
	defer rows.Close()

	result := make([]*models.Row, 0)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, dbError("bags.FetchAllForGroup", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("bags.FetchAllForGroup", err)
	}
	return result, nil
}

// DeleteOne removes the scoped row and reports whether a row was removed.
func (r *PostgresRepository) DeleteOne(ctx context.Context, groupID, entityID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q.deleteOne, groupID, entityID)
	if err != nil {
		return false, dbError("bags.DeleteOne", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbError("bags.DeleteOne", err)
	}
	return n > 0, nil
}

// Count returns the number of rows owned by groupID.
func (r *PostgresRepository) Count(ctx context.Context, groupID string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, r.q.count, groupID).Scan(&n); err != nil {
		return 0, dbError("bags.Count", err)
	}
	return n, nil
}

// UpdateIfUnchanged replaces the bag only if the row still carries
// expectedUpdatedAt. Otherwise (row changed or gone) it returns
// common.ErrVersionConflict and writes nothing.
func (r *PostgresRepository) UpdateIfUnchanged(ctx context.Context, groupID, entityID string, bag json.RawMessage, expectedUpdatedAt time.Time) (*models.Row, error) {
	row, err := scanRow(r.db.QueryRowContext(ctx, r.q.updateIfUnchanged, groupID, entityID, string(bag), expectedUpdatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrVersionConflict
		}
		return nil, dbError("bags.UpdateIfUnchanged", err)
	}
	return row, nil
}
