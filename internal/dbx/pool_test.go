package dbx

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/calbot/internal/common"
	"github.com/dmitrijs2005/calbot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T, opts PoolOptions) (*Pool, sqlmock.Sqlmock, *bytes.Buffer) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var buf bytes.Buffer
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	return NewPool(db, opts, log), mock, &buf
}

func TestPool_PingRunsSelectOne(t *testing.T) {
	p, mock, _ := newMockPool(t, PoolOptions{MaxConns: 2})

	mock.ExpectQuery(`SELECT 1`).WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	require.NoError(t, p.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_PingFailureIsStorageUnavailable(t *testing.T) {
	p, mock, _ := newMockPool(t, PoolOptions{MaxConns: 2})

	mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("connection refused"))

	err := p.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrorStorageUnavailable)
	assert.Equal(t, "storage unavailable", err.Error())
}

func TestPool_RunAppliesQueryTimeout(t *testing.T) {
	p, _, _ := newMockPool(t, PoolOptions{MaxConns: 1, QueryTimeout: time.Second})

	err := p.Run(context.Background(), "test", func(ctx context.Context, q DBTX) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok, "operation context must carry a deadline")
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 200*time.Millisecond)
		assert.NotNil(t, q)
		return nil
	})
	require.NoError(t, err)
}

func TestPool_RunPropagatesCallbackError(t *testing.T) {
	p, _, _ := newMockPool(t, PoolOptions{MaxConns: 1})
	boom := errors.New("boom")

	err := p.Run(context.Background(), "test", func(ctx context.Context, q DBTX) error { return boom })
	assert.Same(t, boom, err)
}

func TestPool_ExhaustionFailsFast(t *testing.T) {
	p, _, _ := newMockPool(t, PoolOptions{MaxConns: 1, AcquireTimeout: 20 * time.Millisecond})

	held, err := p.DB().Conn(context.Background())
	require.NoError(t, err)
	defer held.Close()

	start := time.Now()
	err = p.Run(context.Background(), "test", func(ctx context.Context, q DBTX) error {
		t.Fatal("callback must not run without a connection")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPoolExhausted)
	assert.ErrorIs(t, err, common.ErrorStorageUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPool_CancelledCallerIsNotExhaustion(t *testing.T) {
	p, _, _ := newMockPool(t, PoolOptions{MaxConns: 1, AcquireTimeout: time.Second})

	held, err := p.DB().Conn(context.Background())
	require.NoError(t, err)
	defer held.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = p.Run(ctx, "test", func(ctx context.Context, q DBTX) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrorStorageUnavailable)
	assert.NotErrorIs(t, err, common.ErrPoolExhausted)
}

func TestPool_LogsSlowOperations(t *testing.T) {
	p, _, buf := newMockPool(t, PoolOptions{MaxConns: 1, SlowThreshold: time.Millisecond})

	err := p.Run(context.Background(), "bags.FetchOne", func(ctx context.Context, q DBTX) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "slow store operation")
	assert.Contains(t, buf.String(), "op=bags.FetchOne")
}

func TestPool_ConnectionReleasedAfterRun(t *testing.T) {
	p, _, _ := newMockPool(t, PoolOptions{MaxConns: 1, AcquireTimeout: 50 * time.Millisecond})

	for i := 0; i < 3; i++ {
		err := p.Run(context.Background(), "test", func(ctx context.Context, q DBTX) error { return nil })
		require.NoError(t, err, "run %d", i)
	}
}

var _ DBTX = (*sql.Conn)(nil)
var _ Runner = (*Pool)(nil)
