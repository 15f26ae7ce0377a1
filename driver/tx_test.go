package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakePool struct {
	PostgresPool
	txs       []*fakeTx
	commitErr error
	opts      []pgx.TxOptions
}

func (p *fakePool) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	tx := &fakeTx{commitErr: p.commitErr}
	p.txs = append(p.txs, tx)
	p.opts = append(p.opts, opts)
	return tx, nil
}

func TestExecuteTransaction_Commits(t *testing.T) {
	pool := &fakePool{}
	tm := NewTransactionManager(pool, zap.NewNop())

	err := tm.ExecuteTransaction(context.Background(), func(pgx.Tx) error { return nil })
	require.NoError(t, err)

	require.Len(t, pool.txs, 1)
	assert.True(t, pool.txs[0].committed)
	assert.False(t, pool.txs[0].rolledBack)
	assert.Equal(t, pgx.ReadCommitted, pool.opts[0].IsoLevel)
}

func TestExecuteTransaction_RollsBackOnError(t *testing.T) {
	pool := &fakePool{}
	tm := NewTransactionManager(pool, zap.NewNop())
	boom := errors.New("boom")

	err := tm.ExecuteTransaction(context.Background(), func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)

	require.Len(t, pool.txs, 1, "non-retryable errors are not retried")
	assert.False(t, pool.txs[0].committed)
	assert.True(t, pool.txs[0].rolledBack)
}

func TestExecuteTransaction_ReturnsCommitError(t *testing.T) {
	pool := &fakePool{commitErr: errors.New("connection lost")}
	tm := NewTransactionManager(pool, zap.NewNop())

	err := tm.ExecuteTransaction(context.Background(), func(pgx.Tx) error { return nil })
	assert.ErrorContains(t, err, "commit transaction failed")
}

func TestExecuteTransaction_RetriesSerializationFailure(t *testing.T) {
	pool := &fakePool{}
	tm := NewTransactionManager(pool, zap.NewNop())

	calls := 0
	err := tm.ExecuteTransaction(context.Background(), func(pgx.Tx) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: pgSerializationFailure}
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	require.Len(t, pool.txs, 2)
	assert.True(t, pool.txs[0].rolledBack)
	assert.True(t, pool.txs[1].committed)
}

func TestExecuteTransaction_GivesUpAfterRetries(t *testing.T) {
	pool := &fakePool{}
	tm := NewTransactionManager(pool, zap.NewNop())

	err := tm.ExecuteTransaction(context.Background(), func(pgx.Tx) error {
		return &pgconn.PgError{Code: pgDeadlockDetected}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("after %d attempts", defaultTxRetries))
	assert.Len(t, pool.txs, defaultTxRetries)
}

func TestExecuteTransaction_PanicRollsBack(t *testing.T) {
	pool := &fakePool{}
	tm := NewTransactionManager(pool, zap.NewNop())

	assert.Panics(t, func() {
		_ = tm.ExecuteTransaction(context.Background(), func(pgx.Tx) error { panic("oops") })
	})
	require.Len(t, pool.txs, 1)
	assert.True(t, pool.txs[0].rolledBack)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped", fmt.Errorf("debit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("nope"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}
