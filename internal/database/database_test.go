package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/author-matching-service/internal/config"
)

// A pgxmock pool must be usable wherever repositories expect a DBTX.
var (
	_ DBTX      = pgxmock.PgxPoolIface(nil)
	_ TxStarter = pgxmock.PgxPoolIface(nil)
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE publications").WithArgs(int64(7)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := RunInTx(ctx, mock, pgx.TxOptions{}, zerolog.Nop(), func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, "UPDATE publications SET match_status = 'pending' WHERE id = $1", int64(7))
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and returns fn error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := RunInTx(ctx, mock, pgx.TxOptions{}, zerolog.Nop(), func(pgx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports rollback failure alongside fn error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(errors.New("conn closed"))

		boom := errors.New("boom")
		err := RunInTx(ctx, mock, pgx.TxOptions{}, zerolog.Nop(), func(pgx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "conn closed")
	})

	t.Run("rolls back on panic and re-panics", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "kaboom", func() {
			_ = RunInTx(ctx, mock, pgx.TxOptions{}, zerolog.Nop(), func(pgx.Tx) error { panic("kaboom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		called := false
		err := RunInTx(ctx, mock, pgx.TxOptions{}, zerolog.Nop(), func(pgx.Tx) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
		assert.False(t, called)
	})

	t.Run("commit failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err := RunInTx(ctx, mock, pgx.TxOptions{}, zerolog.Nop(), func(pgx.Tx) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
	})
}

func TestHealthStatus_Healthy(t *testing.T) {
	assert.True(t, HealthStatus{Status: "healthy"}.Healthy())
	assert.False(t, HealthStatus{Status: "unhealthy", Error: "connection refused"}.Healthy())
	assert.Equal(t, 5*time.Second, HealthCheckTimeout)
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping network test in short mode")
	}

	// 192.0.2.1 is TEST-NET-1 (RFC 5737), guaranteed unroutable.
	cfg := &config.DatabaseConfig{
		Host:           "192.0.2.1",
		Port:           5432,
		Name:           "author_matching",
		User:           "authormatch",
		SSLMode:        config.SSLModeDisable,
		MaxConns:       2,
		MinConns:       0,
		ConnectTimeout: time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	db, err := New(ctx, cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Nil(t, db)
}

func TestDB_CloseZeroValue(t *testing.T) {
	assert.NotPanics(t, func() {
		(&DB{}).Close()
	})
}
