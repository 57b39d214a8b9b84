package conn

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
)

func TestPool_AcquireRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := New(db, &dialect.SQLServer{})
	ctx := context.Background()

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	lease, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", lease.Dialect().Name())
	assert.Equal(t, Stats{Acquired: 1, InUse: 1}, p.Stats())

	var n int
	require.NoError(t, lease.QueryRowContext(ctx, "SELECT 1").Scan(&n))
	assert.Equal(t, 1, n)

	p.Release(lease)
	p.Release(lease)
	p.Release(nil)
	assert.Equal(t, Stats{Acquired: 1, Released: 1}, p.Stats())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_AcquireClosed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	p := New(db, &dialect.SQLServer{})
	require.NoError(t, p.Close())

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ConnectionError))
	assert.Equal(t, int64(0), p.Stats().Acquired)
}

func TestPool_PingFailureIsMasked(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("login failed for sqlserver://sa:hunter2@db:1433"))

	err = New(db, &dialect.SQLServer{}).Ping(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ConnectionError))
	assert.NotContains(t, err.Error(), "hunter2")
}
