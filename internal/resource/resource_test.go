package resource

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
)

func setup(t *testing.T) (*Resolver, *conn.Pool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	d := &dialect.SQLServer{}
	pool := conn.New(db, d)
	r, err := New(pool, d)
	require.NoError(t, err)
	return r, pool, mock
}

func TestResolver_Template(t *testing.T) {
	r, _, _ := setup(t)
	assert.Equal(t, "mssql://{name}/data", r.Template())
	assert.Equal(t, "mssql://table1/data", r.URI("table1"))
	assert.Equal(t, "mssql://dbo.Orders/data", r.URI("dbo.Orders"))
}

func TestResolver_Parse(t *testing.T) {
	r, _, _ := setup(t)

	id, err := r.Parse("mssql://dbo.Orders/data")
	require.NoError(t, err)
	assert.Equal(t, Identifier{Name: "dbo.Orders"}, id)

	for _, uri := range []string{
		"mssql://table1",
		"mssql://table1/rows",
		"postgres://table1/data",
		"mssql:///data",
		"mssql://a/b/data",
		"",
	} {
		t.Run(uri, func(t *testing.T) {
			_, err := r.Parse(uri)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.MalformedIdentifier))
		})
	}
}

func TestResolver_ReadRoundTrip(t *testing.T) {
	r, pool, mock := setup(t)
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("table1").
		WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("BASE TABLE"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT TOP 100 * FROM [table1]")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "note"}).
			AddRow(1, "ada", nil).
			AddRow(2, "grace, hopper", "x"))

	text, err := r.Read(context.Background(), "mssql://table1/data")
	require.NoError(t, err)
	assert.Equal(t, "id,name,note\n1,ada,\n2,\"grace, hopper\",x\n", text)
	assert.Equal(t, conn.Stats{Acquired: 1, Released: 1}, pool.Stats())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolver_ReadEmptyView(t *testing.T) {
	r, _, mock := setup(t)
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("v_recent", "dbo").
		WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("VIEW"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT TOP 100 * FROM [dbo].[v_recent]")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	text, err := r.Read(context.Background(), "mssql://dbo.v_recent/data")
	require.NoError(t, err)
	assert.Equal(t, "id,created_at\n", text)
}

func TestResolver_ReadNotFound(t *testing.T) {
	r, pool, mock := setup(t)
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"kind"}))

	_, err := r.Read(context.Background(), "mssql://ghost/data")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ResourceNotFound))
	assert.Equal(t, int64(0), pool.Stats().InUse)
}

func TestResolver_MalformedNeverAcquires(t *testing.T) {
	r, pool, _ := setup(t)
	_, err := r.Read(context.Background(), "mssql://table1")
	assert.True(t, apperr.Is(err, apperr.MalformedIdentifier))
	assert.Equal(t, int64(0), pool.Stats().Acquired)
}

func TestResolver_ListTablesThenViews(t *testing.T) {
	r, _, mock := setup(t)
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"name", "kind"}).
			AddRow("v_orders", "VIEW").
			AddRow("Orders", "BASE TABLE").
			AddRow("Users", "BASE TABLE"))

	ids, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Identifier{
		{Kind: dialect.KindTable, Name: "Orders"},
		{Kind: dialect.KindTable, Name: "Users"},
		{Kind: dialect.KindView, Name: "v_orders"},
	}, ids)
}
