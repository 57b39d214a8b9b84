package handlers

import (
	"context"
	"database/sql"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
	"github.com/shakram02/go-mcp-mssql/internal/registry"
	"github.com/shakram02/go-mcp-mssql/internal/result"
	"github.com/shakram02/go-mcp-mssql/internal/schema"
)

func mockLease(t *testing.T, d dialect.Dialect) (*conn.Lease, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pool := conn.New(db, d)
	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { pool.Release(lease) })
	return lease, mock
}

func operation(t *testing.T, d dialect.Dialect, name string) registry.Descriptor {
	t.Helper()
	reg, err := Registry(d, Options{})
	require.NoError(t, err)
	desc, err := reg.Resolve(name)
	require.NoError(t, err)
	return desc
}

// invoke validates bag and runs the named operation directly on lease.
func invoke(t *testing.T, lease *conn.Lease, name string, bag map[string]any) (result.Payload, error) {
	t.Helper()
	desc := operation(t, lease.Dialect(), name)
	args, err := schema.Validate(desc.Fields, bag)
	require.NoError(t, err)
	return desc.Handler(context.Background(), lease, args)
}

func names(descs []registry.Descriptor) []string {
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.Name
	}
	return out
}

func TestOperations_PerDialect(t *testing.T) {
	sqlserver := names(Operations(&dialect.SQLServer{}, Options{}))
	for _, name := range []string{
		"read_query", "write_query", "execute_sql",
		"list_tables", "describe_table", "create_table", "alter_table", "drop_table", "table_size",
		"list_views", "describe_view", "create_view", "modify_view", "delete_view",
		"list_procedures", "describe_procedure", "get_procedure_parameters",
		"create_procedure", "modify_procedure", "delete_procedure", "execute_procedure",
		"list_functions", "describe_function", "create_function", "modify_function",
		"delete_function", "execute_function",
		"list_indexes", "describe_index", "create_index", "delete_index",
		"index_usage_stats", "index_analysis",
		"list_schemas", "list_objects",
		"performance_stats",
	} {
		assert.Contains(t, sqlserver, name)
	}

	sqlite := names(Operations(&dialect.SQLite{}, Options{}))
	assert.Contains(t, sqlite, "list_tables")
	assert.Contains(t, sqlite, "create_index")
	for _, name := range []string{"execute_procedure", "execute_function", "performance_stats", "index_analysis"} {
		assert.NotContains(t, sqlite, name)
	}
}

func TestRegistry_AllDialects(t *testing.T) {
	for _, d := range []dialect.Dialect{&dialect.SQLServer{}, &dialect.Postgres{}, &dialect.MySQL{}, &dialect.SQLite{}} {
		t.Run(d.Name(), func(t *testing.T) {
			reg, err := Registry(d, Options{})
			require.NoError(t, err)
			assert.Equal(t, len(Operations(d, Options{})), reg.Len())
		})
	}
}

func TestDescribeTable_NotFound(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("Missing").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}))

	_, err := invoke(t, lease, "describe_table", map[string]any{"table_name": "Missing"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ObjectNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeTable_Columns(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("Users", "dbo").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "int").
			AddRow("email", "nvarchar"))

	p, err := invoke(t, lease, "describe_table", map[string]any{"table_name": "dbo.Users"})
	require.NoError(t, err)
	require.Len(t, p.Rows, 2)
	assert.Equal(t, "email", p.Rows[1].Get("column_name"))
}

func TestWriteQuery_ReturnsAffectedRows(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectExec(regexp.QuoteMeta("UPDATE Users SET active = 1")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	p, err := invoke(t, lease, "write_query", map[string]any{"sql": "UPDATE Users SET active = 1"})
	require.NoError(t, err)
	require.NotNil(t, p.Count)
	assert.Equal(t, int64(3), *p.Count)
}

func TestExecuteSQL_NoResultSet(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery(regexp.QuoteMeta("EXEC sp_updatestats")).
		WillReturnRows(sqlmock.NewRows([]string{}))

	p, err := invoke(t, lease, "execute_sql", map[string]any{"sql": "EXEC sp_updatestats"})
	require.NoError(t, err)
	assert.Equal(t, "Statement executed successfully", p.Text)
}

func TestExecuteProcedure_BindsParameters(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery(`SELECT type FROM sys\.objects`).
		WithArgs("dbo.GetUser", "P", "PC").
		WillReturnRows(sqlmock.NewRows([]string{"type"}).AddRow("P "))
	mock.ExpectQuery(regexp.QuoteMeta("EXEC [dbo].[GetUser] @p1, @p2")).
		WithArgs("42", "O'Brien").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(42, "O'Brien"))

	p, err := invoke(t, lease, "execute_procedure", map[string]any{
		"procedure_name": "dbo.GetUser",
		"parameters":     []any{"42", "O'Brien"},
	})
	require.NoError(t, err)
	require.Len(t, p.Rows, 1)
	assert.Equal(t, "O'Brien", p.Rows[0].Get("name"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteProcedure_Missing(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery(`SELECT type FROM sys\.objects`).
		WithArgs("nope", "P", "PC").
		WillReturnRows(sqlmock.NewRows([]string{"type"}))

	_, err := invoke(t, lease, "execute_procedure", map[string]any{"procedure_name": "nope"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ObjectNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteFunction_ScalarIsQualified(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery(`SELECT type FROM sys\.objects`).
		WithArgs("Add", "FN", "IF", "TF").
		WillReturnRows(sqlmock.NewRows([]string{"type"}).AddRow("FN"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT [dbo].[Add](@p1, @p2) AS result")).
		WithArgs("1", "2").
		WillReturnRows(sqlmock.NewRows([]string{"result"}).AddRow(3))

	p, err := invoke(t, lease, "execute_function", map[string]any{
		"function_name": "Add",
		"parameters":    []any{"1", "2"},
	})
	require.NoError(t, err)
	require.Len(t, p.Rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeView_NullDefinition(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery("OBJECT_DEFINITION").
		WithArgs("v_missing").
		WillReturnRows(sqlmock.NewRows([]string{"definition"}).AddRow(nil))

	_, err := invoke(t, lease, "describe_view", map[string]any{"view_name": "v_missing"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ObjectNotFound))
}

func TestIndexAnalysis_FragmentedDefaultThreshold(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery(regexp.QuoteMeta("s.avg_fragmentation_in_percent >= @p1")).
		WithArgs(10.0).
		WillReturnRows(sqlmock.NewRows([]string{"index_name", "fragmentation_percent"}).AddRow("IX_A", 42.5))

	p, err := invoke(t, lease, "index_analysis", map[string]any{"action": "fragmented"})
	require.NoError(t, err)
	require.Len(t, p.Rows, 1)
	assert.Equal(t, "IX_A", p.Rows[0].Get("index_name"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexAnalysis_RejectsUnknownAction(t *testing.T) {
	desc := operation(t, &dialect.SQLServer{}, "index_analysis")
	_, err := schema.Validate(desc.Fields, map[string]any{"action": "everything"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InvalidEnumValue))
}

func TestPerformanceStats_SlowQueriesDefaults(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT TOP (@p1)")).
		WithArgs(int64(20), int64(1000)).
		WillReturnRows(sqlmock.NewRows([]string{"avg_elapsed_ms", "query_text"}).AddRow(1500.0, "SELECT 1"))

	p, err := invoke(t, lease, "performance_stats", map[string]any{"action": "slow_queries"})
	require.NoError(t, err)
	require.Len(t, p.Rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPerformanceStats_TopNOutOfRange(t *testing.T) {
	desc := operation(t, &dialect.SQLServer{}, "performance_stats")
	_, err := schema.Validate(desc.Fields, map[string]any{"action": "slow_queries", "top_n": 500})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.TypeMismatch))
}

func TestPerformanceStats_DeadlockWithoutSystemHealth(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery("FROM sys.dm_xe_sessions").
		WillReturnRows(sqlmock.NewRows([]string{"create_time"}))

	p, err := invoke(t, lease, "performance_stats", map[string]any{"action": "deadlock_graph"})
	require.NoError(t, err)
	assert.Contains(t, p.Text, "system_health")
}

func TestPerformanceStats_NoPreviousBlocking(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	started := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM sys.dm_xe_sessions").
		WillReturnRows(sqlmock.NewRows([]string{"create_time"}).AddRow(started))
	mock.ExpectQuery("blocked_process_report").
		WithArgs(int64(6), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"event_time", "duration_seconds", "report"}))

	p, err := invoke(t, lease, "performance_stats", map[string]any{"action": "previous_blocking", "hours_back": 6})
	require.NoError(t, err)
	assert.Contains(t, p.Text, "last 6 hours")
	assert.Contains(t, p.Text, "2026-10-01T08:00:00Z")
}

func TestPerformanceStats_DatabaseStatsAppendsTopQueries(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery("FROM sys.dm_os_sys_info").
		WillReturnRows(sqlmock.NewRows([]string{"section", "metric", "value"}).
			AddRow("cpu_memory", "logical_cpus", "8"))
	mock.ExpectQuery("FROM sys.dm_exec_query_stats").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"execution_count", "total_cpu_ms"}).AddRow(10, 250))

	p, err := invoke(t, lease, "performance_stats", map[string]any{"action": "database_stats", "top_queries_count": 2})
	require.NoError(t, err)
	require.Len(t, p.Rows, 3)
	assert.Equal(t, "top_query_1", p.Rows[1].Get("section"))
	assert.Equal(t, "execution_count", p.Rows[1].Get("metric"))
	assert.Equal(t, "250", p.Rows[2].Get("value"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPerformanceStats_DatabaseStatsWithoutQueries(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery("FROM sys.dm_os_sys_info").
		WillReturnRows(sqlmock.NewRows([]string{"section", "metric", "value"}).
			AddRow("cpu_memory", "logical_cpus", "8"))

	p, err := invoke(t, lease, "performance_stats", map[string]any{"action": "database_stats", "include_query_stats": false})
	require.NoError(t, err)
	assert.Len(t, p.Rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCall(t *testing.T) {
	stmt, args := call("EXEC [p]", " ", "", nil)
	assert.Equal(t, "EXEC [p]", stmt)
	assert.Empty(t, args)

	stmt, args = call("SELECT * FROM [dbo].[f]", "(", ")", nil)
	assert.Equal(t, "SELECT * FROM [dbo].[f]()", stmt)
	assert.Empty(t, args)

	stmt, args = call("EXEC [p]", " ", "", []string{"a", "b", "c"})
	assert.Equal(t, "EXEC [p] @p1, @p2, @p3", stmt)
	assert.Equal(t, []any{"a", "b", "c"}, args)
}

func TestSQLite_TableLifecycle(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	pool := conn.New(db, &dialect.SQLite{})
	lease, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(lease)

	p, err := invoke(t, lease, "create_table", map[string]any{"sql": "CREATE TABLE T (ID INT)"})
	require.NoError(t, err)
	assert.Equal(t, "Table created successfully", p.Text)

	p, err = invoke(t, lease, "list_tables", nil)
	require.NoError(t, err)
	require.Len(t, p.Rows, 1)
	assert.Equal(t, "T", p.Rows[0].Get("table_name"))

	p, err = invoke(t, lease, "describe_table", map[string]any{"table_name": "T"})
	require.NoError(t, err)
	require.Len(t, p.Rows, 1)

	p, err = invoke(t, lease, "table_size", map[string]any{"table_name": "T"})
	require.NoError(t, err)
	require.Len(t, p.Rows, 1)
	assert.EqualValues(t, 0, p.Rows[0].Get("row_count"))

	_, err = invoke(t, lease, "table_size", map[string]any{"table_name": "Missing"})
	assert.True(t, apperr.Is(err, apperr.ObjectNotFound))

	_, err = invoke(t, lease, "delete_view", map[string]any{"view_name": "T"})
	assert.True(t, apperr.Is(err, apperr.ObjectNotFound), "a table is not a view")

	_, err = invoke(t, lease, "create_index", map[string]any{"index_script": "CREATE INDEX IX_T_ID ON T (ID)"})
	require.NoError(t, err)

	p, err = invoke(t, lease, "delete_index", map[string]any{"index_name": "IX_T_ID", "table_name": "T"})
	require.NoError(t, err)
	assert.Contains(t, p.Text, "IX_T_ID")

	_, err = invoke(t, lease, "delete_index", map[string]any{"index_name": "IX_T_ID", "table_name": "T"})
	assert.True(t, apperr.Is(err, apperr.ObjectNotFound))

	_, err = invoke(t, lease, "drop_table", map[string]any{"sql": "DROP TABLE T"})
	require.NoError(t, err)

	p, err = invoke(t, lease, "list_tables", nil)
	require.NoError(t, err)
	assert.Empty(t, p.Rows)
}

func TestListObjects_SchemaFilter(t *testing.T) {
	lease, mock := mockLease(t, &dialect.SQLServer{})
	mock.ExpectQuery("FROM sys.objects").
		WithArgs(0, "sales").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name", "object_name", "object_type"}).
			AddRow("sales", "Orders", "USER_TABLE").
			AddRow("sales", "GetOrder", "SQL_STORED_PROCEDURE"))

	p, err := invoke(t, lease, "list_objects", map[string]any{"schema_name": "sales"})
	require.NoError(t, err)
	require.Len(t, p.Rows, 2)
	assert.Equal(t, "SQL_STORED_PROCEDURE", p.Rows[1].Get("object_type"))

	mock.ExpectQuery("FROM sys.schemas").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("dbo").AddRow("sales"))
	p, err = invoke(t, lease, "list_schemas", nil)
	require.NoError(t, err)
	assert.Len(t, p.Rows, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
