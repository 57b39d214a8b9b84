package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
	"github.com/shakram02/go-mcp-mssql/internal/registry"
	"github.com/shakram02/go-mcp-mssql/internal/result"
	"github.com/shakram02/go-mcp-mssql/internal/schema"
)

var performanceActions = []string{
	"top_waits",
	"connection_stats",
	"blocking_sessions",
	"deadlock_graph",
	"previous_blocking",
	"database_stats",
	"slow_queries",
	"failed_logins",
	"buffer_pool_stats",
}

func (o *ops) performanceOps() []registry.Descriptor {
	return []registry.Descriptor{{
		Name: "performance_stats",
		Description: "SQL Server diagnostics: wait statistics, sessions, blocking, deadlocks, " +
			"resource usage, slow queries, failed logins and buffer pool health",
		Family: dialect.FamilyPerformance,
		Fields: []schema.Field{
			{Name: "action", Description: "Diagnostic to run", Kind: schema.String, Required: true, Enum: performanceActions},
			{Name: "hours_back", Description: "previous_blocking: hours of history to search", Kind: schema.Integer,
				Default: int64(24), Range: &schema.Range{Min: 1, Max: 24 * 365}},
			{Name: "min_duration_seconds", Description: "previous_blocking: minimum blocking duration", Kind: schema.Integer,
				Default: int64(5), Range: &schema.Range{Min: 0, Max: 86400}},
			{Name: "include_query_stats", Description: "database_stats: include top resource-consuming queries", Kind: schema.Boolean,
				Default: true},
			{Name: "top_queries_count", Description: "database_stats: number of top queries", Kind: schema.Integer,
				Default: int64(10), Range: &schema.Range{Min: 1, Max: 100}},
			{Name: "min_elapsed_ms", Description: "slow_queries: minimum average elapsed time in milliseconds", Kind: schema.Integer,
				Default: int64(1000), Range: &schema.Range{Min: 1, Max: math.MaxInt32}},
			{Name: "top_n", Description: "slow_queries: number of queries to return", Kind: schema.Integer,
				Default: int64(20), Range: &schema.Range{Min: 1, Max: 100}},
			{Name: "time_period_minutes", Description: "failed_logins: minutes of error log history", Kind: schema.Integer,
				Default: int64(120), Range: &schema.Range{Min: 1, Max: 43200}},
		},
		ReadOnly: true,
		Handler:  o.performanceStats,
	}}
}

func (o *ops) performanceStats(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	switch args.String("action") {
	case "top_waits":
		return o.rows(ctx, lease, topWaitsSQL)
	case "connection_stats":
		return o.rows(ctx, lease, connectionStatsSQL)
	case "blocking_sessions":
		return o.rows(ctx, lease, blockingSessionsSQL)
	case "deadlock_graph":
		return o.deadlockGraph(ctx, lease)
	case "previous_blocking":
		return o.previousBlocking(ctx, lease, args.Int("hours_back"), args.Int("min_duration_seconds"))
	case "database_stats":
		return o.databaseStats(ctx, lease, args.Bool("include_query_stats"), args.Int("top_queries_count"))
	case "slow_queries":
		return o.rows(ctx, lease, slowQueriesSQL, args.Int("top_n"), args.Int("min_elapsed_ms"))
	case "failed_logins":
		return o.rows(ctx, lease, failedLoginsSQL, args.Int("time_period_minutes"))
	default: // buffer_pool_stats
		return o.rows(ctx, lease, bufferPoolSQL)
	}
}

// systemHealthStarted returns the creation time of the system_health
// Extended Events session, ok=false when it is not running.
func systemHealthStarted(ctx context.Context, lease *conn.Lease) (time.Time, bool, error) {
	var created time.Time
	err := lease.QueryRowContext(ctx, systemHealthSQL).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return created, true, nil
}

func (o *ops) deadlockGraph(ctx context.Context, lease *conn.Lease) (result.Payload, error) {
	_, ok, err := systemHealthStarted(ctx, lease)
	if err != nil {
		return result.Payload{}, err
	}
	if !ok {
		return result.TextPayload("system_health Extended Events session is not running on this instance."), nil
	}

	graph, found, err := scalarString(ctx, lease, deadlockRingBufferSQL)
	if err == nil {
		if !found {
			return result.TextPayload("No deadlock events found in the system_health session."), nil
		}
		return result.TextPayload(graph), nil
	}

	// Reading the ring buffer needs VIEW SERVER STATE; the error log may
	// still be readable.
	p, logErr := o.rows(ctx, lease, deadlockErrorLogSQL)
	if logErr != nil {
		return result.Payload{}, err
	}
	return p, nil
}

func (o *ops) previousBlocking(ctx context.Context, lease *conn.Lease, hoursBack, minSeconds int64) (result.Payload, error) {
	created, ok, err := systemHealthStarted(ctx, lease)
	if err != nil {
		return result.Payload{}, err
	}
	if !ok {
		return result.TextPayload("system_health Extended Events session is not running on this instance."), nil
	}

	p, err := o.rows(ctx, lease, previousBlockingSQL, hoursBack, minSeconds)
	if err != nil {
		return result.Payload{}, err
	}
	if len(p.Rows) == 0 {
		return result.TextPayload(fmt.Sprintf(
			"No blocking events of %d seconds or more in the last %d hours (system_health session active since %s).",
			minSeconds, hoursBack, created.Format(time.RFC3339))), nil
	}
	return p, nil
}

// databaseStats returns (section, metric, value) rows. Top queries are
// appended as one section per query.
func (o *ops) databaseStats(ctx context.Context, lease *conn.Lease, includeQueries bool, topQueries int64) (result.Payload, error) {
	p, err := o.rows(ctx, lease, databaseStatsSQL)
	if err != nil || !includeQueries {
		return p, err
	}

	q, err := o.rows(ctx, lease, topQueriesSQL, topQueries)
	if err != nil {
		return result.Payload{}, err
	}
	for i, row := range q.Rows {
		section := fmt.Sprintf("top_query_%d", i+1)
		for j, col := range row.Columns {
			p.Rows = append(p.Rows, result.Row{
				Columns: p.Columns,
				Values:  []any{section, col, fmt.Sprint(row.Values[j])},
			})
		}
	}
	return p, nil
}

const topWaitsSQL = `
SELECT TOP 10
    wait_type,
    wait_time_ms / 1000.0 AS wait_time_seconds,
    waiting_tasks_count,
    signal_wait_time_ms / 1000.0 AS signal_wait_time_seconds
FROM sys.dm_os_wait_stats
WHERE wait_type NOT IN (
    'CLR_SEMAPHORE', 'LAZYWRITER_SLEEP', 'RESOURCE_QUEUE', 'SLEEP_TASK',
    'SLEEP_SYSTEMTASK', 'SQLTRACE_BUFFER_FLUSH', 'WAITFOR', 'LOGMGR_QUEUE',
    'REQUEST_FOR_DEADLOCK_SEARCH', 'XE_TIMER_EVENT', 'XE_DISPATCHER_JOIN',
    'BROKER_TO_FLUSH', 'BROKER_TASK_STOP', 'CLR_MANUAL_EVENT', 'CLR_AUTO_EVENT',
    'DISPATCHER_QUEUE_SEMAPHORE', 'FT_IFTS_SCHEDULER_IDLE_WAIT', 'XE_DISPATCHER_WAIT',
    'BROKER_EVENTHANDLER', 'TRACEWRITE', 'XE_BUFFERMGR_ALLPROCESSES_WAIT',
    'SQLTRACE_INCREMENTAL_FLUSH_SLEEP'
)
ORDER BY wait_time_ms DESC`

const connectionStatsSQL = `
SELECT status, COUNT(*) AS session_count
FROM sys.dm_exec_sessions
WHERE is_user_process = 1
GROUP BY status
UNION ALL
SELECT 'blocked', COUNT(*)
FROM sys.dm_exec_requests
WHERE blocking_session_id <> 0`

const blockingSessionsSQL = `
SELECT
    r.blocking_session_id,
    r.session_id AS blocked_session_id,
    r.wait_type,
    r.wait_time,
    r.last_wait_type,
    r.wait_resource,
    t.text AS sql_text
FROM sys.dm_exec_requests r
CROSS APPLY sys.dm_exec_sql_text(r.sql_handle) t
WHERE r.blocking_session_id <> 0
ORDER BY r.wait_time DESC`

const systemHealthSQL = `SELECT create_time FROM sys.dm_xe_sessions WHERE name = 'system_health'`

const deadlockRingBufferSQL = `
SELECT TOP 1 CAST(st.target_data AS NVARCHAR(MAX)) AS deadlock_data
FROM sys.dm_xe_session_targets st
JOIN sys.dm_xe_sessions s ON s.address = st.event_session_address
WHERE s.name = 'system_health'
  AND st.target_name = 'ring_buffer'
  AND CAST(st.target_data AS NVARCHAR(MAX)) LIKE '%xml_deadlock_report%'`

const deadlockErrorLogSQL = `EXEC sp_readerrorlog 0, 1, 'deadlock'`

const previousBlockingSQL = `
SELECT
    x.ev.value('@timestamp', 'datetime2') AS event_time,
    x.ev.value('(data[@name="duration"]/value)[1]', 'bigint') / 1000000 AS duration_seconds,
    CAST(x.ev.query('.') AS NVARCHAR(MAX)) AS report
FROM (
    SELECT CAST(st.target_data AS XML) AS target_data
    FROM sys.dm_xe_session_targets st
    JOIN sys.dm_xe_sessions s ON s.address = st.event_session_address
    WHERE s.name = 'system_health' AND st.target_name = 'ring_buffer'
) t
CROSS APPLY t.target_data.nodes('//RingBufferTarget/event[@name="blocked_process_report"]') AS x(ev)
WHERE x.ev.value('@timestamp', 'datetime2') >= DATEADD(HOUR, -@p1, SYSUTCDATETIME())
  AND x.ev.value('(data[@name="duration"]/value)[1]', 'bigint') >= @p2 * 1000000
ORDER BY event_time DESC`

const databaseStatsSQL = `
SELECT 'cpu_memory' AS section, 'logical_cpus' AS metric, CAST(cpu_count AS NVARCHAR(128)) AS value FROM sys.dm_os_sys_info
UNION ALL SELECT 'cpu_memory', 'hyperthread_ratio', CAST(hyperthread_ratio AS NVARCHAR(128)) FROM sys.dm_os_sys_info
UNION ALL SELECT 'cpu_memory', 'physical_memory_mb', CAST(physical_memory_kb / 1024 AS NVARCHAR(128)) FROM sys.dm_os_sys_info
UNION ALL SELECT 'cpu_memory', 'committed_memory_mb', CAST(committed_kb / 1024 AS NVARCHAR(128)) FROM sys.dm_os_sys_info
UNION ALL SELECT 'cpu_memory', 'target_memory_mb', CAST(committed_target_kb / 1024 AS NVARCHAR(128)) FROM sys.dm_os_sys_info
UNION ALL SELECT 'buffer_pool', 'buffer_pool_mb', CAST(COUNT(*) * 8 / 1024 AS NVARCHAR(128)) FROM sys.dm_os_buffer_descriptors
UNION ALL SELECT 'buffer_pool', 'dirty_pages_mb', CAST(COUNT(*) * 8 / 1024 AS NVARCHAR(128)) FROM sys.dm_os_buffer_descriptors WHERE is_modified = 1
UNION ALL SELECT 'buffer_pool', 'page_life_expectancy_seconds', CAST(cntr_value AS NVARCHAR(128))
    FROM sys.dm_os_performance_counters WHERE counter_name = 'Page life expectancy' AND object_name LIKE '%Buffer Manager%'
UNION ALL SELECT 'io', 'reads', CAST(SUM(num_of_reads) AS NVARCHAR(128)) FROM sys.dm_io_virtual_file_stats(DB_ID(), NULL)
UNION ALL SELECT 'io', 'writes', CAST(SUM(num_of_writes) AS NVARCHAR(128)) FROM sys.dm_io_virtual_file_stats(DB_ID(), NULL)
UNION ALL SELECT 'io', 'read_mb', CAST(SUM(num_of_bytes_read) / 1024 / 1024 AS NVARCHAR(128)) FROM sys.dm_io_virtual_file_stats(DB_ID(), NULL)
UNION ALL SELECT 'io', 'written_mb', CAST(SUM(num_of_bytes_written) / 1024 / 1024 AS NVARCHAR(128)) FROM sys.dm_io_virtual_file_stats(DB_ID(), NULL)
UNION ALL SELECT 'io', 'avg_read_stall_ms', CAST(AVG(io_stall_read_ms) AS NVARCHAR(128)) FROM sys.dm_io_virtual_file_stats(DB_ID(), NULL)
UNION ALL SELECT 'io', 'avg_write_stall_ms', CAST(AVG(io_stall_write_ms) AS NVARCHAR(128)) FROM sys.dm_io_virtual_file_stats(DB_ID(), NULL)
UNION ALL SELECT 'sessions', status, CAST(COUNT(*) AS NVARCHAR(128)) FROM sys.dm_exec_sessions WHERE is_user_process = 1 GROUP BY status
UNION ALL SELECT 'log', 'log_reuse_wait', CAST(log_reuse_wait_desc AS NVARCHAR(128)) FROM sys.databases WHERE database_id = DB_ID()
UNION ALL SELECT 'log', 'log_size_mb', CAST(CAST(SUM(size) * 8.0 / 1024 AS DECIMAL(18,2)) AS NVARCHAR(128)) FROM sys.database_files WHERE type = 1`

const topQueriesSQL = `
SELECT TOP (@p1)
    execution_count,
    total_worker_time / 1000 AS total_cpu_ms,
    total_elapsed_time / 1000 AS total_elapsed_ms,
    total_logical_reads,
    total_physical_reads,
    total_logical_writes
FROM sys.dm_exec_query_stats
ORDER BY total_worker_time DESC`

const slowQueriesSQL = `
SELECT TOP (@p1)
    qs.total_elapsed_time / qs.execution_count / 1000.0 AS avg_elapsed_ms,
    qs.max_elapsed_time / 1000.0 AS max_elapsed_ms,
    qs.execution_count,
    DB_NAME(st.dbid) AS database_name,
    st.text AS query_text
FROM sys.dm_exec_query_stats qs
CROSS APPLY sys.dm_exec_sql_text(qs.sql_handle) st
WHERE qs.execution_count > 0
  AND (qs.total_elapsed_time / qs.execution_count) >= (@p2 * 1000)
ORDER BY avg_elapsed_ms DESC`

// failedLoginsSQL scans the current and six archived error logs.
const failedLoginsSQL = `
SET NOCOUNT ON;
DECLARE @since datetime = DATEADD(MINUTE, -@p1, GETDATE());

IF OBJECT_ID('tempdb..#failed_logins') IS NOT NULL DROP TABLE #failed_logins;
CREATE TABLE #failed_logins (log_date datetime, process_info nvarchar(100), text nvarchar(max));

DECLARE @log int = 0;
WHILE (@log <= 6)
BEGIN
    BEGIN TRY
        INSERT INTO #failed_logins EXEC sp_readerrorlog @log, 1, 'Login failed';
    END TRY
    BEGIN CATCH
    END CATCH
    SET @log = @log + 1;
END

SELECT log_date, process_info, text
FROM #failed_logins
WHERE log_date >= @since
ORDER BY log_date DESC;`

const bufferPoolSQL = `
SELECT
    b.buffer_pool_size_mb,
    b.dirty_pages_mb,
    b.buffer_pool_size_mb - b.dirty_pages_mb AS clean_pages_mb,
    CASE WHEN c.hit_ratio_base > 0 THEN CAST(c.hit_ratio * 100.0 / c.hit_ratio_base AS DECIMAL(5,2)) ELSE 0 END AS cache_hit_ratio,
    c.page_life_expectancy_seconds,
    c.page_reads_per_sec,
    c.page_writes_per_sec,
    c.lazy_writes_per_sec,
    c.checkpoint_pages_per_sec,
    m.total_physical_memory_mb,
    m.committed_memory_mb,
    m.committed_target_mb
FROM (
    SELECT
        COUNT(*) * 8.0 / 1024 AS buffer_pool_size_mb,
        SUM(CASE WHEN is_modified = 1 THEN 1 ELSE 0 END) * 8.0 / 1024 AS dirty_pages_mb
    FROM sys.dm_os_buffer_descriptors
) b
CROSS JOIN (
    SELECT
        MAX(CASE WHEN counter_name = 'Buffer cache hit ratio' THEN cntr_value END) AS hit_ratio,
        MAX(CASE WHEN counter_name = 'Buffer cache hit ratio base' THEN cntr_value END) AS hit_ratio_base,
        MAX(CASE WHEN counter_name = 'Page life expectancy' THEN cntr_value END) AS page_life_expectancy_seconds,
        MAX(CASE WHEN counter_name = 'Page reads/sec' THEN cntr_value END) AS page_reads_per_sec,
        MAX(CASE WHEN counter_name = 'Page writes/sec' THEN cntr_value END) AS page_writes_per_sec,
        MAX(CASE WHEN counter_name = 'Lazy writes/sec' THEN cntr_value END) AS lazy_writes_per_sec,
        MAX(CASE WHEN counter_name = 'Checkpoint pages/sec' THEN cntr_value END) AS checkpoint_pages_per_sec
    FROM sys.dm_os_performance_counters
    WHERE object_name LIKE '%Buffer Manager%'
) c
CROSS JOIN (
    SELECT
        physical_memory_kb / 1024 AS total_physical_memory_mb,
        committed_kb / 1024 AS committed_memory_mb,
        committed_target_kb / 1024 AS committed_target_mb
    FROM sys.dm_os_sys_info
) m`
