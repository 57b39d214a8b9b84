package handlers

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
	"github.com/shakram02/go-mcp-mssql/internal/registry"
	"github.com/shakram02/go-mcp-mssql/internal/result"
	"github.com/shakram02/go-mcp-mssql/internal/schema"
	"github.com/shakram02/go-mcp-mssql/internal/sqlguard"
)

const (
	defaultFragmentation = 10.0
	rebuildThreshold     = 30
	reorganizeThreshold  = 10
)

func (o *ops) indexOps() []registry.Descriptor {
	indexAndTable := []schema.Field{
		requiredString("index_name", "Name of the index"),
		requiredString("table_name", "Table the index belongs to"),
	}
	descs := []registry.Descriptor{
		{
			Name:        "list_indexes",
			Description: "List indexes, for one table or the whole database",
			Family:      dialect.FamilyIndex,
			Fields:      []schema.Field{optionalString("table_name", "Restrict to this table")},
			ReadOnly:    true,
			Handler:     o.listIndexes,
		},
		{
			Name:        "describe_index",
			Description: "Get the columns and properties of an index",
			Family:      dialect.FamilyIndex,
			Fields:      indexAndTable,
			ReadOnly:    true,
			Handler:     o.describeIndex,
		},
		{
			Name:        "create_index",
			Description: "Create an index with a CREATE INDEX script",
			Family:      dialect.FamilyIndex,
			Fields:      []schema.Field{requiredString("index_script", "CREATE INDEX script")},
			Intent:      sqlguard.Create,
			SQLField:    "index_script",
			Handler:     runScript("index_script", "Index created successfully"),
		},
		{
			Name:        "delete_index",
			Description: "Drop an index from a table",
			Family:      dialect.FamilyIndex,
			Fields:      indexAndTable,
			Handler:     o.deleteIndex,
		},
	}
	if o.d.Name() != "sqlserver" {
		return descs
	}
	return append(descs,
		registry.Descriptor{
			Name:        "index_usage_stats",
			Description: "Show seeks, scans, lookups and updates per index",
			Family:      dialect.FamilyIndex,
			Fields:      []schema.Field{optionalString("table_name", "Restrict to this table")},
			ReadOnly:    true,
			Handler:     o.indexUsageStats,
		},
		registry.Descriptor{
			Name:        "index_analysis",
			Description: "Find unused indexes, missing index recommendations or fragmented indexes",
			Family:      dialect.FamilyIndex,
			Fields: []schema.Field{
				{
					Name:        "action",
					Description: "Analysis to run",
					Kind:        schema.String,
					Required:    true,
					Enum:        []string{"unused", "missing_recommendations", "fragmented"},
				},
				{
					Name:        "fragmentation_threshold",
					Description: "Minimum fragmentation percent for the fragmented action",
					Kind:        schema.OptionalNumber,
					Default:     defaultFragmentation,
				},
			},
			ReadOnly: true,
			Handler:  o.indexAnalysis,
		},
	)
}

func (o *ops) listIndexes(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	q, a, err := o.d.ListIndexes(args.String("table_name"))
	return o.built(ctx, lease, q, a, err)
}

func (o *ops) describeIndex(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	index, table := args.String("index_name"), args.String("table_name")
	q, a, err := o.d.DescribeIndex(index, table)
	p, err := o.built(ctx, lease, q, a, err)
	if err != nil {
		return result.Payload{}, err
	}
	if len(p.Rows) == 0 {
		return result.Payload{}, notFound("index", table+"."+index)
	}
	return p, nil
}

func (o *ops) deleteIndex(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	index, table := args.String("index_name"), args.String("table_name")
	q, a, err := o.d.DescribeIndex(index, table)
	if err != nil {
		return result.Payload{}, err
	}
	found, err := exists(ctx, lease, q, a...)
	if err != nil {
		return result.Payload{}, err
	}
	if !found {
		return result.Payload{}, notFound("index", table+"."+index)
	}
	if _, err := lease.ExecContext(ctx, o.d.DropIndex(index, table)); err != nil {
		return result.Payload{}, err
	}
	return result.TextPayload(fmt.Sprintf("Index %s on %s deleted successfully", index, table)), nil
}

func (o *ops) indexUsageStats(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	b := mssql.
		Select(
			"OBJECT_SCHEMA_NAME(i.object_id) AS schema_name",
			"OBJECT_NAME(i.object_id) AS table_name",
			"i.name AS index_name",
			"i.type_desc AS index_type",
			"ISNULL(s.user_seeks, 0) AS user_seeks",
			"ISNULL(s.user_scans, 0) AS user_scans",
			"ISNULL(s.user_lookups, 0) AS user_lookups",
			"ISNULL(s.user_updates, 0) AS user_updates",
			"ISNULL(s.user_seeks + s.user_scans + s.user_lookups, 0) AS total_reads",
			`CASE
				WHEN s.user_seeks + s.user_scans + s.user_lookups = 0 AND s.user_updates > 0 THEN 'Unused (Write Only)'
				WHEN ISNULL(s.user_seeks + s.user_scans + s.user_lookups + s.user_updates, 0) = 0 THEN 'Never Used'
				ELSE 'Active'
			END AS usage_status`,
			"s.last_user_seek",
			"s.last_user_scan",
			"s.last_user_lookup",
			"s.last_user_update",
		).
		From("sys.indexes i").
		LeftJoin("sys.dm_db_index_usage_stats s ON i.object_id = s.object_id AND i.index_id = s.index_id AND s.database_id = DB_ID()").
		Where("i.object_id > 100").
		Where(sq.Eq{"i.is_hypothetical": 0, "i.is_disabled": 0}).
		Where(sq.NotEq{"OBJECT_SCHEMA_NAME(i.object_id)": []string{"sys", "INFORMATION_SCHEMA"}})
	if t := args.String("table_name"); t != "" {
		b = b.Where(sq.Expr("i.object_id = OBJECT_ID(?)", t))
	}
	q, a, err := b.OrderBy("total_reads DESC", "user_updates DESC").ToSql()
	return o.built(ctx, lease, q, a, err)
}

func (o *ops) indexAnalysis(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	switch args.String("action") {
	case "unused":
		return o.rows(ctx, lease, unusedIndexesSQL)
	case "missing_recommendations":
		return o.rows(ctx, lease, missingIndexesSQL)
	default: // fragmented
		threshold, ok := args.Number("fragmentation_threshold")
		if !ok {
			threshold = defaultFragmentation
		}
		return o.fragmentedIndexes(ctx, lease, threshold)
	}
}

func (o *ops) fragmentedIndexes(ctx context.Context, lease *conn.Lease, threshold float64) (result.Payload, error) {
	q, a, err := mssql.
		Select(
			"OBJECT_SCHEMA_NAME(i.object_id) AS schema_name",
			"OBJECT_NAME(i.object_id) AS table_name",
			"i.name AS index_name",
			"i.type_desc AS index_type",
			"s.avg_fragmentation_in_percent AS fragmentation_percent",
			"s.page_count",
			"s.record_count",
			fmt.Sprintf(`CASE
				WHEN s.avg_fragmentation_in_percent >= %d THEN 'REBUILD'
				WHEN s.avg_fragmentation_in_percent >= %d THEN 'REORGANIZE'
				ELSE 'OK'
			END AS recommended_action`, rebuildThreshold, reorganizeThreshold),
		).
		From("sys.dm_db_index_physical_stats(DB_ID(), NULL, NULL, NULL, 'LIMITED') s").
		Join("sys.indexes i ON s.object_id = i.object_id AND s.index_id = i.index_id").
		Where(sq.GtOrEq{"s.avg_fragmentation_in_percent": threshold}).
		Where("s.page_count > 8").
		Where("i.name IS NOT NULL").
		Where("OBJECTPROPERTY(i.object_id, 'IsUserTable') = 1").
		OrderBy("s.avg_fragmentation_in_percent DESC", "s.page_count DESC").
		ToSql()
	return o.built(ctx, lease, q, a, err)
}

const unusedIndexesSQL = `
SELECT
    OBJECT_SCHEMA_NAME(i.object_id) AS schema_name,
    OBJECT_NAME(i.object_id) AS table_name,
    i.name AS index_name,
    s.user_seeks + s.user_scans + s.user_lookups + s.user_updates AS total_accesses
FROM sys.dm_db_index_usage_stats s
INNER JOIN sys.indexes i ON s.object_id = i.object_id AND s.index_id = i.index_id
WHERE OBJECTPROPERTY(i.object_id, 'IsUserTable') = 1
  AND s.database_id = DB_ID()
  AND i.type_desc IN ('CLUSTERED', 'NONCLUSTERED')
  AND (s.user_seeks + s.user_scans + s.user_lookups) = 0
ORDER BY total_accesses ASC`

const missingIndexesSQL = `
SELECT
    OBJECT_NAME(mid.object_id, mid.database_id) AS table_name,
    migs.user_seeks,
    migs.user_scans,
    mid.equality_columns,
    mid.inequality_columns,
    mid.included_columns,
    'CREATE INDEX IX_' + OBJECT_NAME(mid.object_id, mid.database_id) + '_missing_' +
    REPLACE(REPLACE(REPLACE(ISNULL(mid.equality_columns, '') + ISNULL(mid.inequality_columns, ''), ', ', '_'), '[', ''), ']', '')
    + ' ON ' + OBJECT_SCHEMA_NAME(mid.object_id, mid.database_id) + '.' + OBJECT_NAME(mid.object_id, mid.database_id)
    + ' (' + ISNULL(mid.equality_columns, '')
    + CASE WHEN mid.inequality_columns IS NOT NULL AND mid.inequality_columns <> '' THEN
        CASE WHEN mid.equality_columns IS NOT NULL AND mid.equality_columns <> '' THEN ',' ELSE '' END + mid.inequality_columns
      ELSE '' END + ')'
    + CASE WHEN mid.included_columns IS NOT NULL AND mid.included_columns <> '' THEN
        ' INCLUDE (' + mid.included_columns + ')'
      ELSE '' END AS create_index_statement
FROM sys.dm_db_missing_index_groups mig
INNER JOIN sys.dm_db_missing_index_group_stats migs ON mig.index_group_handle = migs.group_handle
INNER JOIN sys.dm_db_missing_index_details mid ON mig.index_handle = mid.index_handle
WHERE mid.database_id = DB_ID()
ORDER BY migs.user_seeks DESC`
