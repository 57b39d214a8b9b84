package dialect

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/config"
)

// SQLServer implements Dialect for Microsoft SQL Server via go-mssqldb.
type SQLServer struct{}

func (d *SQLServer) Name() string       { return "sqlserver" }
func (d *SQLServer) DriverName() string { return "sqlserver" }
func (d *SQLServer) URIScheme() string  { return "mssql" }

func (d *SQLServer) Families() []Family {
	return []Family{
		FamilyQuery, FamilyTable, FamilyView, FamilyProcedure,
		FamilyFunction, FamilyIndex, FamilySchema, FamilyPerformance,
	}
}

// BuildDSN builds a sqlserver:// URL. MSSQL_SERVER may name an instance as
// host\instance, in which case the port is resolved by the browser service.
// With Trusted_Connection the user and password are omitted so the driver
// uses integrated authentication.
func (d *SQLServer) BuildDSN(src config.Source) (string, error) {
	trusted, err := config.ParseBool(config.Lookup(src, config.KeyMSSQLTrustedConn, "no"))
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.EnvName(config.KeyMSSQLTrustedConn), err)
	}
	trustCert, err := config.ParseBool(config.Lookup(src, config.KeyMSSQLTrustServerCert, "yes"))
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.EnvName(config.KeyMSSQLTrustServerCert), err)
	}

	keys := []string{config.KeyMSSQLServer, config.KeyMSSQLDatabase}
	if !trusted {
		keys = append(keys, config.KeyMSSQLUser, config.KeyMSSQLPassword)
	}
	vals, err := config.Require(src, keys...)
	if err != nil {
		return "", err
	}

	host, instance, _ := strings.Cut(vals[config.KeyMSSQLServer], `\`)
	port := config.Lookup(src, config.KeyMSSQLPort, "1433")
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("%s: invalid port %q", config.EnvName(config.KeyMSSQLPort), port)
	}

	q := url.Values{}
	q.Set("database", vals[config.KeyMSSQLDatabase])
	q.Set("TrustServerCertificate", strconv.FormatBool(trustCert))
	q.Set("app name", "go-mcp-mssql")
	if enc := config.Lookup(src, config.KeyMSSQLEncrypt, ""); enc != "" {
		q.Set("encrypt", enc)
	}

	u := &url.URL{Scheme: "sqlserver", Host: net.JoinHostPort(host, port), RawQuery: q.Encode()}
	if instance != "" {
		u.Host = host
		u.Path = instance
	}
	if !trusted {
		u.User = url.UserPassword(vals[config.KeyMSSQLUser], vals[config.KeyMSSQLPassword])
	}
	return u.String(), nil
}

func (d *SQLServer) QuoteIdent(name string) string { return quoteParts(name, "[", "]") }

func (d *SQLServer) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.AtP)
}

// ClassifyError maps SQL Server error numbers onto the taxonomy.
func (d *SQLServer) ClassifyError(err error) (apperr.Kind, bool) {
	var me mssql.Error
	if !errors.As(err, &me) {
		return "", false
	}
	switch me.Number {
	case 208, // invalid object name
		2812, // could not find stored procedure
		3701, // cannot drop, object does not exist
		4121, // cannot find function
		15009, // object does not exist in database
		15151: // cannot find object, or no permission
		return apperr.ObjectNotFound, true
	case 515, // cannot insert NULL
		547,  // constraint conflict
		1505, // duplicate key while creating unique index
		2601, // duplicate key row in unique index
		2627, // primary key or unique constraint violation
		2714: // object already exists
		return apperr.ConstraintViolation, true
	case 1222: // lock request time out
		return apperr.Timeout, true
	}
	return apperr.QueryError, true
}

func (d *SQLServer) RemoveStringsAndComments(sql string) string {
	return lexRules{nestedComments: true, identQuotes: []byte{'[', '"'}}.removeStringsAndComments(sql)
}

func (d *SQLServer) ListTables() (string, []any, error) {
	return d.builder().
		Select("TABLE_SCHEMA AS schema_name", "TABLE_NAME AS table_name").
		From("INFORMATION_SCHEMA.TABLES").
		Where(sq.Eq{"TABLE_TYPE": "BASE TABLE"}).
		OrderBy("TABLE_SCHEMA", "TABLE_NAME").
		ToSql()
}

func (d *SQLServer) ListRelations() (string, []any, error) {
	return d.builder().
		Select("TABLE_NAME AS name", "TABLE_TYPE AS kind").
		From("INFORMATION_SCHEMA.TABLES").
		Where(sq.Eq{"TABLE_TYPE": []string{"BASE TABLE", "VIEW"}}).
		OrderBy("TABLE_TYPE", "TABLE_NAME").
		ToSql()
}

func (d *SQLServer) RelationKind(name string) (string, []any, error) {
	schema, object := splitQualified(name)
	b := d.builder().
		Select("TABLE_TYPE AS kind").
		From("INFORMATION_SCHEMA.TABLES").
		Where(sq.Eq{"TABLE_NAME": object})
	return whereOptional(b, "TABLE_SCHEMA", schema).ToSql()
}

func (d *SQLServer) DescribeTable(table string) (string, []any, error) {
	schema, object := splitQualified(table)
	b := d.builder().
		Select(
			"COLUMN_NAME AS column_name",
			"DATA_TYPE AS data_type",
			"IS_NULLABLE AS is_nullable",
			"COLUMN_DEFAULT AS column_default",
			"CHARACTER_MAXIMUM_LENGTH AS max_length",
		).
		From("INFORMATION_SCHEMA.COLUMNS").
		Where(sq.Eq{"TABLE_NAME": object})
	return whereOptional(b, "TABLE_SCHEMA", schema).OrderBy("ORDINAL_POSITION").ToSql()
}

// TableSize reads row counts and allocated pages from the catalog; the
// figures are estimates maintained by the engine.
func (d *SQLServer) TableSize(table string) (string, []any, error) {
	schema, object := splitQualified(table)
	b := d.builder().
		Select(
			"t.name AS table_name",
			"SUM(CASE WHEN i.index_id IN (0, 1) AND a.type = 1 THEN p.rows ELSE 0 END) AS row_count",
			"CAST(SUM(a.total_pages) * 8 / 1024.0 AS DECIMAL(10,2)) AS total_size_mb",
			"CAST(SUM(a.used_pages) * 8 / 1024.0 AS DECIMAL(10,2)) AS used_size_mb",
		).
		From("sys.tables t").
		Join("sys.indexes i ON t.object_id = i.object_id").
		Join("sys.partitions p ON t.object_id = p.object_id AND i.index_id = p.index_id").
		Join("sys.allocation_units a ON p.partition_id = a.container_id").
		Where(sq.Eq{"t.name": object})
	return whereOptional(b, "SCHEMA_NAME(t.schema_id)", schema).GroupBy("t.name").ToSql()
}

func (d *SQLServer) SampleRows(name string, limit int) string {
	return fmt.Sprintf("SELECT TOP %d * FROM %s", limit, d.QuoteIdent(name))
}

func (d *SQLServer) ListViews() (string, []any, error) {
	return d.builder().
		Select("TABLE_SCHEMA AS schema_name", "TABLE_NAME AS view_name").
		From("INFORMATION_SCHEMA.TABLES").
		Where(sq.Eq{"TABLE_TYPE": "VIEW"}).
		OrderBy("TABLE_SCHEMA", "TABLE_NAME").
		ToSql()
}

func (d *SQLServer) ViewDefinition(view string) (string, []any, error) {
	return d.builder().
		Select().
		Column(sq.Expr("OBJECT_DEFINITION(OBJECT_ID(?, 'V')) AS definition", view)).
		ToSql()
}

func (d *SQLServer) ListIndexes(table string) (string, []any, error) {
	b := d.builder().
		Select(
			"OBJECT_SCHEMA_NAME(i.object_id) AS schema_name",
			"o.name AS table_name",
			"i.name AS index_name",
			"i.type_desc AS index_type",
			"i.is_unique",
			"i.is_primary_key",
		).
		From("sys.indexes i").
		Join("sys.objects o ON i.object_id = o.object_id").
		Where(sq.Eq{"o.type": "U"}).
		Where("i.name IS NOT NULL")
	return whereOptional(b, "o.name", table).OrderBy("o.name", "i.name").ToSql()
}

func (d *SQLServer) DescribeIndex(index, table string) (string, []any, error) {
	return d.builder().
		Select(
			"i.name AS index_name",
			"i.type_desc AS index_type",
			"i.is_unique",
			"i.is_primary_key",
			"c.name AS column_name",
			"ic.key_ordinal",
			"ic.is_descending_key",
			"ic.is_included_column",
		).
		From("sys.indexes i").
		Join("sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id").
		Join("sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id").
		Where(sq.Eq{"i.name": index}).
		Where(sq.Expr("i.object_id = OBJECT_ID(?)", table)).
		OrderBy("ic.is_included_column", "ic.key_ordinal", "c.name").
		ToSql()
}

func (d *SQLServer) DropIndex(index, table string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", d.QuoteIdent(index), d.QuoteIdent(table))
}

func (d *SQLServer) ListSchemas() (string, []any, error) {
	return d.builder().
		Select("name AS schema_name").
		From("sys.schemas").
		OrderBy("name").
		ToSql()
}

func (d *SQLServer) ListObjects(schema string) (string, []any, error) {
	b := d.builder().
		Select(
			"SCHEMA_NAME(schema_id) AS schema_name",
			"name AS object_name",
			"type_desc AS object_type",
		).
		From("sys.objects").
		Where(sq.Eq{"is_ms_shipped": 0})
	return whereOptional(b, "SCHEMA_NAME(schema_id)", schema).
		OrderBy("SCHEMA_NAME(schema_id)", "name").
		ToSql()
}
