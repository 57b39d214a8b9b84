package dialect

import (
	"errors"
	"fmt"
	"net"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/config"
)

// MySQL implements Dialect for MySQL and MariaDB via go-sql-driver/mysql.
type MySQL struct{}

func (d *MySQL) Name() string       { return "mysql" }
func (d *MySQL) DriverName() string { return "mysql" }
func (d *MySQL) URIScheme() string  { return "mysql" }

func (d *MySQL) Families() []Family {
	return []Family{FamilyQuery, FamilyTable, FamilyView, FamilyIndex, FamilySchema}
}

func (d *MySQL) BuildDSN(src config.Source) (string, error) {
	vals, err := config.Require(src,
		config.KeyMySQLHost, config.KeyMySQLPort, config.KeyMySQLDatabase,
		config.KeyMySQLUser, config.KeyMySQLPassword)
	if err != nil {
		return "", err
	}

	cfg := mysql.NewConfig()
	cfg.User = vals[config.KeyMySQLUser]
	cfg.Passwd = vals[config.KeyMySQLPassword]
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(vals[config.KeyMySQLHost], vals[config.KeyMySQLPort])
	cfg.DBName = vals[config.KeyMySQLDatabase]
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (d *MySQL) QuoteIdent(name string) string { return quoteParts(name, "`", "`") }

func (d *MySQL) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// ClassifyError maps MySQL server error numbers onto the taxonomy.
func (d *MySQL) ClassifyError(err error) (apperr.Kind, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return "", false
	}
	switch me.Number {
	case 1051, 1091, 1146, 1305, 1049:
		return apperr.ObjectNotFound, true
	case 1048, 1050, 1061, 1062, 1451, 1452:
		return apperr.ConstraintViolation, true
	case 1205, 3024:
		return apperr.Timeout, true
	}
	return apperr.QueryError, true
}

func (d *MySQL) RemoveStringsAndComments(sql string) string {
	return lexRules{
		hashComments:     true,
		backslashEscapes: true,
		doubleQuoteIsStr: true,
		identQuotes:      []byte{'`'},
	}.removeStringsAndComments(sql)
}

func (d *MySQL) ListTables() (string, []any, error) {
	return d.builder().
		Select("table_schema AS schema_name", "table_name AS table_name").
		From("information_schema.tables").
		Where("table_schema = DATABASE()").
		Where(sq.Eq{"table_type": "BASE TABLE"}).
		OrderBy("table_name").
		ToSql()
}

func (d *MySQL) ListRelations() (string, []any, error) {
	return d.builder().
		Select("table_name AS name", "table_type AS kind").
		From("information_schema.tables").
		Where("table_schema = DATABASE()").
		Where(sq.Eq{"table_type": []string{"BASE TABLE", "VIEW"}}).
		OrderBy("table_type", "table_name").
		ToSql()
}

func (d *MySQL) schemaFilter(b sq.SelectBuilder, schema string) sq.SelectBuilder {
	if schema == "" {
		return b.Where("table_schema = DATABASE()")
	}
	return b.Where(sq.Eq{"table_schema": schema})
}

func (d *MySQL) RelationKind(name string) (string, []any, error) {
	schema, object := splitQualified(name)
	b := d.builder().
		Select("table_type AS kind").
		From("information_schema.tables").
		Where(sq.Eq{"table_name": object})
	return d.schemaFilter(b, schema).ToSql()
}

func (d *MySQL) DescribeTable(table string) (string, []any, error) {
	schema, object := splitQualified(table)
	b := d.builder().
		Select(
			"column_name AS column_name",
			"data_type AS data_type",
			"is_nullable AS is_nullable",
			"column_default AS column_default",
			"character_maximum_length AS max_length",
			"column_key AS column_key",
			"extra AS extra",
		).
		From("information_schema.columns").
		Where(sq.Eq{"table_name": object})
	return d.schemaFilter(b, schema).OrderBy("ordinal_position").ToSql()
}

func (d *MySQL) TableSize(table string) (string, []any, error) {
	schema, object := splitQualified(table)
	b := d.builder().
		Select(
			"table_name AS table_name",
			"table_rows AS row_count",
			"ROUND((data_length + index_length) / 1024 / 1024, 2) AS total_size_mb",
			"ROUND(data_length / 1024 / 1024, 2) AS used_size_mb",
		).
		From("information_schema.tables").
		Where(sq.Eq{"table_name": object, "table_type": "BASE TABLE"})
	return d.schemaFilter(b, schema).ToSql()
}

func (d *MySQL) SampleRows(name string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", d.QuoteIdent(name), limit)
}

func (d *MySQL) ListViews() (string, []any, error) {
	return d.builder().
		Select("table_schema AS schema_name", "table_name AS view_name").
		From("information_schema.views").
		Where("table_schema = DATABASE()").
		OrderBy("table_name").
		ToSql()
}

func (d *MySQL) ViewDefinition(view string) (string, []any, error) {
	schema, object := splitQualified(view)
	b := d.builder().
		Select("view_definition AS definition").
		From("information_schema.views").
		Where(sq.Eq{"table_name": object})
	return d.schemaFilter(b, schema).ToSql()
}

func (d *MySQL) ListIndexes(table string) (string, []any, error) {
	b := d.builder().
		Select(
			"table_name AS table_name",
			"index_name AS index_name",
			"GROUP_CONCAT(column_name ORDER BY seq_in_index) AS columns",
			"MIN(non_unique) = 0 AS is_unique",
			"MIN(index_type) AS index_type",
		).
		From("information_schema.statistics").
		Where("table_schema = DATABASE()")
	return whereOptional(b, "table_name", table).
		GroupBy("table_name", "index_name").
		OrderBy("table_name", "index_name").
		ToSql()
}

func (d *MySQL) DescribeIndex(index, table string) (string, []any, error) {
	return d.builder().
		Select(
			"index_name AS index_name",
			"column_name AS column_name",
			"seq_in_index AS key_ordinal",
			"non_unique = 0 AS is_unique",
			"index_type AS index_type",
		).
		From("information_schema.statistics").
		Where("table_schema = DATABASE()").
		Where(sq.Eq{"index_name": index, "table_name": table}).
		OrderBy("seq_in_index").
		ToSql()
}

func (d *MySQL) DropIndex(index, table string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", d.QuoteIdent(index), d.QuoteIdent(table))
}

func (d *MySQL) ListSchemas() (string, []any, error) {
	return d.builder().
		Select("schema_name AS schema_name").
		From("information_schema.schemata").
		OrderBy("schema_name").
		ToSql()
}

func (d *MySQL) ListObjects(schema string) (string, []any, error) {
	b := d.builder().
		Select("table_schema AS schema_name", "table_name AS object_name", "table_type AS object_type").
		From("information_schema.tables").
		Where(sq.NotEq{"table_schema": []string{"mysql", "information_schema", "performance_schema", "sys"}})
	return whereOptional(b, "table_schema", schema).OrderBy("table_schema", "table_name").ToSql()
}
