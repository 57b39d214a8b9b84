package dialect

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/config"
)

// Postgres implements Dialect for PostgreSQL via lib/pq.
type Postgres struct{}

func (d *Postgres) Name() string       { return "postgres" }
func (d *Postgres) DriverName() string { return "postgres" }
func (d *Postgres) URIScheme() string  { return "postgres" }

func (d *Postgres) Families() []Family {
	return []Family{FamilyQuery, FamilyTable, FamilyView, FamilyIndex, FamilySchema}
}

func (d *Postgres) BuildDSN(src config.Source) (string, error) {
	vals, err := config.Require(src,
		config.KeyPostgresHost, config.KeyPostgresPort, config.KeyPostgresDatabase,
		config.KeyPostgresUser, config.KeyPostgresPassword)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("sslmode", config.Lookup(src, config.KeyPostgresSSLMode, "prefer"))
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(vals[config.KeyPostgresUser], vals[config.KeyPostgresPassword]),
		Host:     net.JoinHostPort(vals[config.KeyPostgresHost], vals[config.KeyPostgresPort]),
		Path:     "/" + vals[config.KeyPostgresDatabase],
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func (d *Postgres) QuoteIdent(name string) string { return quoteParts(name, `"`, `"`) }

func (d *Postgres) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// ClassifyError maps SQLSTATE codes onto the taxonomy.
func (d *Postgres) ClassifyError(err error) (apperr.Kind, bool) {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return "", false
	}
	switch {
	case pe.Code.Class() == "23":
		return apperr.ConstraintViolation, true
	case pe.Code == "42P07": // duplicate_table
		return apperr.ConstraintViolation, true
	case pe.Code == "42P01", pe.Code == "42883", pe.Code == "42704", pe.Code == "3F000":
		return apperr.ObjectNotFound, true
	case pe.Code == "57014", pe.Code == "55P03":
		return apperr.Timeout, true
	}
	return apperr.QueryError, true
}

func (d *Postgres) RemoveStringsAndComments(sql string) string {
	return lexRules{nestedComments: true, dollarQuotes: true, identQuotes: []byte{'"'}}.removeStringsAndComments(sql)
}

func (d *Postgres) schemaFilter(b sq.SelectBuilder, column, schema string) sq.SelectBuilder {
	if schema == "" {
		return b.Where(column + " = current_schema()")
	}
	return b.Where(sq.Eq{column: schema})
}

func (d *Postgres) ListTables() (string, []any, error) {
	b := d.builder().
		Select("table_schema AS schema_name", "table_name").
		From("information_schema.tables").
		Where(sq.Eq{"table_type": "BASE TABLE"})
	return d.schemaFilter(b, "table_schema", "").OrderBy("table_name").ToSql()
}

func (d *Postgres) ListRelations() (string, []any, error) {
	b := d.builder().
		Select("table_name AS name", "table_type AS kind").
		From("information_schema.tables").
		Where(sq.Eq{"table_type": []string{"BASE TABLE", "VIEW"}})
	return d.schemaFilter(b, "table_schema", "").OrderBy("table_type", "table_name").ToSql()
}

func (d *Postgres) RelationKind(name string) (string, []any, error) {
	schema, object := splitQualified(name)
	b := d.builder().
		Select("table_type AS kind").
		From("information_schema.tables").
		Where(sq.Eq{"table_name": object})
	return d.schemaFilter(b, "table_schema", schema).ToSql()
}

func (d *Postgres) DescribeTable(table string) (string, []any, error) {
	schema, object := splitQualified(table)
	b := d.builder().
		Select(
			"column_name",
			"data_type",
			"is_nullable",
			"column_default",
			"character_maximum_length AS max_length",
		).
		From("information_schema.columns").
		Where(sq.Eq{"table_name": object})
	return d.schemaFilter(b, "table_schema", schema).OrderBy("ordinal_position").ToSql()
}

func (d *Postgres) TableSize(table string) (string, []any, error) {
	return d.builder().
		Select(
			"c.relname AS table_name",
			"c.reltuples::bigint AS row_count",
			"ROUND(pg_total_relation_size(c.oid) / 1024.0 / 1024.0, 2) AS total_size_mb",
			"ROUND(pg_relation_size(c.oid) / 1024.0 / 1024.0, 2) AS used_size_mb",
		).
		From("pg_class c").
		Where(sq.Expr("c.oid = to_regclass(?)", table)).
		Where(sq.Eq{"c.relkind": []string{"r", "p"}}).
		ToSql()
}

func (d *Postgres) SampleRows(name string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", d.QuoteIdent(name), limit)
}

func (d *Postgres) ListViews() (string, []any, error) {
	b := d.builder().
		Select("table_schema AS schema_name", "table_name AS view_name").
		From("information_schema.views")
	return d.schemaFilter(b, "table_schema", "").OrderBy("table_name").ToSql()
}

func (d *Postgres) ViewDefinition(view string) (string, []any, error) {
	return d.builder().
		Select().
		Column(sq.Expr("pg_get_viewdef(to_regclass(?), true) AS definition", view)).
		ToSql()
}

func (d *Postgres) ListIndexes(table string) (string, []any, error) {
	b := d.builder().
		Select("schemaname AS schema_name", "tablename AS table_name", "indexname AS index_name", "indexdef AS definition").
		From("pg_indexes")
	b = d.schemaFilter(b, "schemaname", "")
	return whereOptional(b, "tablename", table).OrderBy("tablename", "indexname").ToSql()
}

func (d *Postgres) DescribeIndex(index, table string) (string, []any, error) {
	b := d.builder().
		Select("schemaname AS schema_name", "tablename AS table_name", "indexname AS index_name", "indexdef AS definition").
		From("pg_indexes").
		Where(sq.Eq{"indexname": index, "tablename": table})
	return d.schemaFilter(b, "schemaname", "").ToSql()
}

// DropIndex ignores table: Postgres index names are unique per schema.
func (d *Postgres) DropIndex(index, _ string) string {
	return "DROP INDEX " + d.QuoteIdent(index)
}

func (d *Postgres) ListSchemas() (string, []any, error) {
	return d.builder().
		Select("schema_name").
		From("information_schema.schemata").
		OrderBy("schema_name").
		ToSql()
}

func (d *Postgres) ListObjects(schema string) (string, []any, error) {
	b := d.builder().
		Select("table_schema AS schema_name", "table_name AS object_name", "table_type AS object_type").
		From("information_schema.tables").
		Where(sq.NotEq{"table_schema": []string{"pg_catalog", "information_schema"}})
	return whereOptional(b, "table_schema", schema).OrderBy("table_schema", "table_name").ToSql()
}
