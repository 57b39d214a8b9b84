package dialect

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/config"
)

// sqliteConstraint is the primary SQLITE_CONSTRAINT result code.
const sqliteConstraint = 19

// SQLite implements Dialect for SQLite files via modernc.org/sqlite.
type SQLite struct{}

func (d *SQLite) Name() string       { return "sqlite" }
func (d *SQLite) DriverName() string { return "sqlite" }
func (d *SQLite) URIScheme() string  { return "sqlite" }

func (d *SQLite) Families() []Family {
	return []Family{FamilyQuery, FamilyTable, FamilyView, FamilyIndex, FamilySchema}
}

// BuildDSN returns the database path. Foreign keys are switched on so
// constraint violations surface as they would on a server database.
func (d *SQLite) BuildDSN(src config.Source) (string, error) {
	vals, err := config.Require(src, config.KeySQLitePath)
	if err != nil {
		return "", err
	}
	path := vals[config.KeySQLitePath]
	if strings.Contains(path, "_pragma=foreign_keys") {
		return path, nil
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)", nil
}

func (d *SQLite) QuoteIdent(name string) string { return quoteParts(name, `"`, `"`) }

func (d *SQLite) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// ClassifyError maps SQLite result codes and messages onto the taxonomy.
func (d *SQLite) ClassifyError(err error) (apperr.Kind, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return "", false
	}
	if se.Code()&0xff == sqliteConstraint {
		return apperr.ConstraintViolation, true
	}
	msg := se.Error()
	for _, p := range []string{"no such table", "no such view", "no such index", "no such function"} {
		if strings.Contains(msg, p) {
			return apperr.ObjectNotFound, true
		}
	}
	if strings.Contains(msg, "already exists") {
		return apperr.ConstraintViolation, true
	}
	return apperr.QueryError, true
}

func (d *SQLite) RemoveStringsAndComments(sql string) string {
	return lexRules{identQuotes: []byte{'"', '`', '['}}.removeStringsAndComments(sql)
}

func (d *SQLite) ListTables() (string, []any, error) {
	return d.builder().
		Select("'main' AS schema_name", "name AS table_name").
		From("sqlite_master").
		Where(sq.Eq{"type": "table"}).
		Where(sq.NotLike{"name": "sqlite_%"}).
		OrderBy("name").
		ToSql()
}

func (d *SQLite) ListRelations() (string, []any, error) {
	return d.builder().
		Select("name", "type AS kind").
		From("sqlite_master").
		Where(sq.Eq{"type": []string{"table", "view"}}).
		Where(sq.NotLike{"name": "sqlite_%"}).
		OrderBy("type", "name").
		ToSql()
}

func (d *SQLite) RelationKind(name string) (string, []any, error) {
	_, object := splitQualified(name)
	return d.builder().
		Select("type AS kind").
		From("sqlite_master").
		Where(sq.Eq{"type": []string{"table", "view"}, "name": object}).
		ToSql()
}

func (d *SQLite) DescribeTable(table string) (string, []any, error) {
	_, object := splitQualified(table)
	const q = `SELECT name AS column_name, type AS data_type,
       CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END AS is_nullable,
       dflt_value AS column_default, pk AS primary_key
FROM pragma_table_info(?)
ORDER BY cid`
	return q, []any{object}, nil
}

// TableSize counts rows directly; SQLite keeps no per-table size statistics.
func (d *SQLite) TableSize(table string) (string, []any, error) {
	_, object := splitQualified(table)
	return fmt.Sprintf("SELECT ? AS table_name, COUNT(*) AS row_count FROM %s", d.QuoteIdent(object)),
		[]any{object}, nil
}

func (d *SQLite) SampleRows(name string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", d.QuoteIdent(name), limit)
}

func (d *SQLite) ListViews() (string, []any, error) {
	return d.builder().
		Select("'main' AS schema_name", "name AS view_name").
		From("sqlite_master").
		Where(sq.Eq{"type": "view"}).
		OrderBy("name").
		ToSql()
}

func (d *SQLite) ViewDefinition(view string) (string, []any, error) {
	_, object := splitQualified(view)
	return d.builder().
		Select("sql AS definition").
		From("sqlite_master").
		Where(sq.Eq{"type": "view", "name": object}).
		ToSql()
}

func (d *SQLite) ListIndexes(table string) (string, []any, error) {
	b := d.builder().
		Select("tbl_name AS table_name", "name AS index_name", "sql AS definition").
		From("sqlite_master").
		Where(sq.Eq{"type": "index"})
	return whereOptional(b, "tbl_name", table).OrderBy("tbl_name", "name").ToSql()
}

func (d *SQLite) DescribeIndex(index, table string) (string, []any, error) {
	return d.builder().
		Select("m.name AS index_name", "m.tbl_name AS table_name", "ii.seqno AS key_ordinal", "ii.name AS column_name").
		From("sqlite_master m").
		Join("pragma_index_info(m.name) ii").
		Where(sq.Eq{"m.type": "index", "m.name": index, "m.tbl_name": table}).
		OrderBy("ii.seqno").
		ToSql()
}

func (d *SQLite) DropIndex(index, _ string) string {
	return "DROP INDEX " + d.QuoteIdent(index)
}

func (d *SQLite) ListSchemas() (string, []any, error) {
	return d.builder().
		Select("name AS schema_name").
		From("pragma_database_list").
		OrderBy("seq").
		ToSql()
}

func (d *SQLite) ListObjects(schema string) (string, []any, error) {
	b := d.builder().
		Select("schema AS schema_name", "name AS object_name", "type AS object_type").
		From("pragma_table_list").
		Where(sq.NotLike{"name": "sqlite_%"})
	return whereOptional(b, "schema", schema).OrderBy("schema", "name").ToSql()
}
