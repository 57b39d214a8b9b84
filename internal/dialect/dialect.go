// Package dialect holds the database-specific pieces of the gateway:
// driver names, DSN construction, catalog queries, identifier quoting and
// driver error classification. Each supported database implements Dialect.
package dialect

import (
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/config"
)

// Family groups operations by the kind of database object they manage.
type Family string

const (
	FamilyQuery       Family = "query"
	FamilyTable       Family = "table"
	FamilyView        Family = "view"
	FamilyProcedure   Family = "procedure"
	FamilyFunction    Family = "function"
	FamilyIndex       Family = "index"
	FamilySchema      Family = "schema"
	FamilyPerformance Family = "performance"
)

// RelationKind distinguishes the objects a resource URI may name.
type RelationKind string

const (
	KindTable RelationKind = "table"
	KindView  RelationKind = "view"
)

// NormalizeRelationKind maps catalog spellings ("BASE TABLE", "VIEW",
// "table", ...) onto RelationKind. Unknown spellings return "".
func NormalizeRelationKind(s string) RelationKind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BASE TABLE", "TABLE", "SYSTEM VERSIONED":
		return KindTable
	case "VIEW", "SYSTEM VIEW":
		return KindView
	}
	return ""
}

// Dialect defines the contract for database-specific behavior.
type Dialect interface {
	// Name is the configuration name ("sqlserver", "postgres", ...).
	Name() string

	// DriverName returns the database/sql driver name.
	DriverName() string

	// URIScheme returns the resource URI scheme.
	URIScheme() string

	// BuildDSN constructs a DSN from settings, listing every missing key.
	BuildDSN(src config.Source) (string, error)

	// Families lists the operation families this database supports.
	Families() []Family

	// QuoteIdent quotes a possibly schema-qualified identifier.
	QuoteIdent(name string) string

	// ClassifyError maps a driver error onto the taxonomy; ok is false
	// when the error is not recognized.
	ClassifyError(err error) (kind apperr.Kind, ok bool)

	// RemoveStringsAndComments strips string literals and comments from SQL
	// for keyword detection.
	RemoveStringsAndComments(sql string) string

	Catalog
}

// Catalog builds the metadata queries shared by handlers and the resource
// resolver. Every builder returns SQL and its bound arguments.
type Catalog interface {
	ListTables() (string, []any, error)
	// ListRelations returns (name, kind) rows for tables and views.
	ListRelations() (string, []any, error)
	// RelationKind returns a single kind column for name, no rows if absent.
	RelationKind(name string) (string, []any, error)
	DescribeTable(table string) (string, []any, error)
	TableSize(table string) (string, []any, error)
	SampleRows(name string, limit int) string

	ListViews() (string, []any, error)
	// ViewDefinition returns one definition column, NULL or no rows if absent.
	ViewDefinition(view string) (string, []any, error)

	// ListIndexes lists indexes of table, or of every table when table is "".
	ListIndexes(table string) (string, []any, error)
	DescribeIndex(index, table string) (string, []any, error)
	DropIndex(index, table string) string

	ListSchemas() (string, []any, error)
	ListObjects(schema string) (string, []any, error)
}

// Supports reports whether d exposes family.
func Supports(d Dialect, family Family) bool {
	return slices.Contains(d.Families(), family)
}

// New returns the dialect registered under name.
func New(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlserver", "mssql":
		return &SQLServer{}, nil
	case "postgres", "postgresql":
		return &Postgres{}, nil
	case "mysql":
		return &MySQL{}, nil
	case "sqlite", "sqlite3":
		return &SQLite{}, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q (want sqlserver, postgres, mysql or sqlite)", name)
}

// splitQualified splits "schema.object" into its parts, dropping any
// surrounding quote characters. An unqualified name has an empty schema.
func splitQualified(name string) (schema, object string) {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 1 {
		return "", unquote(parts[0])
	}
	return unquote(parts[0]), unquote(parts[1])
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch {
		case s[0] == '[' && s[len(s)-1] == ']',
			s[0] == '"' && s[len(s)-1] == '"',
			s[0] == '`' && s[len(s)-1] == '`':
			return s[1 : len(s)-1]
		}
	}
	return s
}

// quoteParts quotes each dotted part of name with open/end, doubling any
// embedded end character.
func quoteParts(name string, open, end string) string {
	schema, object := splitQualified(name)
	q := func(s string) string { return open + strings.ReplaceAll(s, end, end+end) + end }
	if schema == "" {
		return q(object)
	}
	return q(schema) + "." + q(object)
}

// whereOptional adds an equality filter only when value is non-empty.
func whereOptional(b sq.SelectBuilder, column, value string) sq.SelectBuilder {
	if value == "" {
		return b
	}
	return b.Where(sq.Eq{column: value})
}
