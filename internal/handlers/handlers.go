// Package handlers implements the operations exposed by the gateway, one
// file per object family. Handlers only orchestrate SQL: arguments arrive
// validated and any raw script has already been classified.
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
	"github.com/shakram02/go-mcp-mssql/internal/registry"
	"github.com/shakram02/go-mcp-mssql/internal/result"
	"github.com/shakram02/go-mcp-mssql/internal/schema"
)

// DefaultMaxRows caps row payloads when Options.MaxRows is unset.
const DefaultMaxRows = 10000

// Options tunes handler behavior.
type Options struct {
	MaxRows int
}

// mssql builds SQL for the SQL Server only families.
var mssql = sq.StatementBuilder.PlaceholderFormat(sq.AtP)

type ops struct {
	d       dialect.Dialect
	maxRows int
}

// Operations returns the descriptors d supports, in a stable order.
func Operations(d dialect.Dialect, opts Options) []registry.Descriptor {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	o := &ops{d: d, maxRows: opts.MaxRows}

	var out []registry.Descriptor
	for _, family := range [][]registry.Descriptor{
		o.queryOps(),
		o.tableOps(),
		o.viewOps(),
		o.procedureOps(),
		o.functionOps(),
		o.indexOps(),
		o.schemaOps(),
		o.performanceOps(),
	} {
		for _, desc := range family {
			if dialect.Supports(d, desc.Family) {
				out = append(out, desc)
			}
		}
	}
	return out
}

// Registry builds the registry for d.
func Registry(d dialect.Dialect, opts Options) (*registry.Registry, error) {
	return registry.New(Operations(d, opts)...)
}

func requiredString(name, desc string) schema.Field {
	return schema.Field{Name: name, Description: desc, Kind: schema.String, Required: true}
}

func optionalString(name, desc string) schema.Field {
	return schema.Field{Name: name, Description: desc, Kind: schema.String}
}

// rows runs query and returns its first result set that has columns.
func (o *ops) rows(ctx context.Context, lease *conn.Lease, query string, args ...any) (result.Payload, error) {
	rs, err := lease.QueryContext(ctx, query, args...)
	if err != nil {
		return result.Payload{}, err
	}
	defer rs.Close()

	for {
		cols, err := rs.Columns()
		if err != nil {
			return result.Payload{}, err
		}
		if len(cols) > 0 {
			return result.ScanRows(rs, o.maxRows)
		}
		if !rs.NextResultSet() {
			if err := rs.Err(); err != nil {
				return result.Payload{}, err
			}
			return result.RowsPayload([]string{}, nil), nil
		}
	}
}

// built runs the output of a squirrel-style builder.
func (o *ops) built(ctx context.Context, lease *conn.Lease, query string, args []any, err error) (result.Payload, error) {
	if err != nil {
		return result.Payload{}, fmt.Errorf("failed to build query: %w", err)
	}
	return o.rows(ctx, lease, query, args...)
}

// exists runs query and reports whether it returned a row whose first
// column is non-NULL.
func exists(ctx context.Context, lease *conn.Lease, query string, args ...any) (bool, error) {
	var v any
	err := lease.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// scalarString returns the first column of the first row. ok is false
// when there is no row or the value is NULL.
func scalarString(ctx context.Context, lease *conn.Lease, query string, args ...any) (string, bool, error) {
	var v sql.NullString
	err := lease.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v.String, v.Valid, nil
}

func notFound(kind, name string) error {
	return apperr.Newf(apperr.ObjectNotFound, "%s %q not found", kind, name)
}

// runScript executes the classified script held in field.
func runScript(field, done string) registry.Handler {
	return func(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
		if _, err := lease.ExecContext(ctx, args.String(field)); err != nil {
			return result.Payload{}, err
		}
		return result.TextPayload(done), nil
	}
}
