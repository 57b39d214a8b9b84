// Package resource resolves scheme://{name}/data identifiers to a CSV
// sample of a table or view.
package resource

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/yosida95/uritemplate/v3"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
	"github.com/shakram02/go-mcp-mssql/internal/result"
)

// DefaultLimit is the number of data rows returned per resource.
const DefaultLimit = 100

const MIMEType = "text/csv"

// Identifier names a table or view. Kind is empty until the catalog has
// been consulted.
type Identifier struct {
	Kind dialect.RelationKind
	Name string
}

// Resolver reads resources through the same lease discipline as operations.
type Resolver struct {
	provider conn.Provider
	dialect  dialect.Dialect
	tmpl     *uritemplate.Template
	limit    int
}

func New(provider conn.Provider, d dialect.Dialect) (*Resolver, error) {
	tmpl, err := uritemplate.New(d.URIScheme() + "://{name}/data")
	if err != nil {
		return nil, fmt.Errorf("invalid resource template: %w", err)
	}
	return &Resolver{provider: provider, dialect: d, tmpl: tmpl, limit: DefaultLimit}, nil
}

// Template returns the URI template advertised to clients.
func (r *Resolver) Template() string { return r.tmpl.Raw() }

// URI returns the identifier string for name.
func (r *Resolver) URI(name string) string {
	uri, err := r.tmpl.Expand(uritemplate.Values{"name": uritemplate.String(name)})
	if err != nil {
		return r.dialect.URIScheme() + "://" + name + "/data"
	}
	return uri
}

// Parse extracts the object name from uri.
func (r *Resolver) Parse(uri string) (Identifier, error) {
	match := r.tmpl.Match(uri)
	if match == nil {
		return Identifier{}, apperr.Newf(apperr.MalformedIdentifier,
			"resource %q does not match %s", uri, r.tmpl.Raw())
	}
	name := match.Get("name").String()
	if name == "" {
		return Identifier{}, apperr.Newf(apperr.MalformedIdentifier, "resource %q has an empty name", uri)
	}
	return Identifier{Name: name}, nil
}

// Read returns a header row plus up to the first limit rows of the
// object named by uri, in no particular order.
func (r *Resolver) Read(ctx context.Context, uri string) (string, error) {
	id, err := r.Parse(uri)
	if err != nil {
		return "", err
	}

	lease, err := r.provider.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer r.provider.Release(lease)

	kind, err := r.kind(ctx, lease, id.Name)
	if err != nil {
		return "", err
	}
	if kind == "" {
		return "", apperr.Newf(apperr.ResourceNotFound, "no table or view named %q", id.Name)
	}

	rows, err := lease.QueryContext(ctx, r.dialect.SampleRows(id.Name, r.limit))
	if err != nil {
		return "", apperr.Wrap(apperr.QueryError, fmt.Sprintf("failed to read %s %q", kind, id.Name), err)
	}
	defer rows.Close()

	p, err := result.ScanRows(rows, r.limit)
	if err != nil {
		return "", apperr.Wrap(apperr.QueryError, fmt.Sprintf("failed to read %s %q", kind, id.Name), err)
	}
	return encodeCSV(p)
}

// List enumerates tables, then views.
func (r *Resolver) List(ctx context.Context) ([]Identifier, error) {
	q, args, err := r.dialect.ListRelations()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	lease, err := r.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer r.provider.Release(lease)

	rows, err := lease.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables, views []Identifier
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, err
		}
		switch dialect.NormalizeRelationKind(kind) {
		case dialect.KindTable:
			tables = append(tables, Identifier{Kind: dialect.KindTable, Name: name})
		case dialect.KindView:
			views = append(views, Identifier{Kind: dialect.KindView, Name: name})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return append(tables, views...), nil
}

func (r *Resolver) kind(ctx context.Context, lease *conn.Lease, name string) (dialect.RelationKind, error) {
	q, args, err := r.dialect.RelationKind(name)
	if err != nil {
		return "", fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := lease.QueryContext(ctx, q, args...)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return "", err
		}
		if kind := dialect.NormalizeRelationKind(k); kind != "" {
			return kind, nil
		}
	}
	return "", rows.Err()
}

func encodeCSV(p result.Payload) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(p.Columns); err != nil {
		return "", err
	}
	record := make([]string, len(p.Columns))
	for _, row := range p.Rows {
		for i, v := range row.Values {
			record[i] = cell(v)
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
