// Package registry holds the immutable table of operations the gateway
// exposes. It is built once at startup and only read afterwards.
package registry

import (
	"context"
	"fmt"
	"slices"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
	"github.com/shakram02/go-mcp-mssql/internal/result"
	"github.com/shakram02/go-mcp-mssql/internal/schema"
	"github.com/shakram02/go-mcp-mssql/internal/sqlguard"
)

// Handler runs one operation on a borrowed connection.
type Handler func(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error)

// Descriptor declares an operation.
type Descriptor struct {
	Name        string
	Description string
	Family      dialect.Family
	Fields      []schema.Field

	// Intent restricts the SQL found in SQLField. None skips classification.
	Intent   sqlguard.Intent
	SQLField string

	Handler Handler

	// ReadOnly is advertised to clients as a hint; it is not enforced.
	ReadOnly bool

	// RefreshesResources marks operations that change the set of tables or views.
	RefreshesResources bool
}

// Registry maps operation names to descriptors.
type Registry struct {
	byName map[string]Descriptor
	order  []string
}

// New builds a registry, rejecting duplicate names, missing handlers and
// SQL fields that are not declared.
func New(descs ...Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("operation with empty name")
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate operation %q", d.Name)
		}
		if d.Handler == nil {
			return nil, fmt.Errorf("operation %q has no handler", d.Name)
		}
		if d.Intent == "" {
			d.Intent = sqlguard.None
		}
		if d.Intent != sqlguard.None {
			if !slices.ContainsFunc(d.Fields, func(f schema.Field) bool { return f.Name == d.SQLField }) {
				return nil, fmt.Errorf("operation %q classifies undeclared field %q", d.Name, d.SQLField)
			}
		}
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// MustNew is New that panics on error, for static tables.
func MustNew(descs ...Descriptor) *Registry {
	r, err := New(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the descriptor registered under name.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, apperr.Newf(apperr.UnknownOperation, "unknown operation %q", name)
	}
	return d, nil
}

// List returns descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }
