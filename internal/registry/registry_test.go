package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/result"
	"github.com/shakram02/go-mcp-mssql/internal/schema"
	"github.com/shakram02/go-mcp-mssql/internal/sqlguard"
)

func noop(context.Context, *conn.Lease, schema.Args) (result.Payload, error) {
	return result.TextPayload("ok"), nil
}

func TestNew_ResolveAndList(t *testing.T) {
	r, err := New(
		Descriptor{Name: "list_tables", Handler: noop, ReadOnly: true},
		Descriptor{
			Name:     "read_query",
			Fields:   []schema.Field{{Name: "sql", Kind: schema.String, Required: true}},
			Intent:   sqlguard.Read,
			SQLField: "sql",
			Handler:  noop,
		},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	d, err := r.Resolve("list_tables")
	require.NoError(t, err)
	assert.Equal(t, sqlguard.None, d.Intent)
	assert.True(t, d.ReadOnly)

	names := []string{}
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"list_tables", "read_query"}, names)
}

func TestResolve_Unknown(t *testing.T) {
	r := MustNew(Descriptor{Name: "a", Handler: noop})
	_, err := r.Resolve("drop_everything")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.UnknownOperation))
}

func TestNew_Rejects(t *testing.T) {
	tests := map[string][]Descriptor{
		"duplicate":  {{Name: "a", Handler: noop}, {Name: "a", Handler: noop}},
		"no handler": {{Name: "a"}},
		"empty name": {{Handler: noop}},
		"undeclared sql field": {{
			Name: "read_query", Intent: sqlguard.Read, SQLField: "sql", Handler: noop,
		}},
	}
	for name, descs := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(descs...)
			assert.Error(t, err)
		})
	}
	assert.Panics(t, func() { MustNew(Descriptor{Name: "a"}) })
}
