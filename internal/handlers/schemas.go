package handlers

import (
	"context"

	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
	"github.com/shakram02/go-mcp-mssql/internal/registry"
	"github.com/shakram02/go-mcp-mssql/internal/result"
	"github.com/shakram02/go-mcp-mssql/internal/schema"
)

func (o *ops) schemaOps() []registry.Descriptor {
	return []registry.Descriptor{
		{
			Name:        "list_schemas",
			Description: "List all schemas in the database",
			Family:      dialect.FamilySchema,
			ReadOnly:    true,
			Handler:     o.listSchemas,
		},
		{
			Name:        "list_objects",
			Description: "List user objects, optionally restricted to one schema",
			Family:      dialect.FamilySchema,
			Fields:      []schema.Field{optionalString("schema_name", "Restrict to this schema")},
			ReadOnly:    true,
			Handler:     o.listObjects,
		},
	}
}

func (o *ops) listSchemas(ctx context.Context, lease *conn.Lease, _ schema.Args) (result.Payload, error) {
	q, a, err := o.d.ListSchemas()
	return o.built(ctx, lease, q, a, err)
}

func (o *ops) listObjects(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	q, a, err := o.d.ListObjects(args.String("schema_name"))
	return o.built(ctx, lease, q, a, err)
}
