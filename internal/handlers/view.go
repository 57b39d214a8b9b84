package handlers

import (
	"context"

	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
	"github.com/shakram02/go-mcp-mssql/internal/registry"
	"github.com/shakram02/go-mcp-mssql/internal/result"
	"github.com/shakram02/go-mcp-mssql/internal/schema"
	"github.com/shakram02/go-mcp-mssql/internal/sqlguard"
)

func (o *ops) viewOps() []registry.Descriptor {
	viewName := []schema.Field{requiredString("view_name", "Name of the view")}
	viewScript := func(desc string) []schema.Field {
		return []schema.Field{requiredString("view_script", desc)}
	}
	return []registry.Descriptor{
		{
			Name:        "list_views",
			Description: "List all views in the database",
			Family:      dialect.FamilyView,
			ReadOnly:    true,
			Handler:     o.listViews,
		},
		{
			Name:        "describe_view",
			Description: "Get the definition of a view",
			Family:      dialect.FamilyView,
			Fields:      viewName,
			ReadOnly:    true,
			Handler:     o.describeView,
		},
		{
			Name:               "create_view",
			Description:        "Create a new view with a CREATE VIEW script",
			Family:             dialect.FamilyView,
			Fields:             viewScript("CREATE VIEW script"),
			Intent:             sqlguard.Create,
			SQLField:           "view_script",
			Handler:            runScript("view_script", "View created successfully"),
			RefreshesResources: true,
		},
		{
			Name:               "modify_view",
			Description:        "Modify an existing view with an ALTER VIEW script",
			Family:             dialect.FamilyView,
			Fields:             viewScript("ALTER VIEW script"),
			Intent:             sqlguard.Alter,
			SQLField:           "view_script",
			Handler:            runScript("view_script", "View modified successfully"),
			RefreshesResources: true,
		},
		{
			Name:               "delete_view",
			Description:        "Drop a view by name",
			Family:             dialect.FamilyView,
			Fields:             viewName,
			Handler:            o.deleteView,
			RefreshesResources: true,
		},
	}
}

func (o *ops) listViews(ctx context.Context, lease *conn.Lease, _ schema.Args) (result.Payload, error) {
	q, a, err := o.d.ListViews()
	return o.built(ctx, lease, q, a, err)
}

func (o *ops) describeView(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	name := args.String("view_name")
	q, a, err := o.d.ViewDefinition(name)
	if err != nil {
		return result.Payload{}, err
	}
	def, ok, err := scalarString(ctx, lease, q, a...)
	if err != nil {
		return result.Payload{}, err
	}
	if !ok || def == "" {
		return result.Payload{}, notFound("view", name)
	}
	return result.TextPayload(def), nil
}

func (o *ops) deleteView(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	name := args.String("view_name")
	if err := o.requireRelation(ctx, lease, name, dialect.KindView); err != nil {
		return result.Payload{}, err
	}
	if _, err := lease.ExecContext(ctx, "DROP VIEW "+o.d.QuoteIdent(name)); err != nil {
		return result.Payload{}, err
	}
	return result.TextPayload("View " + name + " deleted successfully"), nil
}
