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

func (o *ops) tableOps() []registry.Descriptor {
	tableName := []schema.Field{requiredString("table_name", "Name of the table, optionally schema-qualified")}
	return []registry.Descriptor{
		{
			Name:        "list_tables",
			Description: "List all base tables in the database",
			Family:      dialect.FamilyTable,
			ReadOnly:    true,
			Handler:     o.listTables,
		},
		{
			Name:        "describe_table",
			Description: "Get the column layout of a table",
			Family:      dialect.FamilyTable,
			Fields:      tableName,
			ReadOnly:    true,
			Handler:     o.describeTable,
		},
		{
			Name:               "create_table",
			Description:        "Create a new table with a CREATE TABLE statement",
			Family:             dialect.FamilyTable,
			Fields:             sqlField("CREATE TABLE statement"),
			Intent:             sqlguard.Create,
			SQLField:           "sql",
			Handler:            runScript("sql", "Table created successfully"),
			RefreshesResources: true,
		},
		{
			Name:               "alter_table",
			Description:        "Change a table with an ALTER TABLE statement",
			Family:             dialect.FamilyTable,
			Fields:             sqlField("ALTER TABLE statement"),
			Intent:             sqlguard.Alter,
			SQLField:           "sql",
			Handler:            runScript("sql", "Table altered successfully"),
			RefreshesResources: true,
		},
		{
			Name:               "drop_table",
			Description:        "Drop a table with a DROP TABLE statement",
			Family:             dialect.FamilyTable,
			Fields:             sqlField("DROP TABLE statement"),
			Intent:             sqlguard.Drop,
			SQLField:           "sql",
			Handler:            runScript("sql", "Table dropped successfully"),
			RefreshesResources: true,
		},
		{
			Name:        "table_size",
			Description: "Get the approximate row count and storage size of a table",
			Family:      dialect.FamilyTable,
			Fields:      tableName,
			ReadOnly:    true,
			Handler:     o.tableSize,
		},
	}
}

func (o *ops) listTables(ctx context.Context, lease *conn.Lease, _ schema.Args) (result.Payload, error) {
	q, a, err := o.d.ListTables()
	return o.built(ctx, lease, q, a, err)
}

func (o *ops) describeTable(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	name := args.String("table_name")
	q, a, err := o.d.DescribeTable(name)
	p, err := o.built(ctx, lease, q, a, err)
	if err != nil {
		return result.Payload{}, err
	}
	if len(p.Rows) == 0 {
		return result.Payload{}, notFound("table", name)
	}
	return p, nil
}

func (o *ops) tableSize(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	name := args.String("table_name")
	if err := o.requireRelation(ctx, lease, name, dialect.KindTable); err != nil {
		return result.Payload{}, err
	}
	q, a, err := o.d.TableSize(name)
	p, err := o.built(ctx, lease, q, a, err)
	if err != nil {
		return result.Payload{}, err
	}
	if len(p.Rows) == 0 {
		return result.Payload{}, notFound("table", name)
	}
	return p, nil
}

// requireRelation fails with ObjectNotFound unless name is a relation of kind.
func (o *ops) requireRelation(ctx context.Context, lease *conn.Lease, name string, kind dialect.RelationKind) error {
	q, a, err := o.d.RelationKind(name)
	if err != nil {
		return err
	}
	got, ok, err := scalarString(ctx, lease, q, a...)
	if err != nil {
		return err
	}
	if !ok || dialect.NormalizeRelationKind(got) != kind {
		return notFound(string(kind), name)
	}
	return nil
}
