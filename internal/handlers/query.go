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

func sqlField(desc string) []schema.Field {
	return []schema.Field{requiredString("sql", desc)}
}

func (o *ops) queryOps() []registry.Descriptor {
	return []registry.Descriptor{
		{
			Name:        "read_query",
			Description: "Execute a SELECT query and return the rows. Only statements starting with SELECT or WITH are accepted.",
			Family:      dialect.FamilyQuery,
			Fields:      sqlField("SELECT query to execute"),
			Intent:      sqlguard.Read,
			SQLField:    "sql",
			ReadOnly:    true,
			Handler:     o.readQuery,
		},
		{
			Name:        "write_query",
			Description: "Execute an INSERT, UPDATE or DELETE statement and return the number of affected rows.",
			Family:      dialect.FamilyQuery,
			Fields:      sqlField("INSERT, UPDATE or DELETE statement"),
			Intent:      sqlguard.Write,
			SQLField:    "sql",
			Handler:     o.writeQuery,
		},
		{
			Name:        "execute_sql",
			Description: "Execute an EXEC/EXECUTE statement and return its first result set, if any.",
			Family:      dialect.FamilyQuery,
			Fields:      sqlField("EXEC statement to run"),
			Intent:      sqlguard.Execute,
			SQLField:    "sql",
			Handler:     o.executeSQL,
		},
	}
}

func (o *ops) readQuery(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	return o.rows(ctx, lease, args.String("sql"))
}

func (o *ops) writeQuery(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	res, err := lease.ExecContext(ctx, args.String("sql"))
	if err != nil {
		return result.Payload{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return result.Payload{}, err
	}
	return result.CountPayload(n), nil
}

func (o *ops) executeSQL(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	p, err := o.rows(ctx, lease, args.String("sql"))
	if err != nil {
		return result.Payload{}, err
	}
	if len(p.Columns) == 0 {
		return result.TextPayload("Statement executed successfully"), nil
	}
	return p, nil
}
