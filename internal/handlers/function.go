package handlers

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
	"github.com/shakram02/go-mcp-mssql/internal/registry"
	"github.com/shakram02/go-mcp-mssql/internal/result"
	"github.com/shakram02/go-mcp-mssql/internal/schema"
	"github.com/shakram02/go-mcp-mssql/internal/sqlguard"
)

// scalar, inline table-valued and multi-statement table-valued functions
var functionTypes = []string{"FN", "IF", "TF"}

func (o *ops) functionOps() []registry.Descriptor {
	fnName := []schema.Field{requiredString("function_name", "Name of the function")}
	fnScript := func(desc string) []schema.Field {
		return []schema.Field{requiredString("function_script", desc)}
	}
	return []registry.Descriptor{
		{
			Name:        "list_functions",
			Description: "List user-defined functions",
			Family:      dialect.FamilyFunction,
			ReadOnly:    true,
			Handler:     o.listFunctions,
		},
		{
			Name:        "describe_function",
			Description: "Get the definition of a user-defined function",
			Family:      dialect.FamilyFunction,
			Fields:      fnName,
			ReadOnly:    true,
			Handler:     o.describeFunction,
		},
		{
			Name:               "create_function",
			Description:        "Create a function with a CREATE FUNCTION script",
			Family:             dialect.FamilyFunction,
			Fields:             fnScript("CREATE FUNCTION script"),
			Intent:             sqlguard.Create,
			SQLField:           "function_script",
			Handler:            runScript("function_script", "Function created successfully"),
			RefreshesResources: true,
		},
		{
			Name:        "modify_function",
			Description: "Modify a function with an ALTER FUNCTION script",
			Family:      dialect.FamilyFunction,
			Fields:      fnScript("ALTER FUNCTION script"),
			Intent:      sqlguard.Alter,
			SQLField:    "function_script",
			Handler:     runScript("function_script", "Function modified successfully"),
		},
		{
			Name:               "delete_function",
			Description:        "Drop a user-defined function by name",
			Family:             dialect.FamilyFunction,
			Fields:             fnName,
			Handler:            o.deleteFunction,
			RefreshesResources: true,
		},
		{
			Name:        "execute_function",
			Description: "Call a user-defined function with positional parameters",
			Family:      dialect.FamilyFunction,
			Fields: []schema.Field{
				requiredString("function_name", "Name of the function"),
				{Name: "parameters", Description: "Positional parameter values", Kind: schema.StringArray},
			},
			Handler: o.executeFunction,
		},
	}
}

func (o *ops) listFunctions(ctx context.Context, lease *conn.Lease, _ schema.Args) (result.Payload, error) {
	q, a, err := mssql.
		Select("SCHEMA_NAME(schema_id) AS schema_name", "name AS function_name", "type_desc AS function_type").
		From("sys.objects").
		Where(sq.Eq{"type": functionTypes}).
		OrderBy("name").
		ToSql()
	return o.built(ctx, lease, q, a, err)
}

func (o *ops) describeFunction(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	name := args.String("function_name")
	if _, err := o.requireObject(ctx, lease, "function", name, functionTypes); err != nil {
		return result.Payload{}, err
	}
	return definition(ctx, lease, "function", name)
}

func (o *ops) deleteFunction(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	name := args.String("function_name")
	if _, err := o.requireObject(ctx, lease, "function", name, functionTypes); err != nil {
		return result.Payload{}, err
	}
	if _, err := lease.ExecContext(ctx, "DROP FUNCTION "+o.d.QuoteIdent(name)); err != nil {
		return result.Payload{}, err
	}
	return result.TextPayload(fmt.Sprintf("Function %s deleted successfully", name)), nil
}

// executeFunction selects a scalar function's value, or every row of a
// table-valued function. Scalar calls need a schema, dbo by default.
func (o *ops) executeFunction(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	name := args.String("function_name")
	kind, err := o.requireObject(ctx, lease, "function", name, functionTypes)
	if err != nil {
		return result.Payload{}, err
	}

	qualified := name
	if !strings.Contains(name, ".") {
		qualified = "dbo." + name
	}
	fn := o.d.QuoteIdent(qualified)
	params := args.Strings("parameters")

	var stmt string
	var bound []any
	if kind == "FN" {
		stmt, bound = call("SELECT "+fn, "(", ") AS result", params)
	} else {
		stmt, bound = call("SELECT * FROM "+fn, "(", ")", params)
	}
	return o.rows(ctx, lease, stmt, bound...)
}
