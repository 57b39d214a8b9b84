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

var procedureTypes = []string{"P", "PC"}

func (o *ops) procedureOps() []registry.Descriptor {
	procName := []schema.Field{requiredString("procedure_name", "Name of the stored procedure")}
	procScript := func(desc string) []schema.Field {
		return []schema.Field{requiredString("procedure_script", desc)}
	}
	return []registry.Descriptor{
		{
			Name:        "list_procedures",
			Description: "List user-defined stored procedures",
			Family:      dialect.FamilyProcedure,
			ReadOnly:    true,
			Handler:     o.listProcedures,
		},
		{
			Name:        "describe_procedure",
			Description: "Get the definition of a stored procedure",
			Family:      dialect.FamilyProcedure,
			Fields:      procName,
			ReadOnly:    true,
			Handler:     o.describeProcedure,
		},
		{
			Name:        "get_procedure_parameters",
			Description: "List the parameters of a stored procedure",
			Family:      dialect.FamilyProcedure,
			Fields:      procName,
			ReadOnly:    true,
			Handler:     o.procedureParameters,
		},
		{
			Name:               "create_procedure",
			Description:        "Create a stored procedure with a CREATE PROCEDURE script",
			Family:             dialect.FamilyProcedure,
			Fields:             procScript("CREATE PROCEDURE script"),
			Intent:             sqlguard.Create,
			SQLField:           "procedure_script",
			Handler:            runScript("procedure_script", "Procedure created successfully"),
			RefreshesResources: true,
		},
		{
			Name:        "modify_procedure",
			Description: "Modify a stored procedure with an ALTER PROCEDURE script",
			Family:      dialect.FamilyProcedure,
			Fields:      procScript("ALTER PROCEDURE script"),
			Intent:      sqlguard.Alter,
			SQLField:    "procedure_script",
			Handler:     runScript("procedure_script", "Procedure modified successfully"),
		},
		{
			Name:               "delete_procedure",
			Description:        "Drop a stored procedure by name",
			Family:             dialect.FamilyProcedure,
			Fields:             procName,
			Handler:            o.deleteProcedure,
			RefreshesResources: true,
		},
		{
			Name:        "execute_procedure",
			Description: "Execute a stored procedure with positional parameters and return its first result set",
			Family:      dialect.FamilyProcedure,
			Fields: []schema.Field{
				requiredString("procedure_name", "Name of the stored procedure"),
				{Name: "parameters", Description: "Positional parameter values", Kind: schema.StringArray},
			},
			Handler: o.executeProcedure,
		},
	}
}

// objectType returns the sys.objects type of name when it is one of types.
func objectType(ctx context.Context, lease *conn.Lease, name string, types []string) (string, bool, error) {
	q, a, err := mssql.
		Select("type").
		From("sys.objects").
		Where(sq.Expr("object_id = OBJECT_ID(?)", name)).
		Where(sq.Eq{"type": types}).
		ToSql()
	if err != nil {
		return "", false, err
	}
	t, ok, err := scalarString(ctx, lease, q, a...)
	return strings.TrimSpace(t), ok, err
}

func (o *ops) requireObject(ctx context.Context, lease *conn.Lease, kind, name string, types []string) (string, error) {
	t, ok, err := objectType(ctx, lease, name, types)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", notFound(kind, name)
	}
	return t, nil
}

// definition returns OBJECT_DEFINITION for an object already known to exist.
func definition(ctx context.Context, lease *conn.Lease, kind, name string) (result.Payload, error) {
	q, a, err := mssql.Select().Column(sq.Expr("OBJECT_DEFINITION(OBJECT_ID(?))", name)).ToSql()
	if err != nil {
		return result.Payload{}, err
	}
	def, ok, err := scalarString(ctx, lease, q, a...)
	if err != nil {
		return result.Payload{}, err
	}
	if !ok {
		return result.Payload{}, notFound(kind, name)
	}
	return result.TextPayload(def), nil
}

func (o *ops) listProcedures(ctx context.Context, lease *conn.Lease, _ schema.Args) (result.Payload, error) {
	q, a, err := mssql.
		Select(
			"SCHEMA_NAME(o.schema_id) AS schema_name",
			"o.name AS procedure_name",
			"o.create_date",
			"o.modify_date",
			"CASE WHEN EXISTS (SELECT 1 FROM sys.parameters p WHERE p.object_id = o.object_id) THEN 'Yes' ELSE 'No' END AS has_parameters",
		).
		From("sys.objects o").
		Where(sq.Eq{"o.type": "P", "o.is_ms_shipped": 0}).
		OrderBy("o.name").
		ToSql()
	return o.built(ctx, lease, q, a, err)
}

func (o *ops) describeProcedure(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	name := args.String("procedure_name")
	if _, err := o.requireObject(ctx, lease, "procedure", name, procedureTypes); err != nil {
		return result.Payload{}, err
	}
	return definition(ctx, lease, "procedure", name)
}

func (o *ops) procedureParameters(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	name := args.String("procedure_name")
	if _, err := o.requireObject(ctx, lease, "procedure", name, procedureTypes); err != nil {
		return result.Payload{}, err
	}
	q, a, err := mssql.
		Select(
			"p.parameter_id",
			"p.name AS parameter_name",
			"TYPE_NAME(p.user_type_id) AS data_type",
			"p.max_length",
			"p.precision",
			"p.scale",
			"p.is_output",
			"p.has_default_value",
			"p.default_value",
		).
		From("sys.parameters p").
		Where(sq.Expr("p.object_id = OBJECT_ID(?)", name)).
		OrderBy("p.parameter_id").
		ToSql()
	return o.built(ctx, lease, q, a, err)
}

func (o *ops) deleteProcedure(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	name := args.String("procedure_name")
	if _, err := o.requireObject(ctx, lease, "procedure", name, procedureTypes); err != nil {
		return result.Payload{}, err
	}
	if _, err := lease.ExecContext(ctx, "DROP PROCEDURE "+o.d.QuoteIdent(name)); err != nil {
		return result.Payload{}, err
	}
	return result.TextPayload(fmt.Sprintf("Procedure %s deleted successfully", name)), nil
}

// executeProcedure binds every parameter; values never reach the SQL text.
func (o *ops) executeProcedure(ctx context.Context, lease *conn.Lease, args schema.Args) (result.Payload, error) {
	name := args.String("procedure_name")
	if _, err := o.requireObject(ctx, lease, "procedure", name, procedureTypes); err != nil {
		return result.Payload{}, err
	}

	params := args.Strings("parameters")
	stmt, bound := call("EXEC "+o.d.QuoteIdent(name), " ", "", params)
	p, err := o.rows(ctx, lease, stmt, bound...)
	if err != nil {
		return result.Payload{}, err
	}
	if len(p.Columns) == 0 {
		return result.TextPayload(fmt.Sprintf("Procedure %s executed successfully", name)), nil
	}
	return p, nil
}

// call appends @p1..@pn placeholders for params to head, wrapped in open
// and end, and returns the statement with its bound arguments.
func call(head, open, end string, params []string) (string, []any) {
	marks := make([]string, len(params))
	bound := make([]any, len(params))
	for i, v := range params {
		marks[i] = fmt.Sprintf("@p%d", i+1)
		bound[i] = v
	}
	if len(params) == 0 && open == " " {
		return head, nil
	}
	return head + open + strings.Join(marks, ", ") + end, bound
}
