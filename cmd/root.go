// Package cmd implements the command-line interface of the gateway.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shakram02/go-mcp-mssql/internal/config"
	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
	"github.com/shakram02/go-mcp-mssql/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mssql-mcp-server",
	Short: "MCP server for SQL Server databases",
	Long: `mssql-mcp-server exposes a SQL Server database to MCP clients as validated
tools (queries, tables, views, procedures, functions, indexes, diagnostics)
and as table/view resources.

Connection settings come from the environment (MSSQL_SERVER, MSSQL_DATABASE,
MSSQL_USER, MSSQL_PASSWORD, ...), an optional YAML file given with --config,
and passwords stored with "mssql-mcp-server password". PostgreSQL, MySQL and
SQLite are selected with MCP_DIALECT.

Without a subcommand the server runs on stdio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, logging.Mask(err.Error()))
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML settings file")
	addServeFlags(rootCmd)
}

// app is the configuration shared by every subcommand.
type app struct {
	src      config.Source
	file     *config.File
	settings config.Settings
	dialect  dialect.Dialect
	logger   *slog.Logger
}

func load() (*app, error) {
	src, file, err := config.Open(configPath)
	if err != nil {
		return nil, err
	}
	settings, err := config.Load(src)
	if err != nil {
		return nil, err
	}
	d, err := dialect.New(settings.Dialect)
	if err != nil {
		return nil, err
	}
	return &app{
		src:      src,
		file:     file,
		settings: settings,
		dialect:  d,
		logger:   logging.Setup(os.Stderr, settings.LogLevel),
	}, nil
}

func (a *app) dsn() (string, error) {
	return a.dialect.BuildDSN(a.src)
}

func (a *app) connect(ctx context.Context) (*conn.Pool, error) {
	dsn, err := a.dsn()
	if err != nil {
		return nil, err
	}
	return conn.Open(ctx, a.dialect, dsn, a.settings)
}
