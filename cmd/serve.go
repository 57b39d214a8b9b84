package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/shakram02/go-mcp-mssql/internal/config"
	"github.com/shakram02/go-mcp-mssql/internal/dispatch"
	"github.com/shakram02/go-mcp-mssql/internal/handlers"
	"github.com/shakram02/go-mcp-mssql/internal/logging"
	"github.com/shakram02/go-mcp-mssql/internal/mcpserver"
	"github.com/shakram02/go-mcp-mssql/internal/resource"
)

var (
	transport string
	address   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `serve connects to the configured database and serves MCP over stdio
(the default) or streamable HTTP with --transport http.

When --config is given the file is watched and log level changes apply
without a restart.`,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(c *cobra.Command) {
	c.Flags().StringVar(&transport, "transport", mcpserver.TransportStdio, "stdio or http")
	c.Flags().StringVar(&address, "address", "127.0.0.1:8080", "listen address for the http transport")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := load()
	if err != nil {
		return err
	}

	pool, err := a.connect(ctx)
	if err != nil {
		return err
	}

	reg, err := handlers.Registry(a.dialect, handlers.Options{MaxRows: a.settings.MaxRows})
	if err != nil {
		pool.Close()
		return err
	}
	x := dispatch.New(reg, pool, a.dialect,
		dispatch.WithTimeout(a.settings.QueryTimeout),
		dispatch.WithLogger(a.logger),
		dispatch.WithStrictGuard(a.settings.RejectBatches),
	)
	resolver, err := resource.New(pool, a.dialect)
	if err != nil {
		pool.Close()
		return err
	}

	srv := mcpserver.New(ctx, x, resolver, pool, a.logger)
	defer srv.Close()

	if err := srv.Refresh(ctx); err != nil {
		a.logger.Warn("failed to list resources", "error", logging.Mask(err.Error()))
	}

	if a.file != nil {
		go func() {
			err := config.Watch(ctx, a.file, func() {
				level, err := config.ParseLevel(config.Lookup(a.src, config.KeyLogLevel, "info"))
				if err != nil {
					a.logger.Warn("ignoring log level", "error", err)
					return
				}
				logging.Level.Set(level)
			})
			if err != nil {
				a.logger.Warn("config watch stopped", "error", err)
			}
		}()
	}

	a.logger.Info("server started",
		"dialect", a.dialect.Name(),
		"transport", transport,
		"operations", reg.Len(),
		"strict", a.settings.RejectBatches,
	)

	err = srv.Run(transport, address)
	if errors.Is(err, context.Canceled) {
		a.logger.Info("server shutdown gracefully")
		return nil
	}
	return err
}
