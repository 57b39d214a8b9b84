// Package mcpserver exposes the dispatcher and resource resolver over the
// Model Context Protocol.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/dispatch"
	"github.com/shakram02/go-mcp-mssql/internal/logging"
	"github.com/shakram02/go-mcp-mssql/internal/registry"
	"github.com/shakram02/go-mcp-mssql/internal/resource"
	"github.com/shakram02/go-mcp-mssql/internal/result"
	"github.com/shakram02/go-mcp-mssql/internal/schema"
)

const (
	ServerName    = "mssql-mcp-server"
	ServerVersion = "1.0.0"

	TransportStdio = "stdio"
	TransportHTTP  = "http"

	shutdownTimeout = 5 * time.Second
)

// Server binds one dispatcher and resolver to an MCP server.
type Server struct {
	mcp      *mcp.Server
	dispatch *dispatch.Dispatcher
	resolver *resource.Resolver
	closer   io.Closer
	logger   *slog.Logger

	mu        sync.Mutex
	published []string

	ctx    context.Context
	cancel context.CancelFunc
}

// New registers one tool per operation and the table/view resources.
// closer, usually the connection pool, is closed by Close.
func New(ctx context.Context, x *dispatch.Dispatcher, r *resource.Resolver, closer io.Closer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	s := &Server{
		mcp:      mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: ServerVersion}, nil),
		dispatch: x,
		resolver: r,
		closer:   closer,
		logger:   logger,
		ctx:      serverCtx,
		cancel:   cancel,
	}

	for _, desc := range x.Registry().List() {
		s.mcp.AddTool(&mcp.Tool{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: schema.InputSchema(desc.Fields),
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: desc.ReadOnly},
		}, s.callTool(desc.Name))
	}

	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: r.Template(),
		Name:        "table-data",
		Description: "First rows of a table or view as CSV",
		MIMEType:    resource.MIMEType,
	}, s.readResource)

	prev := x.OnSuccess
	x.OnSuccess = func(ctx context.Context, desc registry.Descriptor) {
		if prev != nil {
			prev(ctx, desc)
		}
		if desc.RefreshesResources {
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("failed to refresh resources", "operation", desc.Name, "error", err)
			}
		}
	}
	return s
}

// MCP returns the underlying server, for tests and custom transports.
func (s *Server) MCP() *mcp.Server { return s.mcp }

func (s *Server) callTool(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var env result.Envelope
		bag, err := schema.DecodeBag(req.Params.Arguments)
		if err != nil {
			env = result.Fail(apperr.TypeMismatch, "arguments must be a JSON object")
		} else {
			env = s.dispatch.Invoke(ctx, name, bag)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: env.JSON()}},
			IsError: !env.OK(),
		}, nil
	}
}

func (s *Server) readResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	text, err := s.resolver.Read(ctx, uri)
	if err != nil {
		if apperr.Is(err, apperr.ResourceNotFound) {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		s.logger.Warn("resource read failed", "uri", uri, "error", logging.Mask(err.Error()))
		return nil, errors.New(logging.Mask(err.Error()))
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: resource.MIMEType, Text: text}},
	}, nil
}

// Refresh replaces the static resource list with the current tables and views.
func (s *Server) Refresh(ctx context.Context) error {
	ids, err := s.resolver.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.published) > 0 {
		s.mcp.RemoveResources(s.published...)
	}
	s.published = s.published[:0]
	for _, id := range ids {
		uri := s.resolver.URI(id.Name)
		s.mcp.AddResource(&mcp.Resource{
			URI:         uri,
			Name:        id.Name,
			Description: fmt.Sprintf("Data in %s %s", id.Kind, id.Name),
			MIMEType:    resource.MIMEType,
		}, s.readResource)
		s.published = append(s.published, uri)
	}
	s.logger.Debug("resources refreshed", "count", len(ids))
	return nil
}

// Run serves until the context passed to New is cancelled, Shutdown is
// called, or the transport fails.
func (s *Server) Run(transport, addr string) error {
	switch transport {
	case "", TransportStdio:
		return s.mcp.Run(s.ctx, &mcp.StdioTransport{})
	case TransportHTTP:
		return s.serveHTTP(addr)
	}
	return fmt.Errorf("unsupported transport %q (want %s or %s)", transport, TransportStdio, TransportHTTP)
}

func (s *Server) serveHTTP(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "transport", TransportHTTP, "address", addr)

	select {
	case err := <-errc:
		return err
	case <-s.ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return s.ctx.Err()
	}
}

// Shutdown stops Run.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Close stops Run and releases the database pool.
func (s *Server) Close() error {
	s.Shutdown()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
