// Package dispatch turns a named invocation into an envelope.
//
// Invoke is total: every failure, including a panicking handler, comes
// back as an error envelope with a Kind.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/config"
	"github.com/shakram02/go-mcp-mssql/internal/conn"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
	"github.com/shakram02/go-mcp-mssql/internal/logging"
	"github.com/shakram02/go-mcp-mssql/internal/registry"
	"github.com/shakram02/go-mcp-mssql/internal/result"
	"github.com/shakram02/go-mcp-mssql/internal/schema"
	"github.com/shakram02/go-mcp-mssql/internal/sqlguard"
)

// Dispatcher validates, classifies and runs operations from a registry.
type Dispatcher struct {
	registry *registry.Registry
	provider conn.Provider
	dialect  dialect.Dialect
	guard    *sqlguard.Guard
	timeout  time.Duration
	logger   *slog.Logger

	// OnSuccess, when set, runs after every successful invocation.
	OnSuccess func(ctx context.Context, desc registry.Descriptor)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds each handler run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(x *Dispatcher) { x.timeout = d }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Dispatcher) { x.logger = l }
}

// WithStrictGuard rejects batches and hidden write keywords.
func WithStrictGuard(strict bool) Option {
	return func(x *Dispatcher) { x.guard = sqlguard.New(x.dialect, strict) }
}

func New(reg *registry.Registry, provider conn.Provider, d dialect.Dialect, opts ...Option) *Dispatcher {
	x := &Dispatcher{
		registry: reg,
		provider: provider,
		dialect:  d,
		guard:    sqlguard.New(d, false),
		timeout:  config.DefaultQueryTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *Dispatcher) Registry() *registry.Registry { return x.registry }

// Invoke runs the operation name with the raw argument bag.
func (x *Dispatcher) Invoke(ctx context.Context, name string, bag map[string]any) result.Envelope {
	id := uuid.NewString()
	log := x.logger.With("invocation_id", id, "operation", name)
	start := time.Now()

	desc, payload, err := x.invoke(ctx, name, bag)
	if err != nil {
		kind, msg := x.describe(err)
		log.Warn("operation failed", "kind", kind, "error", msg, "elapsed", time.Since(start))
		return result.Fail(kind, msg)
	}

	log.Debug("operation succeeded", "elapsed", time.Since(start))
	if x.OnSuccess != nil {
		x.OnSuccess(ctx, desc)
	}
	return result.Ok(payload)
}

func (x *Dispatcher) invoke(ctx context.Context, name string, bag map[string]any) (registry.Descriptor, result.Payload, error) {
	desc, err := x.registry.Resolve(name)
	if err != nil {
		return desc, result.Payload{}, err
	}

	args, err := schema.Validate(desc.Fields, bag)
	if err != nil {
		return desc, result.Payload{}, err
	}

	if desc.Intent != sqlguard.None {
		if err := x.guard.Check(desc.Intent, args.String(desc.SQLField)); err != nil {
			return desc, result.Payload{}, err
		}
	}

	payload, err := x.run(ctx, desc, args)
	return desc, payload, err
}

// run holds one lease for the handler and returns it on every path.
func (x *Dispatcher) run(ctx context.Context, desc registry.Descriptor, args schema.Args) (p result.Payload, err error) {
	lease, err := x.provider.Acquire(ctx)
	if err != nil {
		return result.Payload{}, err
	}
	defer x.provider.Release(lease)

	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("handler panicked", "operation", desc.Name, "panic", r)
			err = apperr.Newf(apperr.QueryError, "operation %s failed unexpectedly", desc.Name)
		}
	}()

	p, err = desc.Handler(ctx, lease, args)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = apperr.Wrap(apperr.Timeout, fmt.Sprintf("operation %s exceeded %s", desc.Name, x.timeout), err)
	}
	return p, err
}

// describe maps err onto a kind and a caller-safe message.
func (x *Dispatcher) describe(err error) (apperr.Kind, string) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			kind = apperr.Timeout
		case x.dialect != nil:
			if k, found := x.dialect.ClassifyError(err); found {
				kind = k
			} else {
				kind = apperr.QueryError
			}
		default:
			kind = apperr.QueryError
		}
	}

	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
		if ae.Err != nil {
			msg += ": " + ae.Err.Error()
		}
	}
	return kind, logging.Mask(msg)
}
