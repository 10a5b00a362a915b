package core

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coregx/gravity/internal/logger"
)

// closeConcurrency bounds parallel Close calls across pooled connections.
const closeConcurrency = 8

// ConnectionPool hands out one shared Connection per logical database name.
// Options given to the pool apply to every connection it creates.
type ConnectionPool struct {
	cfg    *Config
	opts   []Option
	logger logger.Logger

	mu     sync.Mutex
	conns  map[string]*Connection
	closed bool
}

// NewConnectionPool validates cfg and creates an empty pool. Connections
// are created on first request.
func NewConnectionPool(cfg *Config, opts ...Option) (*ConnectionPool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ConnectionPool{
		cfg:    cfg,
		opts:   opts,
		logger: newSettings(opts).logger,
		conns:  make(map[string]*Connection),
	}, nil
}

// GetConnection returns the shared connection for name, creating it on the
// first call. Later calls return the same *Connection.
func (p *ConnectionPool) GetConnection(name string) (*Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if conn, ok := p.conns[name]; ok {
		return conn, nil
	}

	conn, err := p.create(name)
	if err != nil {
		return nil, err
	}
	p.conns[name] = conn
	p.logger.Debug("connection created", "database", name, "driver", conn.cfg.Driver)
	return conn, nil
}

// GetNewConnection returns a connection for name that is not shared with
// other callers. The caller closes it.
func (p *ConnectionPool) GetNewConnection(name string) (*Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	return p.create(name)
}

func (p *ConnectionPool) create(name string) (*Connection, error) {
	cfg, err := p.cfg.Lookup(name)
	if err != nil {
		return nil, err
	}
	conn, err := NewConnection(cfg, p.opts...)
	if err != nil {
		return nil, WrapError(err, "database "+name)
	}
	conn.name = name
	return conn, nil
}

// Names returns the configured logical database names.
func (p *ConnectionPool) Names() []string {
	return p.cfg.Names()
}

// Ping pings every pooled connection concurrently.
func (p *ConnectionPool) Ping(ctx context.Context) error {
	conns, err := p.snapshot()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for name, conn := range conns {
		name, conn := name, conn
		g.Go(func() error {
			return WrapError(conn.Ping(ctx), "database "+name)
		})
	}
	return g.Wait()
}

// Close closes every pooled connection. The pool cannot be used afterwards.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	conns := p.conns
	p.conns = make(map[string]*Connection)
	p.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(closeConcurrency)
	for name, conn := range conns {
		name, conn := name, conn
		g.Go(func() error {
			return WrapError(conn.Close(), "database "+name)
		})
	}
	return g.Wait()
}

func (p *ConnectionPool) snapshot() (map[string]*Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	conns := make(map[string]*Connection, len(p.conns))
	for name, conn := range p.conns {
		conns[name] = conn
	}
	return conns, nil
}
