// Package broker provides the gRPC transport implementation of
// fleet.NodeControl, dialing each node agent's control-plane endpoint
// on demand and reusing the connection across calls.
package broker

import (
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ConnPool caches one gRPC connection per node address, the way a
// long-lived supervisor process should: nodes are dialed lazily and
// kept open rather than reconnected on every call.
type ConnPool struct {
	dialTimeout time.Duration

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewConnPool builds an empty pool. dialTimeout is stored on the pool
// but Get does not apply it: grpc.NewClient returns without dialing,
// and the connection is established on the first RPC.
func NewConnPool(dialTimeout time.Duration) *ConnPool {
	return &ConnPool{
		dialTimeout: dialTimeout,
		conns:       make(map[string]*grpc.ClientConn),
	}
}

// Get returns the cached connection for addr, dialing one if needed.
func (p *ConnPool) Get(addr string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[addr]; ok {
		return conn, nil
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	p.conns[addr] = conn
	return conn, nil
}

// Close tears down every cached connection.
func (p *ConnPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for addr, conn := range p.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, addr)
	}
	return firstErr
}

// Evict drops addr's cached connection, forcing the next Get to redial.
func (p *ConnPool) Evict(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.conns[addr]; ok {
		conn.Close()
		delete(p.conns, addr)
	}
}
