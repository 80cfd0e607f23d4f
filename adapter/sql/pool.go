package sql

import (
	"context"
	"sync"
)

// Opener opens a database for a DSN.
type Opener func(ctx context.Context, dsn string) (DB, error)

// Pool caches one DB per DSN.
//
// The proxy receives connection parameters with every request; pooling keeps
// one handle per distinct database instead of dialing per request.
type Pool struct {
	open Opener

	mu  sync.RWMutex
	dbs map[string]DB
}

// NewPool creates a pool that opens databases with open.
func NewPool(open Opener) *Pool {
	return &Pool{
		open: open,
		dbs:  make(map[string]DB),
	}
}

// Get returns the cached DB for dsn, opening it on first use.
//
// Parameters:
//   - ctx: Context for opening a new handle
//   - dsn: Data source name identifying the database
//
// Returns:
//   - DB: The pooled handle
//   - error: Error from the opener
func (p *Pool) Get(ctx context.Context, dsn string) (DB, error) {
	p.mu.RLock()
	db, ok := p.dbs[dsn]
	p.mu.RUnlock()
	if ok {
		return db, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if db, ok := p.dbs[dsn]; ok {
		return db, nil
	}

	db, err := p.open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	p.dbs[dsn] = db

	return db, nil
}

// Evict closes and forgets the handle for dsn.
//
// The proxy evicts handles whose ping fails so the next request redials.
func (p *Pool) Evict(dsn string) {
	p.mu.Lock()
	db, ok := p.dbs[dsn]
	delete(p.dbs, dsn)
	p.mu.Unlock()

	if ok {
		_ = db.Close()
	}
}

// Len returns the number of pooled handles.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.dbs)
}

// Close closes every pooled handle and returns the first error.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for dsn, db := range p.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.dbs, dsn)
	}

	return firstErr
}
