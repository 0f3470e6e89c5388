package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ErrNotInitialized wraps every failure to open the store.
var ErrNotInitialized = errors.New("store not initialized")

// Opener creates a ready-to-use DB (schema migrated).
type Opener func() (*DB, error)

// FileOpener opens the database file at path.
func FileOpener(path string) Opener {
	return func() (*DB, error) { return Open(path) }
}

// Provider hands out a lazily opened, shared DB. Concurrent first callers
// share one open attempt; a failed attempt is not remembered, so the next
// call retries from scratch.
type Provider struct {
	open        Opener
	group       singleflight.Group
	mu          sync.Mutex
	db          *DB
	initialized atomic.Bool
}

// NewProvider returns a Provider that opens the store with open on first use.
func NewProvider(open Opener) *Provider {
	return &Provider{open: open}
}

// Get returns the shared DB, opening it if needed. It returns early with
// ctx.Err() if ctx ends while waiting on an in-flight open.
func (p *Provider) Get(ctx context.Context) (*DB, error) {
	if db := p.current(); db != nil {
		return db, nil
	}

	ch := p.group.DoChan("open", func() (any, error) {
		if db := p.current(); db != nil {
			return db, nil
		}
		db, err := p.open()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotInitialized, err)
		}
		p.mu.Lock()
		p.db = db
		p.mu.Unlock()
		p.initialized.Store(true)
		return db, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DB), nil
	}
}

// Initialized reports whether the store has been opened successfully.
func (p *Provider) Initialized() bool {
	return p.initialized.Load()
}

// Close closes the DB if it was opened.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	p.initialized.Store(false)
	return err
}

func (p *Provider) current() *DB {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db
}
