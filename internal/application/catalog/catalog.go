// Package catalog serves service definitions through a read-through cache.
package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/domain/entity"
)

// DefaultTTL is used when the configured TTL is not positive
const DefaultTTL = 5 * time.Minute

type cacheEntry struct {
	svc       *entity.ServiceDefinition
	expiresAt time.Time
}

// Catalog caches ServiceRepository reads for a fixed TTL.
// Concurrent misses for the same id share one repository read, except misses
// made on a transaction context, which read through on their own connection.
type Catalog struct {
	repo  port.ServiceRepository
	ttl   time.Duration
	now   func() time.Time
	inTx  func(ctx context.Context) bool
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// Option configures the catalog
type Option func(*Catalog)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		c.now = now
	}
}

// WithTxDetector reports whether ctx carries an open transaction
func WithTxDetector(inTx func(ctx context.Context) bool) Option {
	return func(c *Catalog) {
		c.inTx = inTx
	}
}

// New creates a catalog over repo
func New(repo port.ServiceRepository, ttl time.Duration, opts ...Option) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Catalog{
		repo:    repo,
		ttl:     ttl,
		now:     time.Now,
		inTx:    func(context.Context) bool { return false },
		entries: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the service definition, reading the repository on a miss
func (c *Catalog) Get(ctx context.Context, id string) (*entity.ServiceDefinition, error) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		return copyService(entry.svc), nil
	}

	// A transaction holds its connection, so it must not wait on a shared
	// load that is itself waiting for a connection.
	if c.inTx(ctx) {
		svc, err := c.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return copyService(svc), nil
	}

	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		svc, err := c.repo.Get(loadCtx, id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[id] = cacheEntry{svc: svc, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return svc, nil
	})
	if err != nil {
		return nil, err
	}
	return copyService(v.(*entity.ServiceDefinition)), nil
}

// List always reads through to the repository
func (c *Catalog) List(ctx context.Context) ([]*entity.ServiceDefinition, error) {
	return c.repo.List(ctx)
}

// Upsert writes the definition and drops the cached copy
func (c *Catalog) Upsert(ctx context.Context, svc *entity.ServiceDefinition) error {
	if err := c.repo.Upsert(ctx, svc); err != nil {
		return err
	}
	c.Invalidate(svc.ID)
	return nil
}

// Invalidate drops one cached definition
func (c *Catalog) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// InvalidateAll drops every cached definition
func (c *Catalog) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func copyService(svc *entity.ServiceDefinition) *entity.ServiceDefinition {
	out := *svc
	if svc.Fields != nil {
		out.Fields = make([]entity.FormField, len(svc.Fields))
		for i, f := range svc.Fields {
			f.Options = append([]string(nil), f.Options...)
			out.Fields[i] = f
		}
	}
	out.Steps = append([]entity.ApprovalStep(nil), svc.Steps...)
	return &out
}
