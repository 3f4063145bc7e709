package pmode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Repository persists the raw PMode document
type Repository interface {
	// Exists reports whether a document has been uploaded
	Exists(ctx context.Context) (bool, error)
	// Load returns the current document
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the current document
	Save(ctx context.Context, raw []byte, cfg *Configuration) error
}

// Cache owns the single Configuration snapshot of the gateway.
//
// Readers load the snapshot pointer without locking. Loading, Refresh and
// Replace serialize on a mutex and publish a fully built snapshot with one
// atomic store. A failed load is never cached: until a document is uploaded
// every call retries and returns ErrConfigurationMissing.
type Cache struct {
	repo   Repository
	parser Parser
	logger *slog.Logger

	mu       sync.Mutex
	snapshot atomic.Pointer[Resolver]
}

// NewCache creates a cache over repo. A nil parser selects XMLParser.
func NewCache(repo Repository, parser Parser, logger *slog.Logger) *Cache {
	if parser == nil {
		parser = XMLParser{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{repo: repo, parser: parser, logger: logger}
}

// Configuration returns the current snapshot, loading it on first use.
func (c *Cache) Configuration(ctx context.Context) (*Configuration, error) {
	r, err := c.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	return r.Configuration(), nil
}

// Resolver returns a resolver bound to the current snapshot. Callers that
// need several lookups to agree should keep the returned resolver rather
// than calling Resolver again.
func (c *Cache) Resolver(ctx context.Context) (*Resolver, error) {
	if r := c.snapshot.Load(); r != nil {
		return r, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if r := c.snapshot.Load(); r != nil {
		return r, nil
	}
	r, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.snapshot.Store(r)
	return r, nil
}

// Refresh drops the snapshot and reloads it from the repository.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot.Store(nil)
	r, err := c.load(ctx)
	if err != nil {
		return err
	}
	c.snapshot.Store(r)
	return nil
}

// Replace validates and persists a new document, then drops the snapshot so
// the next reader loads it. On failure the current snapshot is kept.
func (c *Cache) Replace(ctx context.Context, raw []byte) error {
	cfg, err := c.parser.Parse(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.repo.Save(ctx, raw, cfg); err != nil {
		return fmt.Errorf("saving pmode document: %w", err)
	}
	c.snapshot.Store(nil)
	c.logger.Info("pmode configuration replaced",
		"parties", len(cfg.Parties),
		"processes", len(cfg.Processes),
		"legs", len(cfg.Legs))
	return nil
}

func (c *Cache) load(ctx context.Context) (*Resolver, error) {
	exists, err := c.repo.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking pmode document: %w", err)
	}
	if !exists {
		return nil, ErrConfigurationMissing
	}
	raw, err := c.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pmode document: %w", err)
	}
	cfg, err := c.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing stored pmode document: %w", err)
	}
	c.logger.Info("pmode configuration loaded",
		"parties", len(cfg.Parties),
		"processes", len(cfg.Processes),
		"legs", len(cfg.Legs),
		"mpcs", len(cfg.Mpcs))
	return NewResolver(cfg, c.logger), nil
}

// MemoryRepository keeps the document in memory
type MemoryRepository struct {
	mu  sync.RWMutex
	raw []byte
}

// NewMemoryRepository creates a repository holding raw, or nothing when raw is nil.
func NewMemoryRepository(raw []byte) *MemoryRepository {
	return &MemoryRepository{raw: raw}
}

// Exists implements Repository.
func (m *MemoryRepository) Exists(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw != nil, nil
}

// Load implements Repository.
func (m *MemoryRepository) Load(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.raw == nil {
		return nil, ErrConfigurationMissing
	}
	return append([]byte(nil), m.raw...), nil
}

// Save implements Repository.
func (m *MemoryRepository) Save(ctx context.Context, raw []byte, cfg *Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = append([]byte(nil), raw...)
	return nil
}
