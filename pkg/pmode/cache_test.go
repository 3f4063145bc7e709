package pmode

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRepository struct {
	*MemoryRepository
	mu      sync.Mutex
	loads   int
	saveErr error
}

func (c *countingRepository) Load(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	c.loads++
	c.mu.Unlock()
	return c.MemoryRepository.Load(ctx)
}

func (c *countingRepository) Save(ctx context.Context, raw []byte, cfg *Configuration) error {
	if c.saveErr != nil {
		return c.saveErr
	}
	return c.MemoryRepository.Save(ctx, raw, cfg)
}

func (c *countingRepository) loadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

func TestCacheMissingConfigurationIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepository{MemoryRepository: NewMemoryRepository(nil)}
	cache := NewCache(repo, nil, nil)

	for i := 0; i < 3; i++ {
		_, err := cache.Configuration(ctx)
		assert.ErrorIs(t, err, ErrConfigurationMissing)
	}

	require.NoError(t, cache.Replace(ctx, loadFixture(t)))

	cfg, err := cache.Configuration(ctx)
	require.NoError(t, err)
	assert.Equal(t, "blue_gw", cfg.Party.Name)
}

func TestCacheLoadsOnce(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepository{MemoryRepository: NewMemoryRepository(loadFixture(t))}
	cache := NewCache(repo, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Resolver(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, repo.loadCount())
}

func TestCacheRefreshIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepository{MemoryRepository: NewMemoryRepository(loadFixture(t))}
	cache := NewCache(repo, nil, nil)

	original, err := cache.Configuration(ctx)
	require.NoError(t, err)

	require.NoError(t, cache.Refresh(ctx))
	require.NoError(t, cache.Refresh(ctx))

	refreshed, err := cache.Configuration(ctx)
	require.NoError(t, err)
	assert.NotSame(t, original, refreshed)
	assert.Equal(t, original, refreshed)
	assert.Equal(t, 3, repo.loadCount())
}

func TestCacheReplaceKeepsSnapshotOnFailure(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepository{MemoryRepository: NewMemoryRepository(loadFixture(t))}
	cache := NewCache(repo, nil, nil)

	before, err := cache.Configuration(ctx)
	require.NoError(t, err)

	err = cache.Replace(ctx, []byte("<configuration"))
	require.Error(t, err)

	repo.saveErr = errors.New("disk full")
	err = cache.Replace(ctx, loadFixture(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	after, err := cache.Configuration(ctx)
	require.NoError(t, err)
	assert.Same(t, before, after)
}

func TestCacheReplacePublishesNewDocument(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepository{MemoryRepository: NewMemoryRepository(loadFixture(t))}
	cache := NewCache(repo, nil, nil)

	r, err := cache.Resolver(ctx)
	require.NoError(t, err)
	_, err = r.FindAction("TC1Leg3")
	require.Error(t, err)

	updated := strings.Replace(string(loadFixture(t)), `value="TC1Leg2"`, `value="TC1Leg3"`, 1)
	require.NoError(t, cache.Replace(ctx, []byte(updated)))

	// the resolver taken before Replace keeps its snapshot
	_, err = r.FindAction("TC1Leg3")
	require.Error(t, err)

	r, err = cache.Resolver(ctx)
	require.NoError(t, err)
	name, err := r.FindAction("TC1Leg3")
	require.NoError(t, err)
	assert.Equal(t, "Act2", name)
}
