// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

type countingClient struct {
	kind    types.ProviderKind
	records []types.SourceRecord
	err     error
	calls   int
}

func (c *countingClient) Kind() types.ProviderKind { return c.kind }

func (c *countingClient) Search(_ context.Context, _ string, _ int) ([]types.SourceRecord, error) {
	c.calls++
	return c.records, c.err
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := NewRedisCache(context.Background(), mr.Addr(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestCachedClientServesRepeatQueries(t *testing.T) {
	cache, _ := newTestCache(t)
	inner := &countingClient{
		kind:    types.ProviderPubMed,
		records: []types.SourceRecord{{Kind: types.ProviderPubMed, PMID: "1", Title: "A"}},
	}
	c := &CachedClient{Client: inner, Cache: cache}

	first, err := c.Search(context.Background(), "Metformin  Safety", 5)
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "metformin safety", 5)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, types.ProviderPubMed, c.Kind())
}

func TestCachedClientDoesNotCacheErrors(t *testing.T) {
	cache, _ := newTestCache(t)
	inner := &countingClient{kind: types.ProviderExa, err: errors.New("boom")}
	c := &CachedClient{Client: inner, Cache: cache}

	_, err := c.Search(context.Background(), "q", 5)
	require.Error(t, err)
	_, err = c.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedClientBypassesBrokenCache(t *testing.T) {
	cache, mr := newTestCache(t)
	inner := &countingClient{kind: types.ProviderMedRxiv, records: []types.SourceRecord{{DOI: "10.1/x"}}}
	c := &CachedClient{Client: inner, Cache: cache}

	mr.Close()

	got, err := c.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCacheTTL(t *testing.T) {
	cache, mr := newTestCache(t)
	key := CacheKey(types.ProviderPubMed, "q", 5)
	require.NoError(t, cache.Set(context.Background(), key, []types.SourceRecord{{PMID: "1"}}))

	mr.FastForward(2 * time.Hour)

	_, ok, err := cache.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheKey(t *testing.T) {
	a := CacheKey(types.ProviderPubMed, "Metformin  side effects", 5)
	b := CacheKey(types.ProviderPubMed, "metformin side effects", 5)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, CacheKey(types.ProviderMedRxiv, "metformin side effects", 5))
	assert.NotEqual(t, a, CacheKey(types.ProviderPubMed, "metformin side effects", 6))
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewRedisCache(ctx, "127.0.0.1:1", time.Minute)
	require.Error(t, err)
}

func TestWithCache(t *testing.T) {
	cache, _ := newTestCache(t)
	wrapped := WithCache([]Client{&countingClient{kind: types.ProviderExa}}, cache, nil)
	require.Len(t, wrapped, 1)
	assert.Equal(t, types.ProviderExa, wrapped[0].Kind())
}
