package reports

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeFetcher) FetchReport(_ context.Context, _ string, _ Kind, _ string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func TestResolveFetchesOnMiss(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{data: []byte("a,b\n1,2\n")}
	cache := NewCache(filepath.Join(dir, "data"), fetcher, zerolog.Nop())

	path, err := cache.Resolve(context.Background(), "ACME", KindIncome, "", false)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b\n1,2\n"), content)
}

func TestResolveReusesFreshFile(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{data: []byte("a,b\n1,2\n")}
	cache := NewCache(dir, fetcher, zerolog.Nop())

	first, err := cache.Resolve(context.Background(), "ACME", KindIncome, "", false)
	require.NoError(t, err)

	// A second resolve within the TTL performs no network access
	second, err := cache.Resolve(context.Background(), "ACME", KindIncome, "", false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.calls)
}

func TestResolveRefetchesExpiredFile(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{data: []byte("a,b\n1,2\n")}
	cache := NewCache(dir, fetcher, zerolog.Nop())

	path, err := cache.Resolve(context.Background(), "ACME", KindPrice, "usd", false)
	require.NoError(t, err)

	// Age the file beyond the price TTL
	old := time.Now().Add(-KindPrice.TTL() - time.Minute)
	require.NoError(t, os.Chtimes(path, old, old))

	_, err = cache.Resolve(context.Background(), "ACME", KindPrice, "usd", false)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestResolveForceRefresh(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{data: []byte("a,b\n1,2\n")}
	cache := NewCache(dir, fetcher, zerolog.Nop())

	_, err := cache.Resolve(context.Background(), "ACME", KindRatios, "", false)
	require.NoError(t, err)

	_, err = cache.Resolve(context.Background(), "ACME", KindRatios, "", true)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestResolveWrapsFetchFailure(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	cache := NewCache(dir, fetcher, zerolog.Nop())

	_, err := cache.Resolve(context.Background(), "ACME", KindIncome, "", false)
	require.Error(t, err)

	var retrievalErr RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	assert.Equal(t, KindIncome, retrievalErr.Kind)
}

func TestClearRemovesAllKinds(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{data: []byte("a,b\n1,2\n")}
	cache := NewCache(dir, fetcher, zerolog.Nop())

	for _, kind := range AllKinds() {
		_, err := cache.Resolve(context.Background(), "ACME", kind, "usd", false)
		require.NoError(t, err)
	}

	require.NoError(t, cache.Clear("ACME"))
	for _, kind := range AllKinds() {
		_, err := os.Stat(cache.Path("ACME", kind))
		assert.True(t, os.IsNotExist(err))
	}

	// Clearing again is a no-op, never an error
	require.NoError(t, cache.Clear("ACME"))
}

func TestPathStripsUnsafeSymbolCharacters(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir, &fakeFetcher{}, zerolog.Nop())

	// A crafted symbol must not address files outside the cache directory
	path := cache.Path("../../etc/passwd", KindRatios)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, "ratios_....etcpasswd.csv", filepath.Base(path))

	// Regular symbols, including exchange-qualified ones, pass through
	assert.Equal(t, filepath.Join(dir, "income_BRK.B.csv"), cache.Path("BRK.B", KindIncome))
}

func TestKindTTL(t *testing.T) {
	assert.Equal(t, 86800*time.Second, KindIncome.TTL())
	assert.Equal(t, 86800*time.Second, KindCashflow.TTL())
	assert.Equal(t, 86800*time.Second, KindBalanceSheet.TTL())
	assert.Equal(t, 86800*time.Second, KindRatios.TTL())
	assert.Equal(t, 40000*time.Second, KindPrice.TTL())
}
