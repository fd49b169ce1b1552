package reports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Fetcher retrieves a raw vendor export. The currency code is only
// consulted for the price kind, whose endpoint is keyed by it.
type Fetcher interface {
	FetchReport(ctx context.Context, symbol string, kind Kind, currency string) ([]byte, error)
}

// Cache maps (symbol, kind) to a locally valid CSV file, fetching through
// the Fetcher on miss or expiry. One file per pair lives at
// {dataDir}/{kind}_{symbol}.csv.
type Cache struct {
	dataDir string
	fetcher Fetcher
	log     zerolog.Logger
}

// NewCache creates a report cache rooted at dataDir. The directory is
// created on first write, not here.
func NewCache(dataDir string, fetcher Fetcher, log zerolog.Logger) *Cache {
	return &Cache{
		dataDir: dataDir,
		fetcher: fetcher,
		log:     log.With().Str("service", "report_cache").Logger(),
	}
}

// Path returns the cache file location for a (symbol, kind) pair. The
// symbol is sanitized first; it arrives from the URL and must not be
// able to address files outside the cache directory.
func (c *Cache) Path(symbol string, kind Kind) string {
	return filepath.Join(c.dataDir, fmt.Sprintf("%s_%s.csv", kind, sanitizeSymbol(symbol)))
}

// sanitizeSymbol keeps only the characters that appear in ticker symbols.
// Path separators and anything else unexpected are stripped, so a crafted
// symbol cannot escape dataDir.
func sanitizeSymbol(symbol string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return -1
	}, symbol)
}

// Resolve returns the path of a valid cached export, fetching and
// overwriting first when the file is missing, older than the kind's TTL,
// or forceRefresh is set.
func (c *Cache) Resolve(ctx context.Context, symbol string, kind Kind, currency string, forceRefresh bool) (string, error) {
	path := c.Path(symbol, kind)

	if info, err := os.Stat(path); err == nil && !forceRefresh {
		age := time.Since(info.ModTime())
		if age < kind.TTL() {
			c.log.Debug().
				Str("symbol", symbol).
				Str("kind", string(kind)).
				Dur("age", age).
				Msg("Reusing cached report")
			return path, nil
		}
	}

	data, err := c.fetcher.FetchReport(ctx, symbol, kind, currency)
	if err != nil {
		return "", RetrievalError{Kind: kind, Err: err}
	}

	if err := os.MkdirAll(c.dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write cache file: %w", err)
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("kind", string(kind)).
		Int("bytes", len(data)).
		Msg("Fetched report")

	return path, nil
}

// Clear deletes all cached files for a symbol. Missing files are a no-op,
// never an error.
func (c *Cache) Clear(symbol string) error {
	for _, kind := range AllKinds() {
		if err := os.Remove(c.Path(symbol, kind)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s cache file: %w", kind, err)
		}
	}
	return nil
}
