// Package morningstar provides the HTTP client for the vendor's CSV
// export endpoints.
package morningstar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/stocktinker/internal/modules/reports"
)

const (
	statementURL = "http://financials.morningstar.com/ajax/ReportProcess4CSV.html?t=%s&reportType=%s&period=12&dataType=A&order=asc&columnYear=5&number=1"
	ratiosURL    = "http://financials.morningstar.com/ajax/exportKR2CSV.html?t=%s"
	priceURL     = "http://performance.morningstar.com/perform/Performance/stock/exportStockPrice.action?t=%s&pd=max&freq=d&sd=&ed=&pg=0&culture=en-US&cur=%s"
)

// reportKeys maps statement kinds to the vendor's report-type keys.
var reportKeys = map[reports.Kind]string{
	reports.KindIncome:       "is",
	reports.KindCashflow:     "cf",
	reports.KindBalanceSheet: "bs",
}

// Client fetches raw CSV exports from the vendor. Requests are paced by a
// rate limiter to respect the vendor's expectations and bounded by the
// HTTP client timeout; there is no retry logic.
type Client struct {
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient creates a new vendor export client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		log:     log.With().Str("client", "morningstar").Logger(),
	}
}

// FetchReport retrieves one raw export. The currency code is required for
// the price kind, whose endpoint is keyed by it.
func (c *Client) FetchReport(ctx context.Context, symbol string, kind reports.Kind, currency string) ([]byte, error) {
	reqURL, err := c.exportURL(symbol, kind, currency)
	if err != nil {
		return nil, err
	}

	body, err := c.fetch(ctx, reqURL, kind)
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("symbol", symbol).
		Str("kind", string(kind)).
		Int("bytes", len(body)).
		Msg("Fetched export")

	return body, nil
}

// fetch performs one paced, bounded GET against an export endpoint.
func (c *Client) fetch(ctx context.Context, reqURL string, kind reports.Kind) ([]byte, error) {
	// Politeness pacing before each fetch
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/csv,text/plain,*/*")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s export: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vendor returned status %d for %s export", resp.StatusCode, kind)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

// exportURL builds the kind-specific endpoint URL for a symbol.
func (c *Client) exportURL(symbol string, kind reports.Kind, currency string) (string, error) {
	escaped := url.QueryEscape(symbol)

	switch kind {
	case reports.KindRatios:
		return fmt.Sprintf(ratiosURL, escaped), nil
	case reports.KindPrice:
		if currency == "" {
			return "", fmt.Errorf("currency required for price export")
		}
		return fmt.Sprintf(priceURL, escaped, url.QueryEscape(strings.ToUpper(currency))), nil
	default:
		key, ok := reportKeys[kind]
		if !ok {
			return "", fmt.Errorf("unknown report kind %q", kind)
		}
		return fmt.Sprintf(statementURL, escaped, key), nil
	}
}
