// Package securities owns the per-symbol facade: lazily loaded report
// tables, derived ratios, valuation accessors and filter screening.
package securities

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/stocktinker/internal/modules/ratios"
	"github.com/aristath/stocktinker/internal/modules/reports"
	"github.com/aristath/stocktinker/internal/modules/valuation"
	"github.com/aristath/stocktinker/internal/timeseries"
)

// companyNamePrefix precedes the display name on the first line of the
// ratios export.
const companyNamePrefix = "Growth Profitability and Financial Ratios for "

// ReportWriter persists a rendered document for a security and returns
// the written file's path.
type ReportWriter interface {
	Write(ctx context.Context, sec *Security) (string, error)
}

// Options carries the valuation parameters shared by all securities a
// service creates.
type Options struct {
	ProjectionYears int
	TargetYield     float64
	GrowthLogShift  float64
}

// Service wires the cache, parser and derivation pipeline and hands out
// Security facades over them.
type Service struct {
	cache    *reports.Cache
	parser   *reports.Parser
	pipeline *ratios.Pipeline
	writer   ReportWriter
	opts     Options
	log      zerolog.Logger
}

// NewService creates a securities service.
func NewService(cache *reports.Cache, parser *reports.Parser, pipeline *ratios.Pipeline, writer ReportWriter, opts Options, log zerolog.Logger) *Service {
	return &Service{
		cache:    cache,
		parser:   parser,
		pipeline: pipeline,
		writer:   writer,
		opts:     opts,
		log:      log.With().Str("service", "securities").Logger(),
	}
}

// Security creates a facade for one symbol. Filters are evaluated by
// PassesFilters; forceRefresh bypasses cache TTLs on every load.
func (s *Service) Security(symbol string, forceRefresh bool, filters ...Filter) *Security {
	return &Security{
		Symbol:       symbol,
		svc:          s,
		forceRefresh: forceRefresh,
		filters:      filters,
		log:          s.log.With().Str("symbol", symbol).Logger(),
	}
}

// Security is the memoized per-symbol view. Each table is loaded once on
// first access and reused; Reset drops the memoized state. Load and
// derivation failures are recorded in the error log and degrade the
// affected table to empty rather than aborting, so one missing report
// kind does not block analysis of the rest.
//
// A Security is not safe for concurrent use; run one instance per
// worker.
type Security struct {
	Symbol string

	svc          *Service
	forceRefresh bool
	filters      []Filter
	log          zerolog.Logger

	companyName *string
	income      *timeseries.Table
	cashflow    *timeseries.Table
	balance     *timeseries.Table
	rawRatios   *timeseries.Table
	prices      *timeseries.Table
	derived     *ratios.Derived
	projector   *valuation.Projector

	errs []error
}

// Reset drops all memoized tables and scalars. The next accessor call
// reloads through the cache; the error log is cleared with them.
func (s *Security) Reset() {
	s.companyName = nil
	s.income = nil
	s.cashflow = nil
	s.balance = nil
	s.rawRatios = nil
	s.prices = nil
	s.derived = nil
	s.projector = nil
	s.errs = nil
}

// Errors returns the failures recorded while loading or deriving this
// security's views. A non-empty log means some tables degraded to empty.
func (s *Security) Errors() []error {
	return append([]error(nil), s.errs...)
}

func (s *Security) recordError(err error) {
	s.errs = append(s.errs, err)
	s.log.Warn().Err(err).Msg("Degraded security view")
}

// Income returns the parsed income statement, empty on load failure.
func (s *Security) Income(ctx context.Context) *timeseries.Table {
	if s.income == nil {
		s.income = s.loadTable(ctx, reports.KindIncome, "")
	}
	return s.income
}

// Cashflow returns the parsed cash-flow statement, empty on load failure.
func (s *Security) Cashflow(ctx context.Context) *timeseries.Table {
	if s.cashflow == nil {
		s.cashflow = s.loadTable(ctx, reports.KindCashflow, "")
	}
	return s.cashflow
}

// BalanceSheet returns the parsed balance sheet, empty on load failure.
func (s *Security) BalanceSheet(ctx context.Context) *timeseries.Table {
	if s.balance == nil {
		s.balance = s.loadTable(ctx, reports.KindBalanceSheet, "")
	}
	return s.balance
}

// Prices returns the daily price history. The price endpoint is keyed by
// the currency inferred from the ratios report, so this loads the ratios
// table first. Failures yield an empty history, which leaves pe, current
// price and dependent valuation fields undefined.
func (s *Security) Prices(ctx context.Context) *timeseries.Table {
	if s.prices == nil {
		s.prices = s.loadTable(ctx, reports.KindPrice, s.Currency(ctx))
	}
	return s.prices
}

// Ratios returns the derived ratios table: the raw ratios report run
// through the derivation pipeline against the balance sheet and price
// history.
func (s *Security) Ratios(ctx context.Context) *ratios.Derived {
	if s.derived == nil {
		s.derived = s.svc.pipeline.Derive(s.loadRawRatios(ctx), s.BalanceSheet(ctx), s.Prices(ctx))
	}
	return s.derived
}

// Currency is the currency code inferred from the ratios report's
// earnings-per-share column, empty when the report lacks one.
func (s *Security) Currency(ctx context.Context) string {
	return ratios.InferCurrency(s.loadRawRatios(ctx))
}

// CompanyName returns the display name from the first line of the cached
// ratios export, falling back to the symbol when unavailable.
func (s *Security) CompanyName(ctx context.Context) string {
	if s.companyName != nil {
		return *s.companyName
	}

	name := s.Symbol
	if path, err := s.svc.cache.Resolve(ctx, s.Symbol, reports.KindRatios, "", s.forceRefresh); err == nil {
		if line, err := firstLine(path); err == nil {
			name = strings.TrimPrefix(line, companyNamePrefix)
		}
	}

	s.companyName = &name
	return name
}

// PassesFilters reports whether every registered filter accepts this
// security. Evaluation short-circuits on the first rejection; an empty
// filter set always passes.
func (s *Security) PassesFilters(ctx context.Context) bool {
	for _, f := range s.filters {
		s.log.Debug().Str("filter", f.Name()).Msg("Checking filter")
		if !f.Check(ctx, s) {
			s.log.Info().Str("filter", f.Name()).Msg("Filter rejected security")
			return false
		}
	}
	return true
}

// WriteReport renders and persists the security's report document.
func (s *Security) WriteReport(ctx context.Context) (string, error) {
	return s.svc.writer.Write(ctx, s)
}

// ClearCache deletes the symbol's cached report files and resets the
// memoized state.
func (s *Security) ClearCache() error {
	if err := s.svc.cache.Clear(s.Symbol); err != nil {
		return err
	}
	s.Reset()
	return nil
}

// Valuation accessors, delegating to a projector built over the derived
// ratios and price history with the service's parameters.

func (s *Security) valuation(ctx context.Context) *valuation.Projector {
	if s.projector == nil {
		s.projector = valuation.NewProjector(s.Ratios(ctx), s.Prices(ctx), s.svc.opts.GrowthLogShift, s.log)
	}
	return s.projector
}

// EstimatedGrowth is the median recency-weighted growth estimate.
func (s *Security) EstimatedGrowth(ctx context.Context) float64 {
	return s.valuation(ctx).EstimatedGrowth()
}

// EstimatedEPS projects earnings per share over the configured horizon.
func (s *Security) EstimatedEPS(ctx context.Context) float64 {
	return s.valuation(ctx).EstimatedEPS(s.svc.opts.ProjectionYears)
}

// TargetPE is the capped growth-implied multiple, -1 without pe history.
func (s *Security) TargetPE(ctx context.Context) float64 {
	return s.valuation(ctx).TargetPE()
}

// PriceProjection is the projected price at the configured horizon.
func (s *Security) PriceProjection(ctx context.Context) float64 {
	return s.valuation(ctx).PriceProjection(s.svc.opts.ProjectionYears)
}

// TargetPrice is the present-value target at the configured horizon and
// required yield.
func (s *Security) TargetPrice(ctx context.Context) float64 {
	return s.valuation(ctx).TargetPrice(s.svc.opts.ProjectionYears, s.svc.opts.TargetYield)
}

// CurrentPrice is the latest closing price, NaN without price history.
func (s *Security) CurrentPrice(ctx context.Context) float64 {
	return s.valuation(ctx).CurrentPrice()
}

// CurrentPE is the current price over the latest earnings per share.
func (s *Security) CurrentPE(ctx context.Context) float64 {
	return s.valuation(ctx).CurrentPE()
}

// DebtPerEarnings is the latest total debt per share over earnings per
// share, used by the debt filter.
func (s *Security) DebtPerEarnings(ctx context.Context) float64 {
	return s.Ratios(ctx).Latest("debt-per-earnings")
}

// loadRawRatios memoizes the underived ratios table shared by Ratios,
// Currency and the price loader.
func (s *Security) loadRawRatios(ctx context.Context) *timeseries.Table {
	if s.rawRatios == nil {
		s.rawRatios = s.loadTable(ctx, reports.KindRatios, "")
	}
	return s.rawRatios
}

// loadTable resolves a kind through the cache and parses it. Any failure
// is recorded and degrades the result to an empty table.
func (s *Security) loadTable(ctx context.Context, kind reports.Kind, currency string) *timeseries.Table {
	path, err := s.svc.cache.Resolve(ctx, s.Symbol, kind, currency, s.forceRefresh)
	if err != nil {
		s.recordError(err)
		return timeseries.NewEmpty()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.recordError(err)
		return timeseries.NewEmpty()
	}

	table, err := s.svc.parser.Parse(kind, data)
	if err != nil {
		s.recordError(err)
		return timeseries.NewEmpty()
	}
	return table
}

func firstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return "", scanner.Err()
	}
	// The vendor quotes the title row
	return strings.Trim(strings.TrimSpace(scanner.Text()), `"`), nil
}
