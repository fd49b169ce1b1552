package securities

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/aristath/stocktinker/internal/timeseries"
	"github.com/aristath/stocktinker/pkg/formulas"
)

// MissingFieldError reports a summary or valuation computation that
// referenced a column absent from the derived table.
type MissingFieldError struct {
	Field string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("field not found %q", e.Field)
}

// summaryColumns is the derived-table subset shown in the report's
// per-period summary sheet. Currency-suffixed names are expanded at
// build time.
var summaryColumns = []string{
	"return-on-equity",
	"return-on-invested-capital",
	"book-value-per-share-%s",
	"book-value-ps-growth",
	"earnings-per-share-%s",
	"earnings-ps-growth",
	"revenue-per-share-%s",
	"revenue-ps-growth",
	"operating-cashflow-per-share-%s",
	"operating-cashflow-ps-growth",
	"pe",
	"shares",
	"total-debt-growth",
	"debt-per-earnings",
	"debt-per-bookvalue",
}

// SummaryHeaderRow is the fixed header for the one-line-per-security
// summary consumed by report renderers.
func SummaryHeaderRow() []string {
	return []string{
		"company name",
		"symbol",
		"current price",
		"target_price",
		"eps",
		"max p/e",
		"est. growth rate",
		"target p/e",
		"target eps",
		"price projection",
	}
}

// SummaryRow builds the security's summary values in header order. A
// missing earnings or pe column is recorded as a MissingFieldError and
// yields an empty row instead of propagating.
func (s *Security) SummaryRow(ctx context.Context) []interface{} {
	derived := s.Ratios(ctx)

	epsColumn := "earnings-per-share-" + derived.Currency
	for _, required := range []string{epsColumn, "pe"} {
		if !derived.HasColumn(required) {
			s.recordError(MissingFieldError{Field: required})
			return nil
		}
	}

	v := s.valuation(ctx)
	return []interface{}{
		s.CompanyName(ctx),
		s.Symbol,
		v.CurrentPrice(),
		s.TargetPrice(ctx),
		derived.Latest(epsColumn),
		v.MaxPE(),
		v.EstimatedGrowth(),
		v.TargetPE(),
		s.EstimatedEPS(ctx),
		s.PriceProjection(ctx),
	}
}

// SummaryInfoEntry is one key/value line of the report's summary-info
// block. Numeric values are pre-formatted to two decimals.
type SummaryInfoEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SummaryInfo builds the growth-rate and pe statistics block. The pe
// lines are only present when the security has pe history; a missing
// earnings column is recorded and yields an empty block.
func (s *Security) SummaryInfo(ctx context.Context) []SummaryInfoEntry {
	derived := s.Ratios(ctx)
	v := s.valuation(ctx)

	epsColumn := "earnings-per-share-" + derived.Currency
	if !derived.HasColumn(epsColumn) {
		s.recordError(MissingFieldError{Field: epsColumn})
		return nil
	}

	entries := []SummaryInfoEntry{
		{"Growth rates", "%"},
		{"average growth", formatValue(100 * v.EstimatedGrowth())},
		{"estimated eps growth", formatValue(100 * v.EstimatedEPSGrowth())},
		{"estimated revenue growth", formatValue(100 * v.EstimatedRevenueGrowth())},
		{"estimated bookvalue growth", formatValue(100 * v.EstimatedBookValueGrowth())},
		{"estimated operational cashflow growth", formatValue(100 * v.EstimatedCashflowGrowth())},
		{"", ""},
		{"currency", derived.Currency},
		{"eps TTM", formatValue(derived.Latest(epsColumn))},
	}

	if derived.HasColumn("pe") {
		pe := definedValues(derived.Column("pe"))
		entries = append(entries,
			SummaryInfoEntry{"min p/e", formatValue(minDefined(pe))},
			SummaryInfoEntry{"max p/e", formatValue(v.MaxPE())},
			SummaryInfoEntry{"0.75 perc p/e", formatValue(formulas.Quantile(pe, 0.75))},
			SummaryInfoEntry{"", ""},
		)
	}

	return entries
}

// SummaryTable is the column-subset view of the derived ratios used by
// the report's summary sheet. Columns the derivation could not produce
// are skipped.
func (s *Security) SummaryTable(ctx context.Context) *timeseries.Table {
	derived := s.Ratios(ctx)
	if derived.Empty() {
		return timeseries.NewEmpty()
	}

	subset := timeseries.New(derived.Dates())
	for _, pattern := range summaryColumns {
		name := pattern
		if derived.Currency != "" && strings.Contains(pattern, "%s") {
			name = fmt.Sprintf(pattern, derived.Currency)
		}
		if values := derived.Column(name); values != nil {
			if err := subset.SetColumn(name, values); err != nil {
				s.log.Error().Err(err).Str("column", name).Msg("Failed to build summary table")
			}
		}
	}
	return subset
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func definedValues(values []float64) []float64 {
	defined := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			defined = append(defined, v)
		}
	}
	return defined
}

func minDefined(values []float64) float64 {
	min := math.NaN()
	for _, v := range values {
		if math.IsNaN(min) || v < min {
			min = v
		}
	}
	return min
}
