// Package ratios extends a parsed ratios report with the fixed,
// dependency-ordered sequence of derived valuation columns.
package ratios

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/stocktinker/internal/timeseries"
	"github.com/aristath/stocktinker/pkg/formulas"
)

const epsPrefix = "earnings-per-share-"

// Derived is the ratios table after derivation, with the currency code
// inferred once from the earnings-per-share column suffix.
type Derived struct {
	*timeseries.Table
	Currency string
}

// HasDividends reports whether the security pays dividends, i.e. whether
// the source report carried a dividends column for the inferred currency.
func (d *Derived) HasDividends() bool {
	return d.Currency != "" && d.HasColumn("dividends-"+d.Currency)
}

// Pipeline derives the computed ratio columns. Later steps may depend on
// columns produced by earlier ones, so the order is fixed.
type Pipeline struct {
	log zerolog.Logger
}

// NewPipeline creates a derivation pipeline.
func NewPipeline(log zerolog.Logger) *Pipeline {
	return &Pipeline{
		log: log.With().Str("service", "ratio_pipeline").Logger(),
	}
}

// Derive mutates the ratios table in place, adding the derived columns
// from the balance-sheet table and the daily price history. Missing
// source columns degrade to missing values in the derived columns; they
// never abort the derivation.
func (p *Pipeline) Derive(table *timeseries.Table, balance *timeseries.Table, prices *timeseries.Table) *Derived {
	d := &Derived{Table: table, Currency: InferCurrency(table)}
	if table.Empty() {
		return d
	}

	shares := columnOrMissing(table, "shares")

	// Growth of the per-share fundamentals
	p.setColumn(d, "book-value-ps-growth", formulas.FractionalChange(columnOrMissing(table, "book-value-per-share-"+d.Currency)))
	p.setColumn(d, "earnings-ps-growth", formulas.FractionalChange(columnOrMissing(table, epsPrefix+d.Currency)))

	ocfPerShare := divide(columnOrMissing(table, "operating-cash-flow-"+d.Currency), shares)
	p.setColumn(d, "operating-cashflow-per-share-"+d.Currency, ocfPerShare)
	p.setColumn(d, "operating-cashflow-ps-growth", formulas.FractionalChange(ocfPerShare))

	// Debt columns come from the balance sheet, aligned by period date.
	// Long-term debt is only copied when the balance sheet reports it;
	// short-term debt is copied unconditionally.
	longTerm := table.AlignedColumn(balance, "long-term-debt")
	if balance.HasColumn("long-term-debt") {
		p.setColumn(d, "long-term-debt", longTerm)
		longTermPS := divide(longTerm, shares)
		p.setColumn(d, "long-term-debt-ps", longTermPS)
		p.setColumn(d, "long-term-debt-ps-growth", formulas.FractionalChange(longTermPS))
	}

	shortTerm := table.AlignedColumn(balance, "short-term-debt")
	p.setColumn(d, "short-term-debt", shortTerm)
	shortTermPS := divide(shortTerm, shares)
	p.setColumn(d, "short-term-debt-ps", shortTermPS)
	p.setColumn(d, "short-term-debt-ps-growth", formulas.FractionalChange(shortTermPS))

	totalDebt := add(shortTerm, longTerm)
	totalDebtPS := divide(totalDebt, shares)
	p.setColumn(d, "total-debt-"+d.Currency, totalDebt)
	p.setColumn(d, "total-debt-per-share-"+d.Currency, totalDebtPS)
	p.setColumn(d, "total-debt-growth", formulas.FractionalChange(totalDebt))

	p.setColumn(d, "debt-per-earnings", divide(totalDebtPS, columnOrMissing(table, epsPrefix+d.Currency)))
	p.setColumn(d, "debt-per-bookvalue", divide(totalDebtPS, columnOrMissing(table, "book-value-per-share-"+d.Currency)))

	revenuePerShare := divide(columnOrMissing(table, "revenue-"+d.Currency), shares)
	p.setColumn(d, "revenue-per-share-"+d.Currency, revenuePerShare)
	p.setColumn(d, "revenue-ps-growth", formulas.FractionalChange(revenuePerShare))

	p.derivePE(d, prices)

	if d.HasDividends() {
		p.setColumn(d, "dividends-ps-growth", formulas.FractionalChange(table.Column("dividends-"+d.Currency)))
	}

	return d
}

// derivePE joins each ratios period with the nearest price-history day
// (absolute day distance, ties to the earlier date) and divides that
// day's close by the period's earnings per share. Without price history
// or an earnings column no pe column is produced, which downstream
// valuation treats as "no historical ceiling".
func (p *Pipeline) derivePE(d *Derived, prices *timeseries.Table) {
	if prices.Empty() || !prices.HasColumn("close") || !d.HasColumn(epsPrefix+d.Currency) {
		p.log.Debug().Msg("Skipping pe derivation, no usable price history")
		return
	}

	eps := d.Column(epsPrefix + d.Currency)
	pe := make([]float64, d.Len())
	for i, date := range d.Dates() {
		idx := prices.NearestIndex(date)
		pe[i] = safeDiv(prices.Value("close", idx), eps[i])
	}
	p.setColumn(d, "pe", pe)
}

func (p *Pipeline) setColumn(d *Derived, name string, values []float64) {
	if err := d.SetColumn(name, values); err != nil {
		p.log.Error().Err(err).Str("column", name).Msg("Failed to set derived column")
	}
}

// InferCurrency finds the three/four-letter code suffixing the
// earnings-per-share column. It is empty when no such column exists.
func InferCurrency(table *timeseries.Table) string {
	for _, name := range table.Columns() {
		if strings.HasPrefix(name, epsPrefix) {
			return strings.TrimPrefix(name, epsPrefix)
		}
	}
	return ""
}

// columnOrMissing returns the named column, or an all-missing column of
// the right length when absent, so derived columns can always be
// computed over existing sources.
func columnOrMissing(table *timeseries.Table, name string) []float64 {
	if values := table.Column(name); values != nil {
		return values
	}
	missing := make([]float64, table.Len())
	for i := range missing {
		missing[i] = math.NaN()
	}
	return missing
}

func safeDiv(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) || b == 0 {
		return math.NaN()
	}
	return a / b
}

func divide(values, divisors []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		out[i] = safeDiv(values[i], divisors[i])
	}
	return out
}

func add(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}
