// Package valuation chains the estimated growth, historical
// price/earnings bounds and dividend expectations into a target price.
package valuation

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/stocktinker/internal/modules/ratios"
	"github.com/aristath/stocktinker/internal/timeseries"
	"github.com/aristath/stocktinker/pkg/formulas"
)

// trailingDividendYears is the window for the expected-dividends point
// estimate: the median over the last three reported dividend payments.
const trailingDividendYears = 3

// Projector computes valuation scalars from a derived ratios table and
// the daily price history. Results are memoized in explicit cache slots;
// a new Projector is needed to see refreshed inputs.
type Projector struct {
	derived *ratios.Derived
	prices  *timeseries.Table
	shift   float64
	log     zerolog.Logger

	estimatedGrowth          *float64
	targetPE                 *float64
	expectedDividends        *float64
	projectedDividendsGrowth *float64
}

// NewProjector creates a valuation projector. The shift parameter feeds
// the logarithmic growth weighting.
func NewProjector(derived *ratios.Derived, prices *timeseries.Table, shift float64, log zerolog.Logger) *Projector {
	return &Projector{
		derived: derived,
		prices:  prices,
		shift:   shift,
		log:     log.With().Str("service", "valuation").Logger(),
	}
}

// EstimatedEPSGrowth is the recency-weighted earnings-per-share growth.
func (p *Projector) EstimatedEPSGrowth() float64 {
	return ratios.WeightedGrowth(p.derived.Column("earnings-ps-growth"), p.shift)
}

// EstimatedRevenueGrowth is the recency-weighted revenue-per-share growth.
func (p *Projector) EstimatedRevenueGrowth() float64 {
	return ratios.WeightedGrowth(p.derived.Column("revenue-ps-growth"), p.shift)
}

// EstimatedBookValueGrowth is the recency-weighted book-value growth.
func (p *Projector) EstimatedBookValueGrowth() float64 {
	return ratios.WeightedGrowth(p.derived.Column("book-value-ps-growth"), p.shift)
}

// EstimatedCashflowGrowth is the recency-weighted operating-cashflow growth.
func (p *Projector) EstimatedCashflowGrowth() float64 {
	return ratios.WeightedGrowth(p.derived.Column("operating-cashflow-ps-growth"), p.shift)
}

// EstimatedGrowth is the median of the four weighted growth estimates,
// rounded to two decimal places. Undefined estimates are skipped; the
// result is undefined only when all four are.
func (p *Projector) EstimatedGrowth() float64 {
	if p.estimatedGrowth != nil {
		return *p.estimatedGrowth
	}

	var defined []float64
	for _, g := range []float64{
		p.EstimatedEPSGrowth(),
		p.EstimatedRevenueGrowth(),
		p.EstimatedBookValueGrowth(),
		p.EstimatedCashflowGrowth(),
	} {
		if !math.IsNaN(g) {
			defined = append(defined, g)
		}
	}

	growth := formulas.Round(formulas.Median(defined), 2)
	p.estimatedGrowth = &growth
	return growth
}

// EstimatedEPS projects the latest earnings per share forward n years at
// the estimated growth rate.
func (p *Projector) EstimatedEPS(years int) float64 {
	latest := p.derived.Latest("earnings-per-share-" + p.derived.Currency)
	return latest * math.Pow(1+p.EstimatedGrowth(), float64(years))
}

// TargetPE caps the growth-implied multiple (2 x growth x 100) at the
// maximum historical pe. Without a pe column there is no historical
// ceiling and the sentinel -1 is returned.
func (p *Projector) TargetPE() float64 {
	if p.targetPE != nil {
		return *p.targetPE
	}
	if !p.derived.HasColumn("pe") {
		return -1
	}

	target := math.Min(2*p.EstimatedGrowth()*100, maxDefined(p.derived.Column("pe")))
	p.targetPE = &target
	return target
}

// MaxPE is the maximum historical price/earnings multiple.
func (p *Projector) MaxPE() float64 {
	return maxDefined(p.derived.Column("pe"))
}

// PriceProjection is the projected EPS at the horizon times the target
// multiple.
func (p *Projector) PriceProjection(years int) float64 {
	return p.EstimatedEPS(years) * p.TargetPE()
}

// ExpectedDividends is a recency-based point estimate of the annual
// dividend per share: the median of the trailing three non-missing
// observations. Zero when the security pays no dividends.
func (p *Projector) ExpectedDividends() float64 {
	if p.expectedDividends != nil {
		return *p.expectedDividends
	}

	expected := 0.0
	if p.derived.HasDividends() {
		var trailing []float64
		for _, v := range p.derived.Column("dividends-" + p.derived.Currency) {
			if !math.IsNaN(v) {
				trailing = append(trailing, v)
			}
		}
		if len(trailing) > trailingDividendYears {
			trailing = trailing[len(trailing)-trailingDividendYears:]
		}
		if len(trailing) > 0 {
			expected = formulas.Median(trailing)
		}
	}

	p.expectedDividends = &expected
	return expected
}

// ProjectedDividendsGrowth is the recency-weighted dividend growth, zero
// when the security pays no dividends.
func (p *Projector) ProjectedDividendsGrowth() float64 {
	if p.projectedDividendsGrowth != nil {
		return *p.projectedDividendsGrowth
	}

	growth := 0.0
	if p.derived.HasDividends() {
		growth = ratios.WeightedGrowth(p.derived.Column("dividends-ps-growth"), p.shift)
	}

	p.projectedDividendsGrowth = &growth
	return growth
}

// ProjectedDividendEarnings is the undiscounted future-value sum of the
// expected dividends over the horizon, zero without dividends.
func (p *Projector) ProjectedDividendEarnings(years int) float64 {
	if !p.derived.HasDividends() {
		return 0
	}

	sum := 0.0
	for i := 0; i < years; i++ {
		sum += p.ExpectedDividends() * math.Pow(1+p.ProjectedDividendsGrowth(), float64(i))
	}
	return sum
}

// TargetPrice discounts the combined price projection and dividend value
// back to present value at the investor's required yield.
func (p *Projector) TargetPrice(years int, targetYield float64) float64 {
	return (p.PriceProjection(years) + p.ProjectedDividendEarnings(years)) /
		math.Pow(1+targetYield, float64(years))
}

// CurrentPrice is the most recent closing price, NaN without price
// history.
func (p *Projector) CurrentPrice() float64 {
	return p.prices.Latest("close")
}

// CurrentPE is the current price over the latest earnings per share.
func (p *Projector) CurrentPE() float64 {
	eps := p.derived.Latest("earnings-per-share-" + p.derived.Currency)
	if eps == 0 {
		return math.NaN()
	}
	return p.CurrentPrice() / eps
}

// maxDefined is the maximum over the non-missing values, NaN when there
// are none.
func maxDefined(values []float64) float64 {
	max := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(max) || v > max {
			max = v
		}
	}
	return max
}
