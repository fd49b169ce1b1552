package securities

import (
	"context"
	"fmt"
	"math"
)

// Filter screens a security. A security passes overall iff every
// registered filter accepts it.
type Filter interface {
	Name() string
	Check(ctx context.Context, sec *Security) bool
}

// MinGrowthFilter rejects securities whose estimated growth is undefined
// or below the threshold.
type MinGrowthFilter struct {
	Threshold float64
}

func (f MinGrowthFilter) Name() string {
	return fmt.Sprintf("minimum growth %.2f", f.Threshold)
}

func (f MinGrowthFilter) Check(ctx context.Context, sec *Security) bool {
	growth := sec.EstimatedGrowth(ctx)
	return !math.IsNaN(growth) && growth >= f.Threshold
}

// MaxDebtPerEarningsFilter rejects securities carrying more debt per
// share than the allowed multiple of earnings. Securities with no debt
// data pass; missing values mean unreported, not overleveraged.
type MaxDebtPerEarningsFilter struct {
	Threshold float64
}

func (f MaxDebtPerEarningsFilter) Name() string {
	return fmt.Sprintf("maximum debt per earnings %.2f", f.Threshold)
}

func (f MaxDebtPerEarningsFilter) Check(ctx context.Context, sec *Security) bool {
	ratio := sec.DebtPerEarnings(ctx)
	return math.IsNaN(ratio) || ratio <= f.Threshold
}
