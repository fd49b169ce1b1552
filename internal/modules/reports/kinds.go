// Package reports maps (symbol, report kind) pairs to locally cached
// vendor CSV exports and parses those exports into canonical
// date-indexed tables.
package reports

import "time"

// Kind identifies one of the five vendor report types.
type Kind string

const (
	KindIncome       Kind = "income"
	KindCashflow     Kind = "cashflow"
	KindBalanceSheet Kind = "balancesheet"
	KindRatios       Kind = "ratios"
	KindPrice        Kind = "price"
)

// AllKinds returns every report kind, in the order cache files are managed.
func AllKinds() []Kind {
	return []Kind{KindIncome, KindCashflow, KindBalanceSheet, KindRatios, KindPrice}
}

// TTL returns the maximum age of a cached file before it must be
// refreshed. Price history moves daily and expires sooner than the
// statement exports.
func (k Kind) TTL() time.Duration {
	if k == KindPrice {
		return 40000 * time.Second
	}
	return 86800 * time.Second
}

// headerLines returns the number of leading lines to skip before the
// column header in a raw export of this kind.
func (k Kind) headerLines() int {
	if k == KindRatios {
		return 2
	}
	return 1
}
