package reports

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParser() *Parser {
	p := NewParser(zerolog.Nop())
	p.now = func() time.Time {
		return time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	}
	return p
}

func TestParseStatement(t *testing.T) {
	raw := "Acme Corp Income Statement\n" +
		",2019-06,2020-06,TTM\n" +
		"Revenue USD Mil,\"1,000\",\"1,100\",\"1,210\"\n" +
		"Earnings Per Share USD,1.00,1.10,1.21\n"

	table, err := testParser().Parse(KindIncome, []byte(raw))
	require.NoError(t, err)

	dates := table.Dates()
	require.Len(t, dates, 3)
	assert.Equal(t, time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC), dates[0])
	// TTM renamed to the current year-month
	assert.Equal(t, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), dates[2])

	// Thousands separators stripped, -mil scaled by 1e6 and renamed
	assert.False(t, table.HasColumn("revenue-usd-mil"))
	assert.InDelta(t, 1e9, table.Value("revenue-usd", 0), 1e-3)
	assert.InDelta(t, 1.21, table.Latest("earnings-per-share-usd"), 1e-9)
}

func TestParseRatiosSkipsTwoHeaderLines(t *testing.T) {
	raw := "Growth Profitability and Financial Ratios for Acme Corp\n" +
		"Financials\n" +
		",2019-06,2020-06\n" +
		"Shares Mil,100,100\n" +
		"Book Value Per Share * USD,5.00,5.50\n"

	table, err := testParser().Parse(KindRatios, []byte(raw))
	require.NoError(t, err)

	assert.InDelta(t, 100e6, table.Value("shares", 0), 1e-3)
	assert.InDelta(t, 5.50, table.Latest("book-value-per-share-usd"), 1e-9)
}

func TestParseStatementSortsPeriodsAscending(t *testing.T) {
	raw := "Title\n" +
		",2020-06,2018-06,2019-06\n" +
		"Earnings Per Share USD,3,1,2\n"

	table, err := testParser().Parse(KindIncome, []byte(raw))
	require.NoError(t, err)

	eps := table.Column("earnings-per-share-usd")
	assert.Equal(t, []float64{1, 2, 3}, eps)
}

func TestParseDropsEmptyColumns(t *testing.T) {
	raw := "Title\n" +
		",2019-06,2020-06\n" +
		"Dividends USD,,\n" +
		"Earnings Per Share USD,1.0,1.1\n"

	table, err := testParser().Parse(KindIncome, []byte(raw))
	require.NoError(t, err)

	assert.False(t, table.HasColumn("dividends-usd"))
	assert.True(t, table.HasColumn("earnings-per-share-usd"))
}

func TestParseKeepsFullyNonNumericColumns(t *testing.T) {
	// Empty-cell columns are dropped before coercion, so a column of pure
	// text survives as all-missing values rather than disappearing
	raw := "Title\n" +
		",2019-06,2020-06\n" +
		"Earnings Per Share USD,n/a,n/a\n" +
		"Revenue USD,1000,1100\n"

	table, err := testParser().Parse(KindIncome, []byte(raw))
	require.NoError(t, err)

	require.True(t, table.HasColumn("earnings-per-share-usd"))
	for _, v := range table.Column("earnings-per-share-usd") {
		assert.True(t, math.IsNaN(v))
	}
}

func TestParseNonNumericCellsBecomeMissing(t *testing.T) {
	raw := "Title\n" +
		",2019-06,2020-06\n" +
		"Earnings Per Share USD,n/a,1.1\n"

	table, err := testParser().Parse(KindIncome, []byte(raw))
	require.NoError(t, err)

	eps := table.Column("earnings-per-share-usd")
	require.Len(t, eps, 2)
	assert.True(t, math.IsNaN(eps[0]))
	assert.InDelta(t, 1.1, eps[1], 1e-9)
}

func TestParsePrice(t *testing.T) {
	raw := "Acme Corp price history\n" +
		"Date,Open,High,Low,Close,Volume\n" +
		"01/10/2020,9.0,11.0,8.5,10.5,\"1,000\"\n" +
		"12/20/2019,10.0,10.5,9.0,9.5,\"2,000\"\n"

	table, err := testParser().Parse(KindPrice, []byte(raw))
	require.NoError(t, err)

	dates := table.Dates()
	require.Len(t, dates, 2)
	// Rows sorted ascending by calendar day
	assert.Equal(t, time.Date(2019, 12, 20, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Equal(t, time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC), dates[1])

	assert.InDelta(t, 9.5, table.Value("close", 0), 1e-9)
	assert.InDelta(t, 10.5, table.Latest("close"), 1e-9)

	// Row 0 is the 2019-12-20 row after sorting, with thousands separator
	// stripped
	assert.InDelta(t, 2000, table.Value("volume", 0), 1e-9)
	assert.InDelta(t, 1000, table.Latest("volume"), 1e-9)
}

func TestParseEmptyExport(t *testing.T) {
	table, err := testParser().Parse(KindIncome, nil)
	require.Error(t, err)

	var emptyErr EmptyReportError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, KindIncome, emptyErr.Kind)
	assert.True(t, table.Empty())
}

func TestParseHeaderOnlyExport(t *testing.T) {
	raw := "Title\n,2019-06,2020-06\n"

	table, err := testParser().Parse(KindIncome, []byte(raw))
	require.Error(t, err)

	var emptyErr EmptyReportError
	assert.ErrorAs(t, err, &emptyErr)
	assert.True(t, table.Empty())
}
