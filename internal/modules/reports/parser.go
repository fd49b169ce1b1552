package reports

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stocktinker/internal/timeseries"
	"github.com/aristath/stocktinker/internal/utils"
)

const (
	statementDateFormat = "2006-01"
	priceDateFormat     = "01/02/2006"
	milSuffix           = "-mil"
)

// Parser converts raw vendor exports into canonical tables: rows are
// reporting periods in ascending chronological order, columns are
// slugified metric names, cells are numeric with NaN for missing.
type Parser struct {
	log zerolog.Logger
	now func() time.Time
}

// NewParser creates a report parser.
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{
		log: log.With().Str("service", "report_parser").Logger(),
		now: time.Now,
	}
}

// Parse converts one raw export into a table. An empty export returns
// EmptyReportError; structural failures return MalformedReportError. In
// both cases the caller receives an empty table it can degrade to.
func (p *Parser) Parse(kind Kind, data []byte) (*timeseries.Table, error) {
	// The fixed header lines above the column header are counted as
	// physical lines, before any blank-line handling.
	remainder := skipLines(data, kind.headerLines())

	reader := csv.NewReader(bytes.NewReader(remainder))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return timeseries.NewEmpty(), MalformedReportError{Kind: kind, Err: err}
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		if isBlankRow(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	if len(rows) < 2 {
		return timeseries.NewEmpty(), EmptyReportError{Kind: kind}
	}
	header, body := rows[0], rows[1:]

	var table *timeseries.Table
	if kind == KindPrice {
		table, err = p.parsePrice(header, body)
	} else {
		table, err = p.parseStatement(header, body)
	}
	if err != nil {
		return timeseries.NewEmpty(), MalformedReportError{Kind: kind, Err: err}
	}
	if table.Empty() {
		return timeseries.NewEmpty(), EmptyReportError{Kind: kind}
	}

	normalizeUnits(table)

	p.log.Debug().
		Str("kind", string(kind)).
		Int("periods", table.Len()).
		Int("columns", len(table.Columns())).
		Msg("Parsed report")

	return table, nil
}

// parseStatement handles the statement and ratios layouts: the first
// column holds metric labels, the remaining columns hold period labels.
// The table is transposed so periods become the row index.
func (p *Parser) parseStatement(header []string, body [][]string) (*timeseries.Table, error) {
	type period struct {
		index int // source column, offset into header[1:]
		date  time.Time
	}

	var periods []period
	for i, label := range header[1:] {
		label = strings.TrimSpace(label)
		// TTM becomes the current calendar year-month before date parsing
		if label == "TTM" {
			label = p.now().Format(statementDateFormat)
		}
		date, err := time.Parse(statementDateFormat, label)
		if err != nil {
			continue
		}
		periods = append(periods, period{index: i, date: date})
	}
	if len(periods) == 0 {
		return timeseries.NewEmpty(), nil
	}

	dates := make([]time.Time, len(periods))
	for i, pr := range periods {
		dates[i] = pr.date
	}
	table := timeseries.New(dates)

	// Sorting may have reordered the periods; map dates back to source
	// columns so metric values land on the right rows.
	sourceByDate := make(map[time.Time]int, len(periods))
	for _, pr := range periods {
		sourceByDate[pr.date] = pr.index
	}

	for _, row := range body {
		if len(row) == 0 {
			continue
		}
		name := utils.Slugify(row[0])
		if name == "" {
			continue
		}
		values := make([]float64, len(table.Dates()))
		hasContent := false
		for i, date := range table.Dates() {
			col := sourceByDate[date] + 1
			if col >= len(row) {
				values[i] = math.NaN()
				continue
			}
			if strings.TrimSpace(row[col]) != "" {
				hasContent = true
			}
			values[i] = parseCell(row[col])
		}
		// Rows whose raw cells are all empty are dropped; non-numeric text
		// still counts as content and survives as a missing-value column
		if !hasContent {
			continue
		}
		if err := table.SetColumn(name, values); err != nil {
			return nil, err
		}
	}

	return table, nil
}

// parsePrice handles the price-history layout, which already has one row
// per calendar day: the first column holds dates, the remaining columns
// hold metric values.
func (p *Parser) parsePrice(header []string, body [][]string) (*timeseries.Table, error) {
	names := make([]string, 0, len(header)-1)
	for _, label := range header[1:] {
		names = append(names, utils.Slugify(label))
	}
	hasContent := make([]bool, len(names))

	type row struct {
		date   time.Time
		values []float64
	}
	var parsed []row
	for _, rec := range body {
		if len(rec) == 0 {
			continue
		}
		date, err := time.Parse(priceDateFormat, strings.TrimSpace(rec[0]))
		if err != nil {
			continue
		}
		values := make([]float64, len(names))
		for i := range names {
			if i+1 < len(rec) {
				if strings.TrimSpace(rec[i+1]) != "" {
					hasContent[i] = true
				}
				values[i] = parseCell(rec[i+1])
			} else {
				values[i] = math.NaN()
			}
		}
		parsed = append(parsed, row{date: date, values: values})
	}
	if len(parsed) == 0 {
		return timeseries.NewEmpty(), nil
	}

	dates := make([]time.Time, len(parsed))
	byDate := make(map[time.Time][]float64, len(parsed))
	for i, r := range parsed {
		dates[i] = r.date
		byDate[r.date] = r.values
	}
	table := timeseries.New(dates)

	for i, name := range names {
		if name == "" || !hasContent[i] {
			continue
		}
		values := make([]float64, len(table.Dates()))
		for j, date := range table.Dates() {
			values[j] = byDate[date][i]
		}
		if err := table.SetColumn(name, values); err != nil {
			return nil, err
		}
	}

	return table, nil
}

// normalizeUnits applies the "-mil" suffix convention: values are stored
// in millions, so the column is scaled by 1e6 and renamed without the
// suffix.
func normalizeUnits(table *timeseries.Table) {
	for _, name := range table.Columns() {
		if !strings.HasSuffix(name, milSuffix) {
			continue
		}
		values := table.Column(name)
		for i := range values {
			values[i] *= 1e6
		}
		_ = table.SetColumn(name, values)
		table.RenameColumn(name, strings.TrimSuffix(name, milSuffix))
	}
}

// parseCell strips thousands separators and coerces a cell to numeric.
// Non-numeric cells, including empty ones, become NaN rather than errors.
func parseCell(cell string) float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	if cleaned == "" {
		return math.NaN()
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return math.NaN()
	}
	return value
}

// skipLines drops n physical lines from the start of the export.
func skipLines(data []byte, n int) []byte {
	for i := 0; i < n; i++ {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return nil
		}
		data = data[idx+1:]
	}
	return data
}

func isBlankRow(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
