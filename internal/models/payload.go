package models

import "sort"

// Company identifies the resolved filer in the payload.
type Company struct {
	Input  string `json:"input"`
	CIK    string `json:"cik"`
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
}

// CompanyRecord is one row of the SEC ticker-to-CIK mapping. CIK is
// zero-padded to 10 digits.
type CompanyRecord struct {
	CIK    string `json:"cik"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// Period is the assembled per-filing record. Exactly one Filing backs each
// Period; no Period synthesizes data across filings. Consumers must treat it
// as immutable.
type Period struct {
	FiscalYear   int     `json:"fiscal_year"`
	FiscalPeriod string  `json:"fiscal_period"` // FY, Q1..Q4 or Q?
	PeriodStart  *string `json:"period_start"`  // always null; duration starts are not recovered
	PeriodEnd    string  `json:"period_end"`

	Filing FilingRef `json:"filing"`

	Revenue          *Metric         `json:"revenue"`
	RevenueBySegment []SegmentMetric `json:"revenue_by_segment"`
	Profit           *Metric         `json:"profit_net_income"`
	ProfitBySegment  []SegmentMetric `json:"profit_by_segment"`
	Capex            *Metric         `json:"capex"`
	CapexBySegment   []SegmentMetric `json:"capex_by_segment"`

	ForecastedCapex          []Forecast      `json:"forecasted_capex"`
	ForecastedCapexBySegment []SegmentMetric `json:"forecasted_capex_by_segment"`

	Notes       []string      `json:"notes"`
	MissingData []MissingData `json:"missing_data"`
}

// FinancialPayload is the top-level artifact and the sole cross-boundary
// contract handed to the visualization layer.
type FinancialPayload struct {
	Company        Company  `json:"company"`
	GeneratedAtUTC string   `json:"generated_at_utc"`
	Periods        []Period `json:"periods"`
}

// SortPeriods orders periods by (fiscal_year, fiscal_period, period_end)
// ascending, the payload's ordering invariant.
func SortPeriods(periods []Period) {
	sort.SliceStable(periods, func(i, j int) bool {
		a, b := periods[i], periods[j]
		if a.FiscalYear != b.FiscalYear {
			return a.FiscalYear < b.FiscalYear
		}
		if a.FiscalPeriod != b.FiscalPeriod {
			return a.FiscalPeriod < b.FiscalPeriod
		}
		return a.PeriodEnd < b.PeriodEnd
	})
}

// ClientStats reports a fetch client's cumulative network usage for the
// end-of-run summary.
type ClientStats struct {
	BytesDownloaded   int64               `json:"bytes_downloaded"`
	RequestCount      int                 `json:"request_count"`
	ArtifactsByFiling map[string][]string `json:"artifacts_by_filing"`
}
