// Package report shapes the financial payload into tidy rows and renders
// derived artifacts. It consumes the payload contract only and never mutates
// it.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tomhaines/filingfacts/internal/models"
)

// Granularity values for filtering tidy rows.
const (
	GranularityAnnual    = "annual"
	GranularityQuarterly = "quarterly"
)

// TidyRow is one observation of one metric for one (period, segment) pair.
// Totals carry the segment label "Total".
type TidyRow struct {
	PeriodEnd       time.Time
	PeriodType      string // annual | quarterly | unknown
	PeriodLabel     string
	FiscalYear      int
	FiscalPeriodRaw string
	FiscalPeriod    string // normalized
	Metric          string
	Segment         string
	Value           float64
	Unit            string
	Source          string
	Confidence      float64
}

// Meta carries payload-level context alongside the tidy rows.
type Meta struct {
	CompanyName     string
	Ticker          string
	CIK             string
	Accessions      []string
	AsOf            string
	Transformations []string
}

var quarterAliases = map[string]string{
	"Q1": "Q1", "Q01": "Q1", "QTR1": "Q1", "QUARTER1": "Q1", "1": "Q1",
	"Q2": "Q2", "Q02": "Q2", "QTR2": "Q2", "QUARTER2": "Q2", "2": "Q2",
	"Q3": "Q3", "Q03": "Q3", "QTR3": "Q3", "QUARTER3": "Q3", "3": "Q3",
	"Q4": "Q4", "Q04": "Q4", "QTR4": "Q4", "QUARTER4": "Q4", "4": "Q4",
}

// NormalizeFiscalPeriod collapses reporting-period spellings into FY or
// Q1..Q4. Unrecognized codes pass through compacted.
func NormalizeFiscalPeriod(period string) string {
	compact := strings.ToUpper(strings.TrimSpace(period))
	compact = strings.ReplaceAll(compact, " ", "")
	compact = strings.ReplaceAll(compact, "-", "")
	if compact == "" {
		return ""
	}
	if strings.HasPrefix(compact, "FY") || compact == "Y" || compact == "ANNUAL" || compact == "YEAR" {
		return "FY"
	}
	if q, ok := quarterAliases[compact]; ok {
		return q
	}
	return compact
}

func periodType(norm string) string {
	switch norm {
	case "FY":
		return GranularityAnnual
	case "Q1", "Q2", "Q3", "Q4":
		return GranularityQuarterly
	}
	return "unknown"
}

// PeriodLabel renders a display label like FY2024 or "2024 Q3".
func PeriodLabel(fiscalYear int, fiscalPeriod string) string {
	fy := "Unknown"
	if fiscalYear != 0 {
		fy = fmt.Sprintf("%d", fiscalYear)
	}
	norm := NormalizeFiscalPeriod(fiscalPeriod)
	if norm == "FY" {
		return "FY" + fy
	}
	return strings.TrimSpace(fy + " " + norm)
}

var tidyMetricFields = []struct {
	metric   string
	total    func(p models.Period) *models.Metric
	segments func(p models.Period) []models.SegmentMetric
}{
	{"revenue", func(p models.Period) *models.Metric { return p.Revenue }, func(p models.Period) []models.SegmentMetric { return p.RevenueBySegment }},
	{"profit_net_income", func(p models.Period) *models.Metric { return p.Profit }, func(p models.Period) []models.SegmentMetric { return p.ProfitBySegment }},
	{"capex", func(p models.Period) *models.Metric { return p.Capex }, func(p models.Period) []models.SegmentMetric { return p.CapexBySegment }},
}

// PayloadToTidy flattens a payload into tidy rows sorted by
// (period_end, metric, segment). Rows with unparseable period ends are
// dropped and noted in the meta transformations.
func PayloadToTidy(payload *models.FinancialPayload) ([]TidyRow, Meta) {
	var rows []TidyRow
	var transformations []string
	accessionSet := make(map[string]bool)
	dropped := 0

	for _, period := range payload.Periods {
		end, err := time.Parse("2006-01-02", period.PeriodEnd)
		if err != nil {
			dropped++
			continue
		}
		norm := NormalizeFiscalPeriod(period.FiscalPeriod)
		base := TidyRow{
			PeriodEnd:       end,
			PeriodType:      periodType(norm),
			PeriodLabel:     PeriodLabel(period.FiscalYear, period.FiscalPeriod),
			FiscalYear:      period.FiscalYear,
			FiscalPeriodRaw: period.FiscalPeriod,
			FiscalPeriod:    norm,
		}
		if period.Filing.Accession != "" {
			accessionSet[period.Filing.Accession] = true
		}

		for _, field := range tidyMetricFields {
			if m := field.total(period); m != nil {
				row := base
				row.Metric = field.metric
				row.Segment = "Total"
				row.Value = m.Value
				row.Unit = m.Unit
				row.Source = m.Source
				row.Confidence = m.Confidence
				rows = append(rows, row)
			}
			for _, seg := range field.segments(period) {
				row := base
				row.Metric = field.metric
				row.Segment = seg.Segment
				if row.Segment == "" {
					row.Segment = "Unknown"
				}
				row.Value = seg.Value
				row.Unit = seg.Unit
				row.Source = seg.Source
				row.Confidence = seg.Confidence
				rows = append(rows, row)
			}
		}
	}

	if dropped > 0 {
		transformations = append(transformations,
			fmt.Sprintf("Dropped %d period(s) with invalid period_end dates.", dropped))
	}
	if len(rows) == 0 {
		transformations = append(transformations, "No metric rows found in payload; emitted empty tidy set.")
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.PeriodEnd.Equal(b.PeriodEnd) {
			return a.PeriodEnd.Before(b.PeriodEnd)
		}
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		return a.Segment < b.Segment
	})

	accessions := make([]string, 0, len(accessionSet))
	for a := range accessionSet {
		accessions = append(accessions, a)
	}
	sort.Strings(accessions)

	meta := Meta{
		CompanyName:     payload.Company.Name,
		Ticker:          payload.Company.Ticker,
		CIK:             payload.Company.CIK,
		Accessions:      accessions,
		AsOf:            payload.GeneratedAtUTC,
		Transformations: transformations,
	}
	return rows, meta
}

// FilterByGranularity keeps only annual or only quarterly rows.
func FilterByGranularity(rows []TidyRow, granularity string) []TidyRow {
	out := make([]TidyRow, 0, len(rows))
	for _, r := range rows {
		if r.PeriodType == granularity {
			out = append(out, r)
		}
	}
	return out
}

// KPISummary holds the headline figures derived from the latest period. Nil
// fields could not be computed from the available rows.
type KPISummary struct {
	Revenue             *float64
	NetIncome           *float64
	Capex               *float64
	YoYRevenueGrowthPct *float64
	NetMarginPct        *float64
	CapexIntensityPct   *float64
}

// ComputeKPIs derives headline figures from the tidy rows' Total series.
func ComputeKPIs(rows []TidyRow) KPISummary {
	var kpi KPISummary

	revenue := totalSeries(rows, "revenue")
	profit := totalSeries(rows, "profit_net_income")
	capex := totalSeries(rows, "capex")

	if len(revenue) > 0 {
		kpi.Revenue = &revenue[len(revenue)-1].Value
	}
	if len(profit) > 0 {
		kpi.NetIncome = &profit[len(profit)-1].Value
	}
	if len(capex) > 0 {
		kpi.Capex = &capex[len(capex)-1].Value
	}
	if len(revenue) > 1 && revenue[len(revenue)-2].Value != 0 {
		growth := (revenue[len(revenue)-1].Value/revenue[len(revenue)-2].Value - 1) * 100
		kpi.YoYRevenueGrowthPct = &growth
	}
	if kpi.Revenue != nil && kpi.NetIncome != nil && *kpi.Revenue != 0 {
		margin := *kpi.NetIncome / *kpi.Revenue * 100
		kpi.NetMarginPct = &margin
	}
	if kpi.Revenue != nil && kpi.Capex != nil && *kpi.Revenue != 0 {
		intensity := *kpi.Capex / *kpi.Revenue * 100
		kpi.CapexIntensityPct = &intensity
	}
	return kpi
}

// totalSeries returns the Total rows of one metric in period order.
func totalSeries(rows []TidyRow, metric string) []TidyRow {
	var out []TidyRow
	for _, r := range rows {
		if r.Metric == metric && r.Segment == "Total" {
			out = append(out, r)
		}
	}
	return out
}
