package report

import (
	"math"
	"time"
)

// Trend classifications for a metric series.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendFlat      = "flat"
	TrendMixed     = "mixed"
	TrendUnknown   = "unknown"
)

// GrowthPoint is one observation of a metric with its year-over-year change.
// YoYPct is nil for the first observation or when the prior value is zero.
type GrowthPoint struct {
	PeriodEnd time.Time
	Value     float64
	YoYPct    *float64
}

// TrendSummary classifies the direction of the headline series. Computed
// from annual Total rows only so quarterly seasonality does not skew the
// classification.
type TrendSummary struct {
	RevenueTrend        string
	MarginTrend         string
	CapexIntensityTrend string
	RevenueCAGRPct      *float64
}

// GrowthSeries returns the Total observations of a metric in period order
// with period-over-period growth attached.
func GrowthSeries(rows []TidyRow, metric string) []GrowthPoint {
	series := totalSeries(rows, metric)
	points := make([]GrowthPoint, 0, len(series))
	for i, r := range series {
		p := GrowthPoint{PeriodEnd: r.PeriodEnd, Value: r.Value}
		if i > 0 && series[i-1].Value != 0 {
			pct := (r.Value/series[i-1].Value - 1) * 100
			p.YoYPct = &pct
		}
		points = append(points, p)
	}
	return points
}

// CAGR returns the compound annual growth rate in percent between the first
// and last value over the given number of years. Requires positive endpoints.
func CAGR(first, last float64, years int) (float64, bool) {
	if years < 1 || first <= 0 || last <= 0 {
		return 0, false
	}
	return (math.Pow(last/first, 1/float64(years)) - 1) * 100, true
}

// ClassifyTrend labels a series by the sign of its consecutive deltas.
// Deltas within flatTolerance (relative) count as flat.
func ClassifyTrend(values []float64) string {
	const flatTolerance = 0.01

	if len(values) < 2 {
		return TrendUnknown
	}
	ups, downs := 0, 0
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		delta := values[i] - prev
		if prev != 0 && math.Abs(delta/prev) < flatTolerance {
			continue
		}
		if delta > 0 {
			ups++
		} else if delta < 0 {
			downs++
		}
	}
	switch {
	case ups == 0 && downs == 0:
		return TrendFlat
	case downs == 0:
		return TrendImproving
	case ups == 0:
		return TrendDeclining
	}
	return TrendMixed
}

// ComputeTrends derives the trend summary from tidy rows.
func ComputeTrends(rows []TidyRow) TrendSummary {
	annual := FilterByGranularity(rows, GranularityAnnual)

	revenue := totalSeries(annual, "revenue")
	profit := totalSeries(annual, "profit_net_income")
	capex := totalSeries(annual, "capex")

	revenueByPeriod := make(map[time.Time]float64, len(revenue))
	revenueValues := make([]float64, 0, len(revenue))
	for _, r := range revenue {
		revenueByPeriod[r.PeriodEnd] = r.Value
		revenueValues = append(revenueValues, r.Value)
	}

	ratioSeries := func(numerator []TidyRow) []float64 {
		var out []float64
		for _, r := range numerator {
			rev, ok := revenueByPeriod[r.PeriodEnd]
			if !ok || rev == 0 {
				continue
			}
			out = append(out, r.Value/rev)
		}
		return out
	}

	summary := TrendSummary{
		RevenueTrend:        ClassifyTrend(revenueValues),
		MarginTrend:         ClassifyTrend(ratioSeries(profit)),
		CapexIntensityTrend: ClassifyTrend(ratioSeries(capex)),
	}

	if len(revenue) >= 2 {
		years := revenue[len(revenue)-1].PeriodEnd.Year() - revenue[0].PeriodEnd.Year()
		if years >= 1 {
			if cagr, ok := CAGR(revenue[0].Value, revenue[len(revenue)-1].Value, years); ok {
				summary.RevenueCAGRPct = &cagr
			}
		}
	}
	return summary
}
