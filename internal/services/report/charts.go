package report

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ChartSet maps figure names to rendered PNG bytes. Figures that could not
// be rendered for lack of data are listed in Missing with a reason.
type ChartSet struct {
	Figures map[string][]byte
	Missing map[string]string
}

// Figure names produced by RenderAll.
const (
	FigureRevenueTrend   = "revenue_trend"
	FigureProfitTrend    = "profit_trend"
	FigureCapexTrend     = "capex_trend"
	FigureCapexIntensity = "capex_intensity"
	FigureSegmentMix     = "revenue_segment_mix"
)

// RenderAll renders every figure it has data for and records the rest as
// missing. It never fails outright; a figure either renders or is explained.
func RenderAll(rows []TidyRow, companyName string) ChartSet {
	set := ChartSet{
		Figures: make(map[string][]byte),
		Missing: make(map[string]string),
	}

	figures := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{FigureRevenueTrend, func() ([]byte, error) {
			return renderMetricTrend(rows, "revenue", companyName+" Revenue", "16a34a")
		}},
		{FigureProfitTrend, func() ([]byte, error) {
			return renderMetricTrend(rows, "profit_net_income", companyName+" Net Income", "2563eb")
		}},
		{FigureCapexTrend, func() ([]byte, error) {
			return renderMetricTrend(rows, "capex", companyName+" Capital Expenditures", "dc2626")
		}},
		{FigureCapexIntensity, func() ([]byte, error) {
			return renderCapexIntensity(rows, companyName)
		}},
		{FigureSegmentMix, func() ([]byte, error) {
			return renderSegmentMix(rows, companyName)
		}},
	}

	for _, fig := range figures {
		png, err := fig.render()
		if err != nil {
			set.Missing[fig.name] = err.Error()
			continue
		}
		set.Figures[fig.name] = png
	}

	return set
}

// renderMetricTrend renders a single-series line chart of a metric's Total
// values over period ends.
func renderMetricTrend(rows []TidyRow, metric, title, hexColor string) ([]byte, error) {
	series := totalSeries(rows, metric)
	if len(series) < 2 {
		return nil, fmt.Errorf("need at least 2 data points for %s, got %d", metric, len(series))
	}

	xValues := make([]time.Time, len(series))
	yValues := make([]float64, len(series))
	for i, r := range series {
		xValues[i] = r.PeriodEnd
		yValues[i] = r.Value
	}

	graph := chart.Chart{
		Title:  title,
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: formatDollarsCompact,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: title,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex(hexColor),
					StrokeWidth: 2.5,
				},
				XValues: xValues,
				YValues: yValues,
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// renderCapexIntensity renders capex as a percentage of revenue for periods
// where both totals exist.
func renderCapexIntensity(rows []TidyRow, companyName string) ([]byte, error) {
	revenueByPeriod := make(map[time.Time]float64)
	for _, r := range totalSeries(rows, "revenue") {
		revenueByPeriod[r.PeriodEnd] = r.Value
	}

	var xValues []time.Time
	var yValues []float64
	for _, r := range totalSeries(rows, "capex") {
		revenue, ok := revenueByPeriod[r.PeriodEnd]
		if !ok || revenue == 0 {
			continue
		}
		xValues = append(xValues, r.PeriodEnd)
		yValues = append(yValues, r.Value/revenue*100)
	}
	if len(xValues) < 2 {
		return nil, fmt.Errorf("need at least 2 periods with both capex and revenue, got %d", len(xValues))
	}

	graph := chart.Chart{
		Title:  companyName + " CAPEX Intensity",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.1f%%", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: "CAPEX / Revenue",
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("d97706"),
					StrokeWidth: 2.5,
				},
				XValues: xValues,
				YValues: yValues,
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// renderSegmentMix renders the latest period's revenue split by segment as a
// bar chart.
func renderSegmentMix(rows []TidyRow, companyName string) ([]byte, error) {
	var latest time.Time
	for _, r := range rows {
		if r.Metric == "revenue" && r.Segment != "Total" && r.PeriodEnd.After(latest) {
			latest = r.PeriodEnd
		}
	}
	if latest.IsZero() {
		return nil, fmt.Errorf("no segment revenue rows available")
	}

	var segments []TidyRow
	for _, r := range rows {
		if r.Metric == "revenue" && r.Segment != "Total" && r.PeriodEnd.Equal(latest) {
			segments = append(segments, r)
		}
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Value > segments[j].Value
	})

	bars := make([]chart.Value, len(segments))
	for i, s := range segments {
		bars[i] = chart.Value{
			Label: s.Segment,
			Value: s.Value,
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex("2563eb"),
				StrokeColor: drawing.ColorFromHex("2563eb"),
			},
		}
	}

	graph := chart.BarChart{
		Title:  fmt.Sprintf("%s Revenue by Segment (%s)", companyName, latest.Format("2006-01-02")),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		BarWidth: 60,
		YAxis: chart.YAxis{
			ValueFormatter: formatDollarsCompact,
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDollarsCompact(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	switch {
	case f >= 1e9 || f <= -1e9:
		return fmt.Sprintf("$%.1fB", f/1e9)
	case f >= 1e6 || f <= -1e6:
		return fmt.Sprintf("$%.0fM", f/1e6)
	default:
		return fmt.Sprintf("$%.0f", f)
	}
}
