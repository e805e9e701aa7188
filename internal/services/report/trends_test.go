package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTrend(t *testing.T) {
	assert.Equal(t, TrendImproving, ClassifyTrend([]float64{1, 2, 3}))
	assert.Equal(t, TrendDeclining, ClassifyTrend([]float64{3, 2, 1}))
	assert.Equal(t, TrendMixed, ClassifyTrend([]float64{1, 3, 2}))
	assert.Equal(t, TrendFlat, ClassifyTrend([]float64{100, 100.5, 100}))
	assert.Equal(t, TrendUnknown, ClassifyTrend([]float64{1}))
	assert.Equal(t, TrendUnknown, ClassifyTrend(nil))
}

func TestCAGR(t *testing.T) {
	got, ok := CAGR(100, 400, 2)
	require.True(t, ok)
	assert.InDelta(t, 100.0, got, 1e-9)

	got, ok = CAGR(100, 121, 2)
	require.True(t, ok)
	assert.InDelta(t, 10.0, got, 1e-9)

	_, ok = CAGR(0, 100, 2)
	assert.False(t, ok)
	_, ok = CAGR(100, -5, 2)
	assert.False(t, ok)
	_, ok = CAGR(100, 200, 0)
	assert.False(t, ok)
}

func TestGrowthSeries(t *testing.T) {
	rows, _ := PayloadToTidy(fixturePayload())
	annual := FilterByGranularity(rows, GranularityAnnual)

	points := GrowthSeries(annual, "revenue")
	require.Len(t, points, 2)
	assert.Nil(t, points[0].YoYPct)
	require.NotNil(t, points[1].YoYPct)
	assert.InDelta(t, 100.0, *points[1].YoYPct, 1e-9)
}

func TestComputeTrends(t *testing.T) {
	rows, _ := PayloadToTidy(fixturePayload())

	trends := ComputeTrends(rows)

	// Revenue 100 -> 200; margin 5% -> 10%; capex intensity 8% -> 5%.
	assert.Equal(t, TrendImproving, trends.RevenueTrend)
	assert.Equal(t, TrendImproving, trends.MarginTrend)
	assert.Equal(t, TrendDeclining, trends.CapexIntensityTrend)
	require.NotNil(t, trends.RevenueCAGRPct)
	assert.InDelta(t, 100.0, *trends.RevenueCAGRPct, 1e-9)
}

func TestComputeTrends_Sparse(t *testing.T) {
	trends := ComputeTrends(nil)
	assert.Equal(t, TrendUnknown, trends.RevenueTrend)
	assert.Nil(t, trends.RevenueCAGRPct)
}
