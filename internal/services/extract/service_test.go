package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomhaines/filingfacts/internal/clients/sec"
	"github.com/tomhaines/filingfacts/internal/common"
	"github.com/tomhaines/filingfacts/internal/interfaces"
	"github.com/tomhaines/filingfacts/internal/models"
)

// edgarFixture serves a minimal but complete EDGAR surface for one filer
// with a single annual filing.
func edgarFixture(t *testing.T) *sec.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"0": {"cik_str": 12345, "ticker": "ACME", "title": "Acme Corp"}}`))
	})
	mux.HandleFunc("/submissions/CIK0000012345.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"filings":{"recent":{
			"form":["10-K"],
			"filingDate":["2024-08-01"],
			"reportDate":["2024-06-30"],
			"accessionNumber":["0000012345-24-000001"],
			"primaryDocument":["report.htm"],
			"fy":[2024],
			"fp":["FY"]
		}}}`))
	})
	mux.HandleFunc("/api/xbrl/companyfacts/CIK0000012345.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cik":12345,"entityName":"Acme Corp","facts":{"us-gaap":{
			"Revenues":{"units":{"USD":[{"start":"2023-07-01","end":"2024-06-30","val":100,"accn":"0000012345-24-000001","fy":2024,"fp":"FY","form":"10-K","filed":"2024-08-01"}]}},
			"NetIncomeLoss":{"units":{"USD":[{"start":"2023-07-01","end":"2024-06-30","val":10,"accn":"0000012345-24-000001","fy":2024,"fp":"FY","form":"10-K","filed":"2024-08-01"}]}},
			"PaymentsToAcquirePropertyPlantAndEquipment":{"units":{"USD":[{"start":"2023-07-01","end":"2024-06-30","val":5,"accn":"0000012345-24-000001","fy":2024,"fp":"FY","form":"10-K","filed":"2024-08-01"}]}}
		}}}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := sec.New("test test@example.com",
		sec.WithBaseURLs(server.URL, server.URL),
		sec.WithCacheDir(t.TempDir()),
		sec.WithRateLimit(1000),
	)
	require.NoError(t, err)
	return client
}

func baseRequest() interfaces.ExtractRequest {
	return interfaces.ExtractRequest{
		Company:      "ACME",
		Years:        5,
		SegmentsMode: common.SegmentsNone,
		MaxQuarters:  8,
	}
}

func TestExtract_SegmentsModeNone(t *testing.T) {
	client := edgarFixture(t)
	service := NewService(client)

	payload, err := service.Extract(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, "ACME", payload.Company.Input)
	assert.Equal(t, "0000012345", payload.Company.CIK)
	assert.Equal(t, "Acme Corp", payload.Company.Name)
	assert.NotEmpty(t, payload.GeneratedAtUTC)

	require.Len(t, payload.Periods, 1)
	period := payload.Periods[0]
	assert.Equal(t, 2024, period.FiscalYear)
	assert.Equal(t, "FY", period.FiscalPeriod)
	assert.Nil(t, period.PeriodStart)
	assert.Equal(t, "2024-06-30", period.PeriodEnd)

	require.NotNil(t, period.Revenue)
	assert.Equal(t, float64(100), period.Revenue.Value)
	require.NotNil(t, period.Profit)
	assert.Equal(t, float64(10), period.Profit.Value)
	require.NotNil(t, period.Capex)
	assert.Equal(t, float64(5), period.Capex.Value)
	assert.Equal(t, "cash_paid_for_ppe", period.Capex.CapexDefinition)

	// Arrays are always present, never null.
	assert.NotNil(t, period.RevenueBySegment)
	assert.Empty(t, period.RevenueBySegment)
	assert.NotNil(t, period.Notes)

	var segmentReasons []string
	for _, m := range period.MissingData {
		if m.Field == "segment_metrics" {
			segmentReasons = append(segmentReasons, m.Reason)
		}
	}
	require.Len(t, segmentReasons, 1)
	assert.Contains(t, segmentReasons[0], "segments_mode=none")
}

func TestExtract_ForecastDisabled(t *testing.T) {
	client := edgarFixture(t)
	service := NewService(client)

	req := baseRequest()
	req.IncludeForecast = false

	payload, err := service.Extract(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, payload.Periods, 1)

	var reasons []string
	for _, m := range payload.Periods[0].MissingData {
		if m.Field == "forecasted_capex" {
			reasons = append(reasons, m.Reason)
		}
	}
	require.Len(t, reasons, 1)
	assert.Equal(t, ForecastDisabledReason, reasons[0])
}

func TestExtract_Idempotent(t *testing.T) {
	client := edgarFixture(t)
	service := NewService(client)

	first, err := service.Extract(context.Background(), baseRequest())
	require.NoError(t, err)
	second, err := service.Extract(context.Background(), baseRequest())
	require.NoError(t, err)

	// Byte-identical apart from the generation timestamp.
	first.GeneratedAtUTC = ""
	second.GeneratedAtUTC = ""
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtract_InvalidRequest(t *testing.T) {
	service := NewService(edgarFixture(t))

	req := baseRequest()
	req.SegmentsMode = "quarterly"
	_, err := service.Extract(context.Background(), req)
	assert.Error(t, err)

	req = baseRequest()
	req.Years = 0
	_, err = service.Extract(context.Background(), req)
	assert.Error(t, err)
}

// countingExtractor counts pass-throughs for run-cache tests.
type countingExtractor struct {
	mu    sync.Mutex
	calls int
}

func (c *countingExtractor) Extract(ctx context.Context, req interfaces.ExtractRequest) (*models.FinancialPayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &models.FinancialPayload{
		Company: models.Company{Input: req.Company},
		Periods: []models.Period{},
	}, nil
}

func TestRunCache_MemoizesIdenticalRequests(t *testing.T) {
	counter := &countingExtractor{}
	cache := NewRunCache(counter)

	_, err := cache.Extract(context.Background(), baseRequest(), true)
	require.NoError(t, err)
	_, err = cache.Extract(context.Background(), baseRequest(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, counter.calls)

	other := baseRequest()
	other.Years = 3
	_, err = cache.Extract(context.Background(), other, true)
	require.NoError(t, err)
	assert.Equal(t, 2, counter.calls)
}

func TestRunCache_BypassClearsMemo(t *testing.T) {
	counter := &countingExtractor{}
	cache := NewRunCache(counter)

	_, err := cache.Extract(context.Background(), baseRequest(), true)
	require.NoError(t, err)
	_, err = cache.Extract(context.Background(), baseRequest(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, counter.calls)

	// The bypassing run repopulates the memo.
	_, err = cache.Extract(context.Background(), baseRequest(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, counter.calls)
}

func TestRunID_Deterministic(t *testing.T) {
	payload := &models.FinancialPayload{Company: models.Company{Ticker: "ACME"}}

	a := RunID("ACME", 5, payload)
	b := RunID("ACME", 5, payload)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "acme_5y_")

	c := RunID("ACME", 3, payload)
	assert.NotEqual(t, a, c)
}
