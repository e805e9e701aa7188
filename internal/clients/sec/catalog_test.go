package sec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomhaines/filingfacts/internal/models"
)

const tickerFixture = `{
	"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
	"1": {"cik_str": 789019, "ticker": "MSFT", "title": "MICROSOFT CORP"},
	"2": {"cik_str": 1652044, "ticker": "GOOGL", "title": "Alphabet Inc."},
	"3": {"cik_str": 1652045, "ticker": "GOOG", "title": "Alphabet Inc."}
}`

func tickerServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tickerFixture))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestResolveCompany_TickerExactWins(t *testing.T) {
	server := tickerServer(t)
	client := newTestClient(t, server.URL)

	record, err := client.ResolveCompany(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", record.CIK)
	assert.Equal(t, "Apple Inc.", record.Name)
}

func TestResolveCompany_NameSubstring(t *testing.T) {
	server := tickerServer(t)
	client := newTestClient(t, server.URL)

	record, err := client.ResolveCompany(context.Background(), "microsoft")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", record.Ticker)
}

func TestResolveCompany_Ambiguous(t *testing.T) {
	server := tickerServer(t)
	client := newTestClient(t, server.URL)

	_, err := client.ResolveCompany(context.Background(), "alphabet")
	var ambig *AmbiguityError
	require.ErrorAs(t, err, &ambig)
	assert.Len(t, ambig.Candidates, 2)
	// Candidates come back in deterministic (name, ticker) order.
	assert.Equal(t, "GOOG", ambig.Candidates[0].Ticker)
	assert.Equal(t, "GOOGL", ambig.Candidates[1].Ticker)
}

func TestResolveCompany_NoMatch(t *testing.T) {
	server := tickerServer(t)
	client := newTestClient(t, server.URL)

	_, err := client.ResolveCompany(context.Background(), "no such filer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not resolve company input")
}

func intPtr(v int) *int { return &v }

func TestCollectFilingsAt_FiltersAndSorts(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var doc submissionsDoc
	doc.Filings.Recent = recentFilings{
		Form:            []string{"8-K", "10-K", "10-Q", "10-K", "10-Q"},
		FilingDate:      []string{"2025-01-10", "2024-08-01", "2025-02-01", "2018-08-01", "2019-02-01"},
		ReportDate:      []string{"2025-01-09", "2024-06-30", "2024-12-31", "2018-06-30", "2018-12-31"},
		AccessionNumber: []string{"a0", "a1", "a2", "a3", "a4"},
		PrimaryDocument: []string{"d0", "d1", "d2", "d3", "d4"},
		FY:              []*int{nil, intPtr(2024), intPtr(2025), intPtr(2018), intPtr(2024)},
		FP:              []string{"", "FY", "Q2", "FY", "Q2"},
	}

	got := collectFilingsAt(doc, 2, now)

	// 8-K excluded; the 2018 10-K excluded on both signals; the 2019 10-Q
	// kept because its fiscal year says it is recent.
	require.Len(t, got, 3)
	assert.Equal(t, "a4", got[0].Accession)
	assert.Equal(t, "a1", got[1].Accession)
	assert.Equal(t, "a2", got[2].Accession)
}

func TestCollectFilingsAt_SortTieBreaksOnForm(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var doc submissionsDoc
	doc.Filings.Recent = recentFilings{
		Form:            []string{"10-Q", "10-K"},
		FilingDate:      []string{"2024-08-01", "2024-08-02"},
		ReportDate:      []string{"2024-06-30", "2024-06-30"},
		AccessionNumber: []string{"q", "k"},
		PrimaryDocument: []string{"dq", "dk"},
		FY:              []*int{intPtr(2024), intPtr(2024)},
		FP:              []string{"Q3", "FY"},
	}

	got := collectFilingsAt(doc, 2, now)
	require.Len(t, got, 2)
	assert.Equal(t, "k", got[0].Accession)
	assert.Equal(t, "q", got[1].Accession)
}

func TestLimitScope(t *testing.T) {
	filings := []models.Filing{
		{Form: "10-K", ReportDate: "2023-06-30", Accession: "k23"},
		{Form: "10-Q", ReportDate: "2023-09-30", Accession: "q1"},
		{Form: "10-Q", ReportDate: "2023-12-31", Accession: "q2"},
		{Form: "10-Q", ReportDate: "2024-03-31", Accession: "q3"},
		{Form: "10-K", ReportDate: "2024-06-30", Accession: "k24"},
	}

	got := LimitScope(filings, 2)

	require.Len(t, got, 4)
	// Both annuals survive; only the two most recent quarterlies do.
	assert.Equal(t, "k23", got[0].Accession)
	assert.Equal(t, "q2", got[1].Accession)
	assert.Equal(t, "q3", got[2].Accession)
	assert.Equal(t, "k24", got[3].Accession)
}

func TestGetFilings(t *testing.T) {
	mux := http.NewServeMux()
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
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL)
	filings, err := client.GetFilings(context.Background(), "12345", 5)
	require.NoError(t, err)
	require.Len(t, filings, 1)
	assert.Equal(t, "0000012345-24-000001", filings[0].Accession)
	assert.Equal(t, 2024, filings[0].FiscalYear)
}

func TestGetCompanyFacts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/xbrl/companyfacts/CIK0000012345.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cik":12345,"entityName":"Test Co","facts":{"us-gaap":{
			"Revenues":{"units":{"USD":[
				{"start":"2023-07-01","end":"2024-06-30","val":1000,"accn":"0000012345-24-000001","fy":2024,"fp":"FY","form":"10-K","filed":"2024-08-01"}
			]}}
		}}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL)
	facts, err := client.GetCompanyFacts(context.Background(), "12345")
	require.NoError(t, err)

	usd := facts.USDFacts("Revenues")
	require.Len(t, usd, 1)
	require.NotNil(t, usd[0].Value)
	assert.Equal(t, float64(1000), *usd[0].Value)
}
