package sec

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tomhaines/filingfacts/internal/models"
)

// AmbiguityError signals that a legal-name lookup matched more than one
// filer. Candidates are ranked alphabetically; interactive disambiguation is
// a caller concern.
type AmbiguityError struct {
	Input      string
	Candidates []models.CompanyRecord
}

func (e *AmbiguityError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = fmt.Sprintf("%s (%s)", c.Name, c.Ticker)
	}
	return fmt.Sprintf("sec: ambiguous company input %q: candidates: %s", e.Input, strings.Join(names, "; "))
}

type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// LoadTickerMapping fetches the SEC company-ticker mapping as records with
// zero-padded CIKs, sorted by legal name for deterministic candidate order.
func (c *Client) LoadTickerMapping(ctx context.Context) ([]models.CompanyRecord, error) {
	var raw map[string]tickerEntry
	url := c.baseURL + "/files/company_tickers.json"
	if err := c.GetJSON(ctx, url, true, &raw); err != nil {
		return nil, err
	}

	records := make([]models.CompanyRecord, 0, len(raw))
	for _, e := range raw {
		records = append(records, models.CompanyRecord{
			CIK:    padCIK(strconv.FormatInt(e.CIK, 10)),
			Ticker: e.Ticker,
			Name:   e.Title,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Name != records[j].Name {
			return records[i].Name < records[j].Name
		}
		return records[i].Ticker < records[j].Ticker
	})
	return records, nil
}

const maxNameCandidates = 5

// ResolveCompany maps a user-supplied identifier to a filer. An exact ticker
// match wins outright; otherwise a case-insensitive substring match against
// legal names yields up to five candidates. Zero candidates is a hard
// failure naming the input; multiple candidates return *AmbiguityError.
func (c *Client) ResolveCompany(ctx context.Context, input string) (models.CompanyRecord, error) {
	records, err := c.LoadTickerMapping(ctx)
	if err != nil {
		return models.CompanyRecord{}, err
	}

	for _, r := range records {
		if strings.EqualFold(r.Ticker, input) {
			return r, nil
		}
	}

	needle := strings.ToLower(strings.TrimSpace(input))
	var candidates []models.CompanyRecord
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Name), needle) {
			candidates = append(candidates, r)
			if len(candidates) == maxNameCandidates {
				break
			}
		}
	}

	switch len(candidates) {
	case 0:
		return models.CompanyRecord{}, fmt.Errorf("sec: could not resolve company input: %s", input)
	case 1:
		return candidates[0], nil
	default:
		return models.CompanyRecord{}, &AmbiguityError{Input: input, Candidates: candidates}
	}
}

// submissionsDoc mirrors the columnar layout of the submissions feed.
type submissionsDoc struct {
	Filings struct {
		Recent recentFilings `json:"recent"`
	} `json:"filings"`
}

type recentFilings struct {
	Form            []string `json:"form"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	AccessionNumber []string `json:"accessionNumber"`
	PrimaryDocument []string `json:"primaryDocument"`
	FY              []*int   `json:"fy"`
	FP              []string `json:"fp"`
}

func (r recentFilings) at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func (r recentFilings) filing(i int) models.Filing {
	f := models.Filing{
		Form:       r.at(r.Form, i),
		FilingDate: r.at(r.FilingDate, i),
		ReportDate: r.at(r.ReportDate, i),
		Accession:  r.at(r.AccessionNumber, i),
		PrimaryDoc: r.at(r.PrimaryDocument, i),
		FiscalPer:  r.at(r.FP, i),
	}
	if i < len(r.FY) && r.FY[i] != nil {
		f.FiscalYear = *r.FY[i]
	}
	return f
}

// GetFilings lists a filer's periodic filings within the lookback window.
func (c *Client) GetFilings(ctx context.Context, cik string, years int) ([]models.Filing, error) {
	var doc submissionsDoc
	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataBaseURL, padCIK(cik))
	if err := c.GetJSON(ctx, url, true, &doc); err != nil {
		return nil, err
	}
	return collectFilingsAt(doc, years, time.Now().UTC()), nil
}

// collectFilingsAt filters the submissions feed down to 10-K/10-Q filings
// inside the lookback window. A filing is excluded only when both its
// filing-date year and its fiscal year (when known) precede the cutoff, so a
// filing stays whenever either signal suggests recency.
func collectFilingsAt(doc submissionsDoc, years int, now time.Time) []models.Filing {
	recent := doc.Filings.Recent
	minYear := now.Year() - years

	var out []models.Filing
	for i := range recent.Form {
		f := recent.filing(i)
		if f.Form != models.FormAnnual && f.Form != models.FormQuarterly {
			continue
		}
		filingYear := yearOf(f.FilingDate)
		if filingYear != 0 && filingYear < minYear && f.FiscalYear != 0 && f.FiscalYear < minYear {
			continue
		}
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PeriodEnd() != b.PeriodEnd() {
			return a.PeriodEnd() < b.PeriodEnd()
		}
		return a.Form < b.Form
	})
	return out
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

// LimitScope bounds the download surface: all annual filings are kept, but
// only the maxQuarters most recent quarterly filings survive. Output is
// re-sorted ascending by (report-or-filing date, form).
func LimitScope(filings []models.Filing, maxQuarters int) []models.Filing {
	var annual, quarterly []models.Filing
	for _, f := range filings {
		if f.IsQuarterly() {
			quarterly = append(quarterly, f)
		} else {
			annual = append(annual, f)
		}
	}

	sort.SliceStable(quarterly, func(i, j int) bool {
		return quarterly[i].PeriodEnd() > quarterly[j].PeriodEnd()
	})
	if len(quarterly) > maxQuarters {
		quarterly = quarterly[:maxQuarters]
	}

	out := append(append([]models.Filing(nil), annual...), quarterly...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PeriodEnd() != b.PeriodEnd() {
			return a.PeriodEnd() < b.PeriodEnd()
		}
		return a.Form < b.Form
	})
	return out
}

// GetCompanyFacts fetches the companywide structured facts feed, used once
// per run for primary metric extraction.
func (c *Client) GetCompanyFacts(ctx context.Context, cik string) (*models.CompanyFacts, error) {
	var facts models.CompanyFacts
	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.dataBaseURL, padCIK(cik))
	if err := c.GetJSON(ctx, url, true, &facts); err != nil {
		return nil, err
	}
	return &facts, nil
}
