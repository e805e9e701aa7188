package models

import "time"

// RawFact is a single reported data point from the companyfacts feed. Fields
// mirror the upstream JSON; Start and End are empty for instant facts.
type RawFact struct {
	Start     string   `json:"start,omitempty"`
	End       string   `json:"end,omitempty"`
	Value     *float64 `json:"val"`
	Accession string   `json:"accn"`
	FY        int      `json:"fy"`
	FP        string   `json:"fp"`
	Form      string   `json:"form"`
	Filed     string   `json:"filed"`
	Frame     string   `json:"frame,omitempty"`
}

// DurationDays returns the fact's reporting duration in days. ok is false for
// instant facts and unparseable dates.
func (f RawFact) DurationDays() (int, bool) {
	if f.Start == "" || f.End == "" {
		return 0, false
	}
	start, err := time.Parse("2006-01-02", f.Start)
	if err != nil {
		return 0, false
	}
	end, err := time.Parse("2006-01-02", f.End)
	if err != nil {
		return 0, false
	}
	return int(end.Sub(start).Hours() / 24), true
}

// FactSeries holds all reported values for one XBRL tag, keyed by unit.
type FactSeries struct {
	Label       string               `json:"label"`
	Description string               `json:"description"`
	Units       map[string][]RawFact `json:"units"`
}

// CompanyFacts is the companywide structured facts feed, fetched once per
// run. Facts are keyed by taxonomy then tag name.
type CompanyFacts struct {
	CIK        int64                            `json:"cik"`
	EntityName string                           `json:"entityName"`
	Facts      map[string]map[string]FactSeries `json:"facts"`
}

// USDFacts returns the USD-denominated facts for a us-gaap tag, or nil when
// the company never reported the tag in USD.
func (c *CompanyFacts) USDFacts(tag string) []RawFact {
	if c == nil {
		return nil
	}
	gaap, ok := c.Facts["us-gaap"]
	if !ok {
		return nil
	}
	series, ok := gaap[tag]
	if !ok {
		return nil
	}
	return series.Units["USD"]
}
