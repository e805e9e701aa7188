// Package models defines data structures for filingfacts
package models

// Supported periodic report form types.
const (
	FormAnnual    = "10-K"
	FormQuarterly = "10-Q"
)

// Filing represents one periodic SEC submission from a company's filing
// catalog. Immutable once constructed; the accession number is globally
// unique.
type Filing struct {
	Form       string `json:"form"`
	FilingDate string `json:"filing_date"` // YYYY-MM-DD
	ReportDate string `json:"report_date"` // YYYY-MM-DD, empty when not reported
	Accession  string `json:"accession"`
	PrimaryDoc string `json:"primary_doc"`
	FiscalYear int    `json:"fiscal_year"`   // 0 when not reported
	FiscalPer  string `json:"fiscal_period"` // raw fp code from the feed (Q1..Q4, FY, or empty)
}

// IsAnnual reports whether the filing is a 10-K.
func (f Filing) IsAnnual() bool {
	return f.Form == FormAnnual
}

// IsQuarterly reports whether the filing is a 10-Q.
func (f Filing) IsQuarterly() bool {
	return f.Form == FormQuarterly
}

// PeriodEnd returns the report date, falling back to the filing date when the
// catalog carries no report date.
func (f Filing) PeriodEnd() string {
	if f.ReportDate != "" {
		return f.ReportDate
	}
	return f.FilingDate
}

// FiscalPeriodLabel normalizes the filing's fiscal period code for the
// payload: 10-Ks are always FY, 10-Qs keep their quarter code when it is one
// of Q1..Q4 and degrade to "Q?" otherwise.
func (f Filing) FiscalPeriodLabel() string {
	if f.IsAnnual() {
		return "FY"
	}
	switch f.FiscalPer {
	case "Q1", "Q2", "Q3", "Q4":
		return f.FiscalPer
	}
	return "Q?"
}

// Ref returns the filing reference embedded in a payload period.
func (f Filing) Ref() FilingRef {
	return FilingRef{
		Form:       f.Form,
		FilingDate: f.FilingDate,
		Accession:  f.Accession,
		PrimaryDoc: f.PrimaryDoc,
	}
}

// FilingRef identifies the filing a payload period was built from.
type FilingRef struct {
	Form       string `json:"form"`
	FilingDate string `json:"filing_date"`
	Accession  string `json:"accession"`
	PrimaryDoc string `json:"primary_doc"`
}
