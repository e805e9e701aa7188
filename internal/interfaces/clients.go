// Package interfaces defines service contracts for filingfacts
package interfaces

import (
	"context"

	"github.com/tomhaines/filingfacts/internal/models"
)

// SECClient provides throttled, cached, byte-budgeted access to SEC EDGAR.
// Cached reads bypass both the throttle and the byte budgets. A client
// instance is not designed for concurrent use against a shared cache path
// without external coordination.
type SECClient interface {
	// Get retrieves a URL, consulting the on-disk cache when useCache is set.
	Get(ctx context.Context, url string, useCache bool) ([]byte, error)

	// GetJSON retrieves a URL and decodes the response into v.
	GetJSON(ctx context.Context, url string, useCache bool, v any) error

	// GetText retrieves a URL as UTF-8 text.
	GetText(ctx context.Context, url string, useCache bool) (string, error)

	// ResolveCompany maps a ticker or legal-name fragment to a filer. An
	// ambiguous name returns *AmbiguityError carrying the ranked candidates.
	ResolveCompany(ctx context.Context, input string) (models.CompanyRecord, error)

	// GetFilings lists the filer's 10-K/10-Q filings within the lookback
	// window, sorted ascending by (report-or-filing date, form).
	GetFilings(ctx context.Context, cik string, years int) ([]models.Filing, error)

	// GetCompanyFacts fetches the companywide structured facts feed.
	GetCompanyFacts(ctx context.Context, cik string) (*models.CompanyFacts, error)

	// ArchiveURL builds the EDGAR archive URL for one filing artifact.
	ArchiveURL(cik, accession, name string) string

	// MaxArtifactBytes returns the per-artifact download cap, used to skip
	// oversized artifacts before fetching them.
	MaxArtifactBytes() int64

	// Stats reports cumulative network usage for the run summary.
	Stats() models.ClientStats

	// ClearCompanyCache removes all cached artifacts for one filer.
	ClearCompanyCache(cik string) error

	// PruneCache evicts cache entries past the age cutoff, then oldest-first
	// until the total size is under budget.
	PruneCache(maxAgeDays int, maxTotalGB float64) error
}
