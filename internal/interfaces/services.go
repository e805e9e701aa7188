package interfaces

import (
	"context"

	"github.com/tomhaines/filingfacts/internal/models"
)

// ExtractRequest describes one extraction run.
type ExtractRequest struct {
	Company         string // ticker or legal-name fragment
	Years           int    // lookback window
	SegmentsMode    string // none | annual | full
	MaxQuarters     int    // quarterly filings retained after scoping
	IncludeForecast bool
}

// FinancialExtractor assembles the canonical payload for a company. A
// completed run always yields a structurally valid payload; missing data is
// recorded per period, never raised.
type FinancialExtractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*models.FinancialPayload, error)
}
