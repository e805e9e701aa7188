package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tomhaines/filingfacts/internal/clients/sec"
	"github.com/tomhaines/filingfacts/internal/common"
	"github.com/tomhaines/filingfacts/internal/interfaces"
	"github.com/tomhaines/filingfacts/internal/models"
)

// Service assembles the canonical financial payload for a company. Fatal
// errors (configuration, resolution, transport, budget) bubble to the
// caller; data absence is absorbed into per-period missing-data entries so a
// completed run always yields a structurally valid payload.
type Service struct {
	client  interfaces.SECClient
	logger  *common.Logger
	aliases TagAliases
}

// ServiceOption configures the service
type ServiceOption func(*Service)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTagAliases overrides the metric tag alias sets
func WithTagAliases(aliases TagAliases) ServiceOption {
	return func(s *Service) {
		s.aliases = aliases
	}
}

// NewService creates the payload assembler
func NewService(client interfaces.SECClient, opts ...ServiceOption) *Service {
	s := &Service{
		client:  client,
		logger:  common.NewSilentLogger(),
		aliases: DefaultTagAliases(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateRequest(req interfaces.ExtractRequest) error {
	switch req.SegmentsMode {
	case common.SegmentsNone, common.SegmentsAnnual, common.SegmentsFull:
	default:
		return fmt.Errorf("extract: invalid segments mode %q (want none, annual or full)", req.SegmentsMode)
	}
	if req.Years < 1 {
		return fmt.Errorf("extract: years must be positive, got %d", req.Years)
	}
	if req.MaxQuarters < 1 {
		return fmt.Errorf("extract: max quarters must be positive, got %d", req.MaxQuarters)
	}
	return nil
}

// Extract runs the full pipeline: resolve company, scope filings, fetch the
// companywide facts feed once, then extract per filing.
func (s *Service) Extract(ctx context.Context, req interfaces.ExtractRequest) (*models.FinancialPayload, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Str("company", req.Company).Logger()

	company, err := s.client.ResolveCompany(ctx, req.Company)
	if err != nil {
		var ambig *sec.AmbiguityError
		if !errors.As(err, &ambig) {
			return nil, err
		}
		// Deterministic top candidate; interactive selection is a caller
		// concern.
		company = ambig.Candidates[0]
		logger.Warn().
			Str("chosen", company.Name).
			Int("candidates", len(ambig.Candidates)).
			Msg("ambiguous company input, using top candidate")
	}

	filings, err := s.client.GetFilings(ctx, company.CIK, req.Years)
	if err != nil {
		return nil, err
	}
	scoped := sec.LimitScope(filings, req.MaxQuarters)
	logger.Info().Int("filings", len(filings)).Int("scoped", len(scoped)).Msg("filing catalog scoped")

	facts, err := s.client.GetCompanyFacts(ctx, company.CIK)
	if err != nil {
		return nil, err
	}

	periods := make([]models.Period, 0, len(scoped))
	for _, filing := range scoped {
		period, err := s.extractPeriod(ctx, company.CIK, filing, facts, req)
		if err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}
	models.SortPeriods(periods)

	payload := &models.FinancialPayload{
		Company: models.Company{
			Input:  req.Company,
			CIK:    company.CIK,
			Name:   company.Name,
			Ticker: company.Ticker,
		},
		GeneratedAtUTC: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Periods:        periods,
	}

	// Run summary is an operational side effect, not part of the payload.
	stats := s.client.Stats()
	logger.Info().
		Int64("bytes_downloaded", stats.BytesDownloaded).
		Int("requests", stats.RequestCount).
		Int("filings_with_artifacts", len(stats.ArtifactsByFiling)).
		Msg("extraction run complete")
	for accession, names := range stats.ArtifactsByFiling {
		logger.Debug().Str("accession", accession).Strs("artifacts", names).Msg("filing artifacts")
	}

	return payload, nil
}

func (s *Service) extractPeriod(ctx context.Context, cik string, filing models.Filing, facts *models.CompanyFacts, req interfaces.ExtractRequest) (models.Period, error) {
	primary, notes, missing := ExtractPrimary(facts, filing, s.aliases)

	var segments SegmentMetrics
	switch {
	case req.SegmentsMode == common.SegmentsNone:
		missing = append(missing, models.MissingData{
			Field:  "segment_metrics",
			Reason: "Segment extraction skipped (segments_mode=none).",
		})
	case req.SegmentsMode == common.SegmentsAnnual && !filing.IsAnnual():
		missing = append(missing, models.MissingData{
			Field:  "segment_metrics",
			Reason: "Segment extraction skipped for quarterly filing (segments_mode=annual).",
		})
	default:
		var segMissing []models.MissingData
		var err error
		segments, segMissing, err = ExtractSegments(ctx, s.client, cik, filing, s.aliases, s.client.MaxArtifactBytes())
		if err != nil {
			return models.Period{}, err
		}
		missing = append(missing, segMissing...)
	}

	var forecasts []models.Forecast
	if req.IncludeForecast {
		var fcMissing []models.MissingData
		var err error
		forecasts, fcMissing, err = ExtractForecast(ctx, s.client, cik, filing)
		if err != nil {
			return models.Period{}, err
		}
		missing = append(missing, fcMissing...)
	} else {
		missing = append(missing, models.MissingData{
			Field:  "forecasted_capex",
			Reason: ForecastDisabledReason,
		})
	}

	end := filing.PeriodEnd()
	return models.Period{
		FiscalYear:   fiscalYear(filing, end),
		FiscalPeriod: filing.FiscalPeriodLabel(),
		PeriodEnd:    end,
		Filing:       filing.Ref(),

		Revenue:          primary.Revenue,
		RevenueBySegment: orEmpty(segments.Revenue),
		Profit:           primary.Profit,
		ProfitBySegment:  orEmpty(segments.Profit),
		Capex:            primary.Capex,
		CapexBySegment:   orEmpty(segments.Capex),

		ForecastedCapex:          orEmptyForecasts(forecasts),
		ForecastedCapexBySegment: []models.SegmentMetric{},

		Notes:       dedupeSorted(notes),
		MissingData: orEmptyMissing(missing),
	}, nil
}

func fiscalYear(filing models.Filing, periodEnd string) int {
	if filing.FiscalYear != 0 {
		return filing.FiscalYear
	}
	if len(periodEnd) >= 4 {
		if y, err := strconv.Atoi(periodEnd[:4]); err == nil {
			return y
		}
	}
	return 0
}

// dedupeSorted returns the unique notes in sorted order; always non-nil so
// the payload serializes an empty array.
func dedupeSorted(notes []string) []string {
	seen := make(map[string]bool, len(notes))
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func orEmpty(rows []models.SegmentMetric) []models.SegmentMetric {
	if rows == nil {
		return []models.SegmentMetric{}
	}
	return rows
}

func orEmptyForecasts(rows []models.Forecast) []models.Forecast {
	if rows == nil {
		return []models.Forecast{}
	}
	return rows
}

func orEmptyMissing(rows []models.MissingData) []models.MissingData {
	if rows == nil {
		return []models.MissingData{}
	}
	return rows
}

// Ensure Service implements FinancialExtractor
var _ interfaces.FinancialExtractor = (*Service)(nil)
