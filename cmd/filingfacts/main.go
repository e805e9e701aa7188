package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tomhaines/filingfacts/internal/clients/sec"
	"github.com/tomhaines/filingfacts/internal/common"
	"github.com/tomhaines/filingfacts/internal/interfaces"
	"github.com/tomhaines/filingfacts/internal/services/extract"
	"github.com/tomhaines/filingfacts/internal/services/report"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		company      = flag.String("company", "", "ticker, company name, or CIK (required)")
		configPath   = flag.String("config", os.Getenv("FILINGFACTS_CONFIG"), "path to TOML config file")
		years        = flag.Int("years", 0, "lookback window in years (overrides config)")
		segmentsMode = flag.String("segments", "", "segment extraction mode: none, annual, or full (overrides config)")
		maxQuarters  = flag.Int("max-quarters", 0, "max quarterly filings to process (overrides config)")
		noForecast   = flag.Bool("no-forecast", false, "skip forward-looking CAPEX guidance extraction")
		outputDir    = flag.String("out", "", "output directory (overrides config)")
		pack         = flag.Bool("report-pack", false, "export charts and zip alongside the payload JSON")
		clearCache   = flag.String("clear-cache", "", "clear cached artifacts for the given CIK and exit")
		pruneAge     = flag.Int("prune-age-days", 0, "prune cache entries older than this many days and exit")
		pruneGB      = flag.Float64("prune-max-gb", 2.0, "cache size cap in GB used with -prune-age-days")
		showVersion  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(common.GetFullVersion())
		return nil
	}

	config, err := common.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(config, *years, *segmentsMode, *maxQuarters, *noForecast, *outputDir)
	if err := config.Extract.Validate(); err != nil {
		return err
	}

	logger := common.NewLogger(config.Logging.Level)

	client, err := sec.New(config.SEC.UserAgent,
		sec.WithBaseURLs(config.SEC.BaseURL, config.SEC.DataBaseURL),
		sec.WithCacheDir(config.SEC.CacheDir),
		sec.WithRateLimit(config.SEC.RateLimit),
		sec.WithTimeout(config.SEC.GetTimeout()),
		sec.WithByteBudgets(
			int64(config.SEC.MaxArtifactMB*float64(1<<20)),
			int64(config.SEC.MaxRunMB*float64(1<<20)),
		),
		sec.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	if *clearCache != "" {
		if err := client.ClearCompanyCache(*clearCache); err != nil {
			return err
		}
		logger.Info().Str("cik", *clearCache).Msg("Company cache cleared")
		return nil
	}
	if *pruneAge > 0 {
		if err := client.PruneCache(*pruneAge, *pruneGB); err != nil {
			return err
		}
		logger.Info().Int("max_age_days", *pruneAge).Float64("max_gb", *pruneGB).Msg("Cache pruned")
		return nil
	}

	if *company == "" {
		flag.Usage()
		return fmt.Errorf("-company is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service := extract.NewService(client, extract.WithLogger(logger))
	runner := extract.NewRunCache(service)

	req := interfaces.ExtractRequest{
		Company:         *company,
		Years:           config.Extract.Years,
		SegmentsMode:    config.Extract.SegmentsMode,
		MaxQuarters:     config.Extract.MaxQuarters,
		IncludeForecast: config.Extract.IncludeForecast,
	}

	payload, err := runner.Extract(ctx, req, config.Extract.PreferCache)
	if err != nil {
		return err
	}

	runID := extract.RunID(*company, config.Extract.Years, payload)
	outDir := filepath.Join(config.Report.OutputDir, runID)

	if *pack {
		exporter := report.NewExporter(logger)
		result, err := exporter.ExportReportPack(outDir, payload)
		if err != nil {
			return err
		}
		logger.Info().Str("archive", result.ArchivePath).Msg("Run complete")
		return nil
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := report.MarshalPayload(payload)
	if err != nil {
		return err
	}
	outPath := filepath.Join(outDir, report.PayloadFileName)
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	logger.Info().Str("path", outPath).Int("periods", len(payload.Periods)).Msg("Run complete")
	return nil
}

func applyFlagOverrides(config *common.Config, years int, segmentsMode string, maxQuarters int, noForecast bool, outputDir string) {
	if years > 0 {
		config.Extract.Years = years
	}
	if segmentsMode != "" {
		config.Extract.SegmentsMode = segmentsMode
	}
	if maxQuarters > 0 {
		config.Extract.MaxQuarters = maxQuarters
	}
	if noForecast {
		config.Extract.IncludeForecast = false
	}
	if outputDir != "" {
		config.Report.OutputDir = outputDir
	}
}
