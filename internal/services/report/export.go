package report

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tomhaines/filingfacts/internal/common"
	"github.com/tomhaines/filingfacts/internal/models"
)

// PayloadFileName is the canonical name of the payload JSON inside a pack.
const PayloadFileName = "extracted_financials.json"

// ArchiveFileName is the name of the zip bundling the pack contents.
const ArchiveFileName = "report_pack.zip"

// Pack describes the artifacts written by ExportReportPack.
type Pack struct {
	Dir         string
	Files       []string // relative names, sorted
	ArchivePath string
}

// Exporter writes report packs to disk.
type Exporter struct {
	logger *common.Logger
}

// NewExporter creates an Exporter. A nil logger falls back to silent.
func NewExporter(logger *common.Logger) *Exporter {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Exporter{logger: logger}
}

// ExportReportPack writes the payload JSON, all renderable figures, and a
// run summary into dir, then bundles them into report_pack.zip. Figures
// that could not be rendered are noted in the summary rather than failing
// the export.
func (e *Exporter) ExportReportPack(dir string, payload *models.FinancialPayload) (*Pack, error) {
	if payload == nil {
		return nil, fmt.Errorf("report: nil payload")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create output dir: %w", err)
	}

	rows, meta := PayloadToTidy(payload)
	charts := RenderAll(rows, displayName(payload))

	var files []string

	payloadJSON, err := MarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, PayloadFileName), payloadJSON, 0o644); err != nil {
		return nil, fmt.Errorf("report: write payload: %w", err)
	}
	files = append(files, PayloadFileName)

	figureNames := make([]string, 0, len(charts.Figures))
	for name := range charts.Figures {
		figureNames = append(figureNames, name)
	}
	sort.Strings(figureNames)
	for _, name := range figureNames {
		fileName := name + ".png"
		if err := os.WriteFile(filepath.Join(dir, fileName), charts.Figures[name], 0o644); err != nil {
			return nil, fmt.Errorf("report: write figure %s: %w", name, err)
		}
		files = append(files, fileName)
	}
	for name, reason := range charts.Missing {
		e.logger.Debug().Str("figure", name).Str("reason", reason).Msg("Figure skipped")
	}

	summary := buildRunSummary(payload, rows, meta, charts)
	if err := os.WriteFile(filepath.Join(dir, "run_summary.txt"), []byte(summary), 0o644); err != nil {
		return nil, fmt.Errorf("report: write run summary: %w", err)
	}
	files = append(files, "run_summary.txt")

	sort.Strings(files)
	archivePath := filepath.Join(dir, ArchiveFileName)
	if err := writeArchive(archivePath, dir, files); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("dir", dir).
		Int("files", len(files)).
		Int("figures", len(charts.Figures)).
		Msg("Report pack exported")

	return &Pack{Dir: dir, Files: files, ArchivePath: archivePath}, nil
}

// MarshalPayload serializes a payload deterministically: indented, with a
// trailing newline. Byte-identical for identical payloads.
func MarshalPayload(payload *models.FinancialPayload) ([]byte, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: marshal payload: %w", err)
	}
	return append(data, '\n'), nil
}

func displayName(payload *models.FinancialPayload) string {
	if payload.Company.Name != "" {
		return payload.Company.Name
	}
	if payload.Company.Ticker != "" {
		return payload.Company.Ticker
	}
	return payload.Company.Input
}

// buildRunSummary renders the human-readable run_summary.txt body.
func buildRunSummary(payload *models.FinancialPayload, rows []TidyRow, meta Meta, charts ChartSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "company: %s\n", displayName(payload))
	fmt.Fprintf(&b, "cik: %s\n", payload.Company.CIK)
	fmt.Fprintf(&b, "generated_at: %s\n", payload.GeneratedAtUTC)
	fmt.Fprintf(&b, "periods: %d\n", len(payload.Periods))
	fmt.Fprintf(&b, "accessions_used: %s\n", strings.Join(meta.Accessions, ", "))

	missingByField := make(map[string]int)
	for _, period := range payload.Periods {
		for _, m := range period.MissingData {
			missingByField[m.Field]++
		}
	}
	fields := make([]string, 0, len(missingByField))
	for f := range missingByField {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%d", f, missingByField[f]))
	}
	fmt.Fprintf(&b, "missing_data_summary: %s\n", strings.Join(parts, ", "))

	trends := ComputeTrends(rows)
	fmt.Fprintf(&b, "revenue_trend: %s\n", trends.RevenueTrend)
	fmt.Fprintf(&b, "margin_trend: %s\n", trends.MarginTrend)
	fmt.Fprintf(&b, "capex_intensity_trend: %s\n", trends.CapexIntensityTrend)
	if trends.RevenueCAGRPct != nil {
		fmt.Fprintf(&b, "revenue_cagr_pct: %.1f\n", *trends.RevenueCAGRPct)
	}

	skipped := make([]string, 0, len(charts.Missing))
	for name := range charts.Missing {
		skipped = append(skipped, name)
	}
	sort.Strings(skipped)
	for _, name := range skipped {
		fmt.Fprintf(&b, "figure_skipped: %s (%s)\n", name, charts.Missing[name])
	}
	for _, note := range meta.Transformations {
		fmt.Fprintf(&b, "transformation: %s\n", note)
	}
	return b.String()
}

// writeArchive zips the named files (relative to dir) in sorted order.
func writeArchive(archivePath, dir string, files []string) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("report: create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			zw.Close()
			return fmt.Errorf("report: read %s for archive: %w", name, err)
		}
		w, err := zw.Create(name)
		if err != nil {
			zw.Close()
			return fmt.Errorf("report: archive entry %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			zw.Close()
			return fmt.Errorf("report: archive write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("report: finalize archive: %w", err)
	}
	return nil
}
