package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tomhaines/filingfacts/internal/models"
)

// maxQuarterDays is the duration ceiling for a single-quarter fact, with
// slack for reporting variance. Facts longer than this on a quarterly filing
// are treated as year-to-date accumulations. Tunable, not load-bearing
// precision; 53-week fiscal years sit close to the line.
const maxQuarterDays = 105

const ytdNote = "Quarter appears YTD; no safe quarter-only conversion available."

// PrimaryMetrics holds the per-filing totals chosen from the companyfacts
// feed. Nil fields have a matching missing-data entry.
type PrimaryMetrics struct {
	Revenue *models.Metric
	Profit  *models.Metric
	Capex   *models.Metric
}

// ExtractPrimary selects the best-matching structured fact per target metric
// for one filing, with tag-alias fallback and duration-based tie-breaking.
// Data absence never errors; it is reported through the missing list.
func ExtractPrimary(facts *models.CompanyFacts, filing models.Filing, aliases TagAliases) (PrimaryMetrics, []string, []models.MissingData) {
	var notes []string
	var missing []models.MissingData

	pick := func(tags []string, capexDef string) *models.Metric {
		for _, tag := range tags {
			fact, ns := selectFact(facts.USDFacts(tag), filing)
			notes = append(notes, ns...)
			if fact == nil || fact.Value == nil {
				continue
			}
			return &models.Metric{
				Value:           *fact.Value,
				Unit:            "USD",
				XBRLTag:         tag,
				Source:          models.SourceXBRL,
				Confidence:      models.ConfidencePrimary,
				CapexDefinition: capexDef,
				Provenance: models.Provenance{
					FilingType: filing.Form,
					Accession:  filing.Accession,
					FilingDate: filing.FilingDate,
					SourceRef:  "us-gaap:" + tag,
					Unit:       "USD",
				},
			}
		}
		return nil
	}

	miss := func(field string, tags []string) models.MissingData {
		return models.MissingData{
			Field:  field,
			Reason: fmt.Sprintf("No matching XBRL facts found for tags: %s", strings.Join(tags, ", ")),
		}
	}

	var out PrimaryMetrics

	if out.Revenue = pick(aliases.Revenue, ""); out.Revenue == nil {
		missing = append(missing, miss("revenue", aliases.Revenue))
	}
	if out.Profit = pick(aliases.Profit, ""); out.Profit == nil {
		missing = append(missing, miss("profit_net_income", aliases.Profit))
	}

	// Capex tiers carry different semantics; fall through to the next tier
	// only when the previous one produced nothing, and record which
	// definition supplied the value.
	var capexTags []string
	for _, tier := range aliases.CapexTiers {
		capexTags = append(capexTags, tier.Tags...)
		if out.Capex == nil {
			out.Capex = pick(tier.Tags, tier.Definition)
		}
	}
	if out.Capex == nil {
		missing = append(missing, miss("capex", capexTags))
	}

	return out, notes, missing
}

// selectFact picks the single best candidate among a tag's reported facts
// for the given filing.
//
// Candidates must match the filing's accession exactly; when none do, a
// looser (report date, form) match applies since the facts feed does not
// always carry an accession on every entry. Quarterly filings prefer
// candidates within a single-quarter duration; when all candidates run
// longer, every candidate is kept and a YTD note is surfaced instead of
// silently converting. The shortest duration wins, ties broken by latest end
// date, then by original feed order.
func selectFact(facts []models.RawFact, filing models.Filing) (*models.RawFact, []string) {
	var notes []string

	var cands []models.RawFact
	for _, f := range facts {
		if f.Accession == filing.Accession {
			cands = append(cands, f)
		}
	}
	if len(cands) == 0 && filing.ReportDate != "" {
		for _, f := range facts {
			if f.End == filing.ReportDate && f.Form == filing.Form {
				cands = append(cands, f)
			}
		}
	}
	if len(cands) == 0 {
		return nil, notes
	}

	if filing.IsQuarterly() {
		var quarter []models.RawFact
		for _, f := range cands {
			if d, ok := f.DurationDays(); ok && d <= maxQuarterDays {
				quarter = append(quarter, f)
			}
		}
		if len(quarter) > 0 {
			cands = quarter
		} else {
			notes = append(notes, ytdNote)
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		di := durationOrMax(cands[i])
		dj := durationOrMax(cands[j])
		if di != dj {
			return di < dj
		}
		return cands[i].End > cands[j].End
	})
	return &cands[0], notes
}

func durationOrMax(f models.RawFact) int {
	if d, ok := f.DurationDays(); ok {
		return d
	}
	return 1 << 30
}
