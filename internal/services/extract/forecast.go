package extract

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/k3a/html2text"

	"github.com/tomhaines/filingfacts/internal/interfaces"
	"github.com/tomhaines/filingfacts/internal/models"
)

const missingForecastReason = "No clearly forward-looking CAPEX guidance sentence found."

// ForecastDisabledReason is recorded on every period when forecast
// extraction is switched off to bound download volume.
const ForecastDisabledReason = "Forecast extraction disabled by configuration."

var (
	capexTermRe   = regexp.MustCompile(`(?i)capital expenditures|capex`)
	forwardCueRe  = regexp.MustCompile(`(?i)expect|plan|anticipate|estimate|will invest|project|guidance`)
	timeframeRe   = regexp.MustCompile(`(?i)fiscal\s+\d{4}|FY\d{2,4}|next\s+(?:fiscal\s+)?year|next\s+12\s+months`)
	currencyNumRe = regexp.MustCompile(`\$?\s*(\d+(?:\.\d+)?)`)
	billionRe     = regexp.MustCompile(`(?i)billion`)
	millionRe     = regexp.MustCompile(`(?i)million`)
)

const maxSnippetLen = 200

// ExtractForecast scans the filing's primary narrative document for
// forward-looking capital-expenditure guidance. Sentences qualify only when
// they carry both a capex term and a forward-looking cue, reducing false
// positives from historical capex mentions. No qualifying sentence fails
// soft with a missing-data entry.
func ExtractForecast(ctx context.Context, client interfaces.SECClient, cik string, filing models.Filing) ([]models.Forecast, []models.MissingData, error) {
	url := client.ArchiveURL(cik, filing.Accession, filing.PrimaryDoc)
	doc, err := client.GetText(ctx, url, true)
	if err != nil {
		if isNotFound(err) {
			return nil, []models.MissingData{{Field: "forecasted_capex", Reason: "Primary narrative document not available for filing."}}, nil
		}
		return nil, nil, err
	}

	text := html2text.HTML2Text(doc)

	var out []models.Forecast
	for _, sentence := range splitSentences(text) {
		if !capexTermRe.MatchString(sentence) || !forwardCueRe.MatchString(sentence) {
			continue
		}
		vmin, vmax, ok := parseMoneyRange(sentence)
		if !ok {
			continue
		}
		timeframe := "unspecified"
		if m := timeframeRe.FindString(sentence); m != "" {
			timeframe = m
		}
		out = append(out, models.Forecast{
			ValueMin:     vmin,
			ValueMax:     vmax,
			Unit:         "USD",
			Timeframe:    timeframe,
			Source:       models.SourceText,
			Snippet:      truncate(strings.TrimSpace(sentence), maxSnippetLen),
			LocationHint: "MD&A > Liquidity and Capital Resources",
			Confidence:   models.ConfidenceForecast,
			Provenance: models.Provenance{
				FilingType: filing.Form,
				Accession:  filing.Accession,
				FilingDate: filing.FilingDate,
				SourceRef:  url,
				Unit:       "USD",
			},
		})
	}

	if len(out) == 0 {
		return nil, []models.MissingData{{Field: "forecasted_capex", Reason: missingForecastReason}}, nil
	}
	return out, nil, nil
}

// splitSentences breaks plain text into sentences at terminal punctuation
// followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && !isSpace(runes[i+1]) {
				continue
			}
			s := strings.TrimSpace(string(runes[start : i+1]))
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// parseMoneyRange finds up to two currency-like numbers in a sentence,
// scaled by a magnitude word when present. One number yields a point
// estimate; two yield an ordered range regardless of their order in text.
func parseMoneyRange(sentence string) (float64, float64, bool) {
	scale := 1.0
	if billionRe.MatchString(sentence) {
		scale = 1e9
	} else if millionRe.MatchString(sentence) {
		scale = 1e6
	}

	matches := currencyNumRe.FindAllStringSubmatch(sentence, 2)
	if len(matches) == 0 {
		return 0, 0, false
	}

	vals := make([]float64, 0, 2)
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		vals = append(vals, v*scale)
	}
	switch len(vals) {
	case 0:
		return 0, 0, false
	case 1:
		return vals[0], vals[0], true
	default:
		sort.Float64s(vals)
		return vals[0], vals[1], true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
