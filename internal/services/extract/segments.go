package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"encoding/xml"

	"github.com/tomhaines/filingfacts/internal/clients/sec"
	"github.com/tomhaines/filingfacts/internal/interfaces"
	"github.com/tomhaines/filingfacts/internal/models"
)

// SegmentMetrics holds the per-segment breakdowns recovered from a filing's
// XBRL instance document.
type SegmentMetrics struct {
	Revenue []models.SegmentMetric
	Profit  []models.SegmentMetric
	Capex   []models.SegmentMetric
}

const missingInstanceReason = "XBRL instance XML not found for filing."
const missingSegmentFactsReason = "No dimensional facts found in XBRL instance for this filing."

// ExtractSegments recovers per-segment metric breakdowns from the filing's
// raw instance document. A missing or unusable instance document fails soft
// with a missing-data entry; transport and budget failures propagate.
func ExtractSegments(ctx context.Context, client interfaces.SECClient, cik string, filing models.Filing, aliases TagAliases, maxArtifactBytes int64) (SegmentMetrics, []models.MissingData, error) {
	var out SegmentMetrics

	instanceURL, err := findInstanceDoc(ctx, client, cik, filing, maxArtifactBytes)
	if err != nil {
		return out, nil, err
	}
	if instanceURL == "" {
		return out, []models.MissingData{{Field: "segment_metrics", Reason: missingInstanceReason}}, nil
	}

	raw, err := client.Get(ctx, instanceURL, true)
	if err != nil {
		if isNotFound(err) {
			return out, []models.MissingData{{Field: "segment_metrics", Reason: missingInstanceReason}}, nil
		}
		return out, nil, err
	}

	contexts, facts, err := parseInstance(raw)
	if err != nil {
		// A malformed instance document is data absence, not a transport
		// failure.
		return out, []models.MissingData{{
			Field:  "segment_metrics",
			Reason: fmt.Sprintf("XBRL instance XML could not be parsed: %v", err),
		}}, nil
	}

	prov := models.Provenance{
		FilingType: filing.Form,
		Accession:  filing.Accession,
		FilingDate: filing.FilingDate,
		SourceRef:  instanceURL,
		Unit:       "USD",
	}
	segmentTags := aliases.SegmentTags()

	for _, f := range facts {
		cx, ok := contexts[f.ContextRef]
		if !ok {
			continue
		}
		// Only contexts carrying dimensional members are segment data;
		// undimensioned contexts are company totals covered by the primary
		// extractor.
		if len(cx.Members) == 0 {
			continue
		}
		if filing.ReportDate != "" && cx.End != "" && cx.End != filing.ReportDate {
			continue
		}
		value, ok := parseNumericLiteral(f.Text)
		if !ok {
			continue
		}

		for field, tags := range segmentTags {
			if !containsTag(tags, f.Tag) {
				continue
			}
			for _, member := range cx.Members {
				sm := models.SegmentMetric{
					Segment:    localName(member.Member),
					Value:      value,
					Unit:       "USD",
					XBRLTag:    f.Tag,
					Dimension:  member.Dimension,
					Member:     member.Member,
					Source:     models.SourceXBRL,
					Confidence: models.ConfidenceSegment,
					Provenance: prov,
				}
				switch field {
				case "revenue_by_segment":
					out.Revenue = append(out.Revenue, sm)
				case "profit_by_segment":
					out.Profit = append(out.Profit, sm)
				case "capex_by_segment":
					out.Capex = append(out.Capex, sm)
				}
			}
		}
	}

	// Partial availability is reported per field, never collapsed into one
	// generic flag.
	var missing []models.MissingData
	for _, field := range []struct {
		name string
		rows []models.SegmentMetric
	}{
		{"revenue_by_segment", out.Revenue},
		{"profit_by_segment", out.Profit},
		{"capex_by_segment", out.Capex},
	} {
		if len(field.rows) == 0 {
			missing = append(missing, models.MissingData{Field: field.name, Reason: missingSegmentFactsReason})
		}
	}

	return out, missing, nil
}

// flexInt64 handles JSON values that may be either a number or a string; the
// file index reports sizes both ways.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	var num int64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexInt64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexInt64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into int64", string(data))
}

type indexItem struct {
	Name string    `json:"name"`
	Type string    `json:"type"`
	Size flexInt64 `json:"size"`
}

type indexDoc struct {
	Directory struct {
		Item []indexItem `json:"item"`
	} `json:"directory"`
}

var linkbaseRe = regexp.MustCompile(`_(cal|def|lab|pre)\.xml$`)

// skippableExtensions are artifact types segment extraction never needs.
var skippableExtensions = map[string]bool{
	".pdf": true, ".zip": true, ".gz": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
	".xlsx": true, ".docx": true,
}

// isSkippableArtifact reports whether a filing artifact is excluded from
// instance-document discovery by type or size.
func isSkippableArtifact(name string, size, maxSizeBytes int64) bool {
	if skippableExtensions[strings.ToLower(filepath.Ext(name))] {
		return true
	}
	return size > maxSizeBytes
}

// chooseInstanceFromIndex scores XML candidates from a filing's file index
// and returns the most likely instance document name, or empty when none
// qualifies. Explicit instance markers and the "_htm.xml" naming pattern
// score higher; larger files win ties.
func chooseInstanceFromIndex(items []indexItem, maxSizeBytes int64) string {
	type scored struct {
		name  string
		score int
		size  int64
	}
	var cands []scored
	for _, it := range items {
		if it.Name == "" || !strings.HasSuffix(strings.ToLower(it.Name), ".xml") {
			continue
		}
		if linkbaseRe.MatchString(it.Name) {
			continue
		}
		if isSkippableArtifact(it.Name, int64(it.Size), maxSizeBytes) {
			continue
		}
		s := scored{name: it.Name, size: int64(it.Size)}
		if strings.Contains(it.Name, "htm.xml") {
			s.score += 4
		}
		if strings.Contains(strings.ToUpper(it.Type), "INS") || strings.Contains(strings.ToLower(it.Type), "instance") {
			s.score += 2
		}
		cands = append(cands, s)
	}
	if len(cands) == 0 {
		return ""
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].size > cands[j].size
	})
	return cands[0].name
}

// findInstanceDoc lists the filing's file index and picks the structured
// instance document URL. A missing index or no viable candidate returns an
// empty URL.
func findInstanceDoc(ctx context.Context, client interfaces.SECClient, cik string, filing models.Filing, maxArtifactBytes int64) (string, error) {
	var idx indexDoc
	indexURL := client.ArchiveURL(cik, filing.Accession, "index.json")
	if err := client.GetJSON(ctx, indexURL, true, &idx); err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}

	name := chooseInstanceFromIndex(idx.Directory.Item, maxArtifactBytes)
	if name == "" {
		return "", nil
	}
	return client.ArchiveURL(cik, filing.Accession, name), nil
}

// isNotFound treats any upstream HTTP error status as data absence for
// archive listings; budget and decompression failures stay fatal.
func isNotFound(err error) bool {
	var apiErr *sec.APIError
	return errors.As(err, &apiErr)
}

type dimensionMember struct {
	Dimension string
	Member    string
}

type instanceContext struct {
	Members []dimensionMember
	End     string // endDate or instant
}

type instanceFact struct {
	Tag        string
	ContextRef string
	Text       string
}

// xmlContext mirrors the xbrli:context element. Field names match local
// element names; encoding/xml ignores namespace prefixes here.
type xmlContext struct {
	ID     string `xml:"id,attr"`
	Entity struct {
		Segment struct {
			Members []xmlMember `xml:"explicitMember"`
		} `xml:"segment"`
	} `xml:"entity"`
	Period struct {
		EndDate string `xml:"endDate"`
		Instant string `xml:"instant"`
	} `xml:"period"`
}

type xmlMember struct {
	Dimension string `xml:"dimension,attr"`
	Value     string `xml:",chardata"`
}

// parseInstance walks an XBRL instance document, returning its contexts and
// every element that carries a contextRef. Contexts are collected in a first
// pass since facts may reference contexts defined anywhere in the document.
func parseInstance(data []byte) (map[string]instanceContext, []instanceFact, error) {
	contexts := make(map[string]instanceContext)

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse contexts: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "context" {
			continue
		}
		var cx xmlContext
		if err := dec.DecodeElement(&cx, &se); err != nil {
			return nil, nil, fmt.Errorf("parse context element: %w", err)
		}
		ic := instanceContext{End: cx.Period.EndDate}
		if ic.End == "" {
			ic.End = cx.Period.Instant
		}
		for _, m := range cx.Entity.Segment.Members {
			ic.Members = append(ic.Members, dimensionMember{
				Dimension: m.Dimension,
				Member:    strings.TrimSpace(m.Value),
			})
		}
		contexts[cx.ID] = ic
	}

	var facts []instanceFact
	dec = xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse facts: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local == "context" {
			if err := dec.Skip(); err != nil {
				return nil, nil, fmt.Errorf("parse facts: %w", err)
			}
			continue
		}
		ref := attrValue(se, "contextRef")
		if ref == "" {
			continue
		}
		text, err := elementText(dec)
		if err != nil {
			return nil, nil, fmt.Errorf("parse facts: %w", err)
		}
		facts = append(facts, instanceFact{Tag: se.Name.Local, ContextRef: ref, Text: text})
	}

	return contexts, facts, nil
}

// elementText consumes tokens up to the element's end tag and returns the
// trimmed top-level character data. Nested markup is consumed but excluded,
// so text-block facts fail the numeric literal check downstream.
func elementText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 1 {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func attrValue(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

var numericLiteralRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// parseNumericLiteral accepts only plain numeric fact text; malformed or
// non-numeric nodes are rejected.
func parseNumericLiteral(text string) (float64, bool) {
	if !numericLiteralRe.MatchString(text) {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// localName strips a namespace prefix from a qualified name.
func localName(qname string) string {
	if i := strings.LastIndex(qname, ":"); i >= 0 {
		return qname[i+1:]
	}
	return qname
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
