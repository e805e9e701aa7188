package models

// Metric source kinds and their fixed confidence levels. Text-derived values
// carry a lower confidence than structured XBRL facts and must remain
// distinguishable in provenance.
const (
	SourceXBRL = "xbrl"
	SourceText = "text"

	ConfidencePrimary  = 0.95
	ConfidenceSegment  = 0.85
	ConfidenceForecast = 0.60
)

// Provenance records where an extracted value came from.
type Provenance struct {
	FilingType string `json:"filing_type"`
	Accession  string `json:"accession"`
	FilingDate string `json:"filing_date"`
	SourceRef  string `json:"source_ref"`
	Unit       string `json:"unit"`
}

// Metric is the chosen value for one (filing, metric) pair. Never mutated
// after creation.
type Metric struct {
	Value           float64    `json:"value"`
	Unit            string     `json:"unit"`
	XBRLTag         string     `json:"xbrl_tag"`
	Source          string     `json:"source"`
	Confidence      float64    `json:"confidence"`
	CapexDefinition string     `json:"capex_definition,omitempty"`
	Provenance      Provenance `json:"provenance"`
}

// SegmentMetric is a metric value scoped to one reporting segment via a
// dimension/member pair recovered from instance-document context.
type SegmentMetric struct {
	Segment    string     `json:"segment"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit"`
	XBRLTag    string     `json:"xbrl_tag"`
	Dimension  string     `json:"dimension"`
	Member     string     `json:"member"`
	Source     string     `json:"source"`
	Confidence float64    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
}

// Forecast is a forward-looking capital-expenditure guidance statement
// extracted from filing narrative text. Min and max are equal for point
// estimates.
type Forecast struct {
	ValueMin     float64    `json:"value_min"`
	ValueMax     float64    `json:"value_max"`
	Unit         string     `json:"unit"`
	Timeframe    string     `json:"timeframe"`
	Source       string     `json:"source"`
	Snippet      string     `json:"snippet"`
	LocationHint string     `json:"location_hint"`
	Confidence   float64    `json:"confidence"`
	Provenance   Provenance `json:"provenance"`
}

// MissingData explains why a payload field could not be populated. Every
// numeric field that stays empty must be accounted for by one of these; data
// absence is a record, never an error.
type MissingData struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}
