// Package extract implements the filing-to-metric extraction pipeline
package extract

// CapexTier is one capital-expenditure tag tier. The two tiers have
// different accounting semantics, so the definition that produced a value is
// recorded on the extracted metric.
type CapexTier struct {
	Tags       []string
	Definition string
}

// TagAliases holds the ordered XBRL tag fallback lists per target metric.
// They are configuration data passed into the extractors so alias sets stay
// testable and overridable.
type TagAliases struct {
	Revenue    []string
	Profit     []string
	CapexTiers []CapexTier
}

// DefaultTagAliases returns the US-GAAP tag sets the pipeline targets.
func DefaultTagAliases() TagAliases {
	return TagAliases{
		Revenue: []string{
			"RevenueFromContractWithCustomerExcludingAssessedTax",
			"Revenues",
			"SalesRevenueNet",
		},
		Profit: []string{"NetIncomeLoss"},
		CapexTiers: []CapexTier{
			{Tags: []string{"PaymentsToAcquirePropertyPlantAndEquipment"}, Definition: "cash_paid_for_ppe"},
			{Tags: []string{"CapitalExpenditures"}, Definition: "capital_expenditures_fallback"},
		},
	}
}

// SegmentTags returns the tag sets used for dimensional extraction, keyed by
// output field name. Capex merges both tiers; segment rows carry their tag
// explicitly so the distinction survives.
func (a TagAliases) SegmentTags() map[string][]string {
	capex := make([]string, 0, 2)
	for _, tier := range a.CapexTiers {
		capex = append(capex, tier.Tags...)
	}
	return map[string][]string{
		"revenue_by_segment": a.Revenue,
		"profit_by_segment":  a.Profit,
		"capex_by_segment":   capex,
	}
}
