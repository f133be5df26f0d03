// Package pricing turns token counts into monetary cost.
//
// Model names arrive as free-form strings ("claude-sonnet-4-5-20250929",
// "anthropic/claude-opus-4"); they are reduced to a coarse family tier that
// keys the pricing table. Unknown families cost nothing and are flagged,
// not errored.
package pricing

import (
	"math"
	"strings"
	"time"
)

// Known model families, in match order.
const (
	FamilyOpus   = "opus"
	FamilySonnet = "sonnet"
	FamilyHaiku  = "haiku"
)

var families = []string{FamilyOpus, FamilySonnet, FamilyHaiku}

// FamilyOf extracts the pricing family from a free-form model name.
// Returns "" when no family matches.
func FamilyOf(model string) string {
	lower := strings.ToLower(model)
	for _, f := range families {
		if strings.Contains(lower, f) {
			return f
		}
	}
	return ""
}

// Rate holds per-million-token prices for one family, effective from a date.
type Rate struct {
	Family        string
	InputPerMTok  float64
	OutputPerMTok float64
	EffectiveDate time.Time
}

// SeedRates is the reference pricing data loaded into the store by
// migration. Lookup always takes the newest effective date per family.
var SeedRates = []Rate{
	{Family: FamilyOpus, InputPerMTok: 15.00, OutputPerMTok: 75.00, EffectiveDate: date(2024, 3, 4)},
	{Family: FamilySonnet, InputPerMTok: 3.00, OutputPerMTok: 15.00, EffectiveDate: date(2024, 3, 4)},
	{Family: FamilyHaiku, InputPerMTok: 0.25, OutputPerMTok: 1.25, EffectiveDate: date(2024, 3, 4)},
	{Family: FamilyHaiku, InputPerMTok: 0.80, OutputPerMTok: 4.00, EffectiveDate: date(2024, 11, 4)},
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Cost is the computed price of one message, split by direction.
// Known is false when the model family was not recognized; the costs are
// then zero rather than a sentinel value.
type Cost struct {
	Input  float64
	Output float64
	Known  bool
}

// Compute prices the given token counts against a per-million rate.
// Each side is rounded to 5 decimal places so repeated small additions
// don't accumulate floating-point drift in the daily aggregate.
func Compute(inputTokens, outputTokens int64, rate Rate) Cost {
	return Cost{
		Input:  Round5(float64(inputTokens) / 1_000_000 * rate.InputPerMTok),
		Output: Round5(float64(outputTokens) / 1_000_000 * rate.OutputPerMTok),
		Known:  true,
	}
}

// Unknown is the zero cost for an unrecognized model family.
func Unknown() Cost {
	return Cost{}
}

// Round5 rounds to 5 decimal places.
func Round5(v float64) float64 {
	return math.Round(v*100_000) / 100_000
}
