package cost

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// GeminiPricing represents the current pricing for Gemini models
type GeminiPricing struct {
	Model                 string
	InputCostPer1MTokens  float64 // Cost per 1M input tokens in USD
	OutputCostPer1MTokens float64 // Cost per 1M output tokens in USD
}

// PricingTable contains Gemini pricing for the models the dashboard uses
var PricingTable = map[string]GeminiPricing{
	"gemini-2.5-flash-lite": {
		Model:                 "gemini-2.5-flash-lite",
		InputCostPer1MTokens:  0.10,
		OutputCostPer1MTokens: 0.40,
	},
	"gemini-2.5-flash": {
		Model:                 "gemini-2.5-flash",
		InputCostPer1MTokens:  0.30,
		OutputCostPer1MTokens: 2.50,
	},
	"gemini-2.0-flash": {
		Model:                 "gemini-2.0-flash",
		InputCostPer1MTokens:  0.10,
		OutputCostPer1MTokens: 0.40,
	},
}

// DefaultPricingModel prices models missing from PricingTable.
const DefaultPricingModel = "gemini-2.5-flash-lite"

// EstimateTokenCount provides a rough estimation of token count for text
// This is a simplified approximation: typically 1 token ≈ 4 characters
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")

	charCount := utf8.RuneCountInString(text)

	// 3.5 rather than 4 leaves room for JSON punctuation in prompts
	return int(math.Ceil(float64(charCount) / 3.5))
}

// RequestEstimate is the worst-case cost of one generation request.
type RequestEstimate struct {
	Model           string
	InputTokens     int
	MaxOutputTokens int
	InputCost       float64
	MaxOutputCost   float64
	TotalCost       float64
	KnownPricing    bool
}

// EstimateRequest estimates the cost of sending prompt to model with the given output cap.
func EstimateRequest(model, prompt string, maxOutputTokens int) RequestEstimate {
	pricing, known := PricingTable[model]
	if !known {
		pricing = PricingTable[DefaultPricingModel]
	}

	est := RequestEstimate{
		Model:           model,
		InputTokens:     EstimateTokenCount(prompt),
		MaxOutputTokens: maxOutputTokens,
		KnownPricing:    known,
	}
	est.InputCost = float64(est.InputTokens) / 1_000_000 * pricing.InputCostPer1MTokens
	est.MaxOutputCost = float64(maxOutputTokens) / 1_000_000 * pricing.OutputCostPer1MTokens
	est.TotalCost = est.InputCost + est.MaxOutputCost
	return est
}

// String formats the estimate for logs and the CLI.
func (e RequestEstimate) String() string {
	s := fmt.Sprintf("~%d input tokens, up to %d output tokens, at most $%.6f", e.InputTokens, e.MaxOutputTokens, e.TotalCost)
	if !e.KnownPricing {
		s += fmt.Sprintf(" (priced as %s)", DefaultPricingModel)
	}
	return s
}
