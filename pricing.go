package ankigen

// ModelPrice holds per-million-token USD prices for one model.
type ModelPrice struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Pricing maps model identifiers to their token prices.
type Pricing map[string]ModelPrice

// Cost converts token counts into a dollar amount. Unknown models cost 0 so
// that unpriced or custom model names never abort a batch over accounting.
func (p Pricing) Cost(model string, inputTokens, outputTokens int) float64 {
	price, ok := p[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1e6*price.InputPerMillion +
		float64(outputTokens)/1e6*price.OutputPerMillion
}

// DefaultPricing returns current input/output token costs (USD per million
// tokens).
func DefaultPricing() Pricing {
	return Pricing{
		// OpenAI
		"gpt-4o":        {InputPerMillion: 5.00, OutputPerMillion: 20.00},
		"gpt-4o-mini":   {InputPerMillion: 0.60, OutputPerMillion: 2.40},
		"gpt-4.1":       {InputPerMillion: 2.00, OutputPerMillion: 8.00},
		"gpt-4.1-mini":  {InputPerMillion: 0.40, OutputPerMillion: 1.60},
		"gpt-4.1-nano":  {InputPerMillion: 0.10, OutputPerMillion: 0.40},
		"gpt-3.5-turbo": {InputPerMillion: 0.50, OutputPerMillion: 1.50},

		// Google Gemini
		"gemini-2.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 10.00},
		"gemini-2.5-flash": {InputPerMillion: 0.30, OutputPerMillion: 2.50},
		"gemini-2.0-flash": {InputPerMillion: 0.15, OutputPerMillion: 0.60},
		"gemini-1.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 5.00},
		"gemini-1.5-flash": {InputPerMillion: 0.075, OutputPerMillion: 0.30},

		// Anthropic Claude 3
		"claude-3-opus":   {InputPerMillion: 15.00, OutputPerMillion: 75.00},
		"claude-3-sonnet": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
		"claude-3-haiku":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	}
}
