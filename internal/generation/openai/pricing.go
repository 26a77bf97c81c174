package openai

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
)

var million = decimal.NewFromInt(1_000_000)

// ModelRate holds decimal per-million-token prices for one model.
type ModelRate struct {
	InputPerMTok  decimal.Decimal
	OutputPerMTok decimal.Decimal
}

// Pricing maps models to token rates and derives generation cost. All
// arithmetic is exact decimal; no floating point enters the cost path.
type Pricing struct {
	rates map[string]ModelRate
}

// defaultRates cover the models the assistant is deployed with. Config can
// override or extend these.
var defaultRates = map[string]ModelRate{
	"gpt-4o":      {InputPerMTok: decimal.RequireFromString("2.50"), OutputPerMTok: decimal.RequireFromString("10.00")},
	"gpt-4o-mini": {InputPerMTok: decimal.RequireFromString("0.15"), OutputPerMTok: decimal.RequireFromString("0.60")},
}

// NewPricing creates a pricing table with the default rates.
func NewPricing() *Pricing {
	rates := make(map[string]ModelRate, len(defaultRates))
	for model, rate := range defaultRates {
		rates[model] = rate
	}
	return &Pricing{rates: rates}
}

// SetRate adds or overrides the rate for a model. Rates are decimal
// strings; invalid strings are rejected.
func (p *Pricing) SetRate(model, inputPerMTok, outputPerMTok string) error {
	in, err := decimal.NewFromString(inputPerMTok)
	if err != nil {
		return fmt.Errorf("input rate for %s: %w", model, err)
	}
	out, err := decimal.NewFromString(outputPerMTok)
	if err != nil {
		return fmt.Errorf("output rate for %s: %w", model, err)
	}
	p.rates[model] = ModelRate{InputPerMTok: in, OutputPerMTok: out}
	return nil
}

// Cost computes the exact cost of a usage summary for a model. Unknown
// models cost zero; the raw token counts are still recorded.
func (p *Pricing) Cost(model string, promptTokens, completionTokens int) decimal.Decimal {
	rate, ok := p.lookup(model)
	if !ok {
		return decimal.Zero
	}
	in := rate.InputPerMTok.Mul(decimal.NewFromInt(int64(promptTokens))).Div(million)
	out := rate.OutputPerMTok.Mul(decimal.NewFromInt(int64(completionTokens))).Div(million)
	return in.Add(out)
}

// Price fills in the cost on a usage summary.
func (p *Pricing) Price(model string, usage *domain.Usage) {
	usage.Cost = p.Cost(model, usage.PromptTokens, usage.CompletionTokens)
}

func (p *Pricing) lookup(model string) (ModelRate, bool) {
	if rate, ok := p.rates[model]; ok {
		return rate, true
	}
	// Providers sometimes report dated variants like gpt-4o-2024-08-06.
	// Longest prefix wins so gpt-4o-mini-* never matches gpt-4o.
	var best string
	for name := range p.rates {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return p.rates[best], true
	}
	return ModelRate{}, false
}
