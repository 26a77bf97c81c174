// Package tokens provides token counting for the answer pipeline. It is
// used to reconstruct usage when a stream ends before the provider's usage
// summary arrives.
package tokens

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/aschouten1502/rag-demo-sub001/internal/domain"
)

// charsPerToken is the fallback ratio when no tokenizer is available.
const charsPerToken = 4.0

// Estimator counts tokens with tiktoken for the configured model, falling
// back to a character-based estimate for unknown models.
type Estimator struct {
	model string

	once  sync.Once
	codec tokenizer.Codec
}

var _ domain.TokenEstimator = (*Estimator)(nil)

// NewEstimator creates an estimator for the given model.
func NewEstimator(model string) *Estimator {
	return &Estimator{model: model}
}

// EstimateTokens returns the token count of text. Counts from tiktoken are
// exact for supported models; otherwise an estimate is returned.
func (e *Estimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	e.once.Do(func() {
		if codec, err := tokenizer.ForModel(mapModelName(e.model)); err == nil {
			e.codec = codec
			return
		}
		// o200k_base covers current chat models.
		if codec, err := tokenizer.Get(tokenizer.O200kBase); err == nil {
			e.codec = codec
		}
	})

	if e.codec != nil {
		if count, err := e.codec.Count(text); err == nil {
			return count
		}
	}

	return int(float64(len(text)) / charsPerToken)
}

// mapModelName maps a model string to a tokenizer.Model.
func mapModelName(model string) tokenizer.Model {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-5"):
		return tokenizer.GPT5
	case strings.HasPrefix(model, "gpt-4.1"):
		return tokenizer.GPT41
	case strings.HasPrefix(model, "gpt-4o"):
		return tokenizer.GPT4o
	case strings.HasPrefix(model, "gpt-4"):
		return tokenizer.GPT4
	case strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.GPT35Turbo
	default:
		return tokenizer.GPT4o
	}
}
