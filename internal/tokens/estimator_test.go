package tokens

import "testing"

func TestEstimateTokens(t *testing.T) {
	est := NewEstimator("gpt-4o-mini")

	if got := est.EstimateTokens(""); got != 0 {
		t.Errorf("empty text = %d tokens, want 0", got)
	}

	short := est.EstimateTokens("Hoeveel vakantiedagen heb ik?")
	if short <= 0 {
		t.Errorf("short text = %d tokens, want > 0", short)
	}

	long := est.EstimateTokens("Medewerkers hebben recht op 25 vakantiedagen per jaar op basis van een fulltime dienstverband.")
	if long <= short {
		t.Errorf("longer text should estimate more tokens: %d <= %d", long, short)
	}
}

func TestEstimateTokensUnknownModelFallsBack(t *testing.T) {
	est := NewEstimator("some-future-model")

	if got := est.EstimateTokens("four word test sentence"); got <= 0 {
		t.Errorf("fallback estimate = %d, want > 0", got)
	}
}
