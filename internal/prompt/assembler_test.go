package prompt

import (
	"strings"
	"testing"
)

func TestAssembleIncludesContext(t *testing.T) {
	a := New("nl")

	got := a.Assemble("Medewerkers hebben recht op 25 vakantiedagen.", "nl")

	if !strings.Contains(got, "HR-assistent") {
		t.Errorf("expected Dutch instructions, got %q", got)
	}
	if !strings.Contains(got, "25 vakantiedagen") {
		t.Errorf("expected context text in prompt, got %q", got)
	}
}

func TestAssembleEmptyContext(t *testing.T) {
	a := New("en")

	got := a.Assemble("", "en")

	if !strings.Contains(got, "HR assistant") {
		t.Errorf("expected English instructions, got %q", got)
	}
	if strings.Contains(got, "Context from") {
		t.Errorf("empty context must not add a context section, got %q", got)
	}
}

func TestAssembleLanguageFallback(t *testing.T) {
	a := New("nl")

	cases := []struct {
		language string
		marker   string
	}{
		{"NL", "HR-assistent"},
		{"en-US", "HR assistant"},
		{"DE", "HR-Assistent"},
		{"xx", "HR-assistent"}, // unknown falls back to nl
		{"", "HR-assistent"},
	}

	for _, tc := range cases {
		got := a.Assemble("ctx", tc.language)
		if !strings.Contains(got, tc.marker) {
			t.Errorf("Assemble(ctx, %q) = %q, want marker %q", tc.language, got, tc.marker)
		}
	}
}

func TestNormalizeLanguage(t *testing.T) {
	if got := NormalizeLanguage("FR_ca", "nl"); got != "fr" {
		t.Errorf("NormalizeLanguage(FR_ca) = %q, want fr", got)
	}
	if got := NormalizeLanguage("zz", "zz"); got != DefaultLanguage {
		t.Errorf("unsupported fallback should resolve to %q, got %q", DefaultLanguage, got)
	}
}
