// Package prompt assembles the system prompt for the HR assistant.
package prompt

import (
	"fmt"
	"strings"
)

// DefaultLanguage is the fallback instruction language when the requested
// code is unrecognized.
const DefaultLanguage = "nl"

// instructions holds the per-language assistant instructions. The question
// context is appended below them.
var instructions = map[string]string{
	"nl": "Je bent een behulpzame HR-assistent. Beantwoord vragen van medewerkers " +
		"over personeelszaken, arbeidsvoorwaarden en bedrijfsregelingen. " +
		"Antwoord in het Nederlands, kort en duidelijk. Gebruik uitsluitend de " +
		"meegegeven context als die er is; zeg eerlijk wanneer je iets niet weet.",
	"en": "You are a helpful HR assistant. Answer employee questions about " +
		"personnel matters, employment conditions, and company policies. " +
		"Answer in English, concise and clear. Use only the provided context " +
		"when present; say honestly when you do not know something.",
	"de": "Du bist ein hilfreicher HR-Assistent. Beantworte Mitarbeiterfragen zu " +
		"Personalangelegenheiten, Arbeitsbedingungen und Unternehmensrichtlinien. " +
		"Antworte auf Deutsch, kurz und klar. Nutze ausschließlich den " +
		"mitgelieferten Kontext, falls vorhanden; sage ehrlich, wenn du etwas nicht weißt.",
	"fr": "Tu es un assistant RH serviable. Réponds aux questions des employés " +
		"sur les ressources humaines, les conditions de travail et les règlements " +
		"de l'entreprise. Réponds en français, de façon concise et claire. Utilise " +
		"uniquement le contexte fourni s'il est présent ; dis honnêtement quand tu ne sais pas.",
}

var contextHeader = map[string]string{
	"nl": "Context uit de personeelsdocumenten:",
	"en": "Context from the personnel documents:",
	"de": "Kontext aus den Personaldokumenten:",
	"fr": "Contexte des documents du personnel :",
}

// Assembler builds system prompts. The zero value falls back to
// DefaultLanguage; a deployment-specific fallback can be set instead.
type Assembler struct {
	fallback string
}

// New creates an assembler with the given fallback language code. An empty
// or unknown fallback resolves to DefaultLanguage.
func New(fallbackLanguage string) *Assembler {
	return &Assembler{fallback: NormalizeLanguage(fallbackLanguage, DefaultLanguage)}
}

// Fallback returns the configured fallback language code.
func (a *Assembler) Fallback() string {
	if a.fallback == "" {
		return DefaultLanguage
	}
	return a.fallback
}

// Assemble builds the system prompt from retrieved context text and the
// target response language. Pure: no I/O, no failure mode. An empty
// contextText is valid and yields the general instructions only.
func (a *Assembler) Assemble(contextText, language string) string {
	fallback := a.fallback
	if fallback == "" {
		fallback = DefaultLanguage
	}
	lang := NormalizeLanguage(language, fallback)

	if contextText == "" {
		return instructions[lang]
	}
	return fmt.Sprintf("%s\n\n%s\n%s", instructions[lang], contextHeader[lang], contextText)
}

// NormalizeLanguage lowercases a language code, strips region subtags
// ("nl-NL" -> "nl"), and falls back when the base code is unsupported.
func NormalizeLanguage(code, fallback string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if _, ok := instructions[code]; ok {
		return code
	}
	if _, ok := instructions[fallback]; ok {
		return fallback
	}
	return DefaultLanguage
}
