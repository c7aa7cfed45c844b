package proposal

import (
	"strings"

	"github.com/jonathan/propoto-agents/internal/prompts"
)

// DefaultTemplate is used when a request names none.
const DefaultTemplate = "default"

// Template describes a proposal writing style.
type Template struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tone        string `json:"tone"`
	StyleNotes  string `json:"-"`
}

var templates = []Template{
	{
		Key:         "default",
		Name:        "Trojan Horse",
		Description: "Nick Saraev's high-converting sales methodology",
		Tone:        "direct, professional, value-focused",
		StyleNotes:  "Give value upfront, diagnose real problems, offer specific mechanisms",
	},
	{
		Key:         "consultative",
		Name:        "Consultative Advisor",
		Description: "Focused on education and building trust",
		Tone:        "educational, empathetic, expert",
		StyleNotes:  "Position as trusted advisor, heavy on diagnosis, softer close",
	},
	{
		Key:         "enterprise",
		Name:        "Enterprise Professional",
		Description: "Formal style for large organizations",
		Tone:        "formal, data-driven, strategic",
		StyleNotes:  "Include ROI projections, reference similar enterprises, formal language",
	},
	{
		Key:         "startup",
		Name:        "Startup Partner",
		Description: "Casual, fast-paced for startups",
		Tone:        "energetic, casual, growth-focused",
		StyleNotes:  "Focus on speed, agility, quick wins, growth metrics",
	},
	{
		Key:         "agency",
		Name:        "Agency Partnership",
		Description: "B2B agency collaboration style",
		Tone:        "collaborative, transparent, process-focused",
		StyleNotes:  "Emphasize workflow integration, white-label options, partner benefits",
	},
}

// Templates returns every template in display order.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// LookupTemplate finds a template by key.
func LookupTemplate(key string) (Template, bool) {
	for _, t := range templates {
		if t.Key == key {
			return t, true
		}
	}
	return Template{}, false
}

// TemplateKeys lists valid template keys in display order.
func TemplateKeys() []string {
	keys := make([]string, len(templates))
	for i, t := range templates {
		keys[i] = t.Key
	}
	return keys
}

// Guidance returns the prompt instructions for a template, falling back to the default.
func Guidance(key string) string {
	if _, ok := LookupTemplate(key); !ok {
		key = DefaultTemplate
	}
	return strings.TrimSpace(prompts.MustGet(prompts.ProposalFile, prompts.TemplateKey(key)))
}
