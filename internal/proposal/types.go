// Package proposal generates structured sales proposals: it validates the request, optionally
// enriches the prompt from the prospect's website, runs the model with a credit-exhaustion
// fallback and optionally renders a presentation.
package proposal

import "strings"

// Request is the input accepted from API and CLI callers.
type Request struct {
	ProspectName string `json:"prospect_name" validate:"required"`
	ProspectURL  string `json:"prospect_url" validate:"required"`
	PainPoints   string `json:"pain_points" validate:"required"`
	Model        string `json:"model,omitempty"`
	Template     string `json:"template,omitempty"`
	DeepScrape   bool   `json:"deep_scrape,omitempty"`
	Tone         string `json:"tone,omitempty"`

	PresentationFormat string `json:"presentation_format,omitempty" validate:"omitempty,oneof=presentation document webpage"`
	ThemeID            string `json:"theme_id,omitempty"`
}

func (r Request) normalized() Request {
	r.ProspectName = strings.TrimSpace(r.ProspectName)
	r.ProspectURL = strings.TrimSpace(r.ProspectURL)
	r.PainPoints = strings.TrimSpace(r.PainPoints)
	r.Model = strings.TrimSpace(r.Model)
	r.Template = strings.TrimSpace(r.Template)
	r.Tone = strings.TrimSpace(r.Tone)
	return r
}

// PricingTier is one of the three investment options.
type PricingTier struct {
	Name     string   `json:"name"`
	Price    string   `json:"price"`
	Features []string `json:"features"`
}

// Result is the model's structured proposal.
type Result struct {
	ExecutiveSummary string        `json:"executive_summary"`
	CurrentSituation string        `json:"current_situation"`
	ProposedStrategy string        `json:"proposed_strategy"`
	WhyUs            string        `json:"why_us"`
	Investment       []PricingTier `json:"investment"`
	NextSteps        string        `json:"next_steps"`
}

// Response is returned for a successful generation. Artifact URLs are nil unless a presentation
// was rendered. ModelUsed echoes the requested model; FallbackModelUsed is set when credit
// exhaustion forced a retry on the default model.
type Response struct {
	Success           bool    `json:"success"`
	Data              *Result `json:"data"`
	PresentationURL   *string `json:"presentation_url"`
	PDFURL            *string `json:"pdf_url"`
	PPTXURL           *string `json:"pptx_url"`
	ModelUsed         string  `json:"model_used"`
	FallbackModelUsed *string `json:"fallback_model_used"`
	TemplateUsed      string  `json:"template_used"`
	DeepScrapeEnabled bool    `json:"deep_scrape_enabled"`
}
