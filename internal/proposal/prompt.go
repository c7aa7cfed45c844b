package proposal

import (
	"strings"

	"github.com/jonathan/propoto-agents/internal/intel"
	"github.com/jonathan/propoto-agents/internal/prompts"
)

const maxExcerpt = 2000

// SystemPrompt returns the proposal-writing instructions personalized for prospectName.
func SystemPrompt(prospectName string) string {
	return prompts.Format(prompts.MustGet(prompts.ProposalFile, prompts.SystemKey), map[string]string{
		"ProspectName": prospectName,
	})
}

// BuildEnrichedPrompt assembles the user prompt: prospect details, template guidance and, when
// bi carries any signal, a website intelligence section with one guidance line per field.
func BuildEnrichedPrompt(req Request, templateKey string, bi *intel.BusinessIntelligence) string {
	parts := []string{
		"Prospect Name: " + req.ProspectName,
		"Website: " + req.ProspectURL,
		"Pain Points: " + req.PainPoints,
		Guidance(templateKey),
	}
	if req.Tone != "" {
		parts = append(parts, "Preferred Tone: "+req.Tone+" - This overrides the template tone")
	}
	if !bi.Empty() {
		parts = append(parts, intelSection(bi))
	}
	return strings.Join(parts, "\n\n")
}

func intelSection(bi *intel.BusinessIntelligence) string {
	lines := []string{
		"\n--- WEBSITE INTELLIGENCE (Use this to deeply personalize the proposal) ---",
		"IMPORTANT: Reference specific details from this analysis throughout your proposal.",
	}
	add := func(cond bool, line string) {
		if cond {
			lines = append(lines, line)
		}
	}

	add(bi.CompanyName != "", "Company Name: "+bi.CompanyName)
	add(bi.Industry != "", "Industry: "+bi.Industry+" - Use industry-specific language and examples")
	add(bi.ToneStyle != "", "Their Brand Tone: "+bi.ToneStyle+" - Match this tone in your writing")
	add(bi.ValueProposition != "", "Their Value Proposition: "+bi.ValueProposition+" - Reference this in Current Situation")
	add(bi.TargetAudience != "", "Target Audience: "+bi.TargetAudience+" - Show you understand who they serve")
	add(len(bi.KeyFeatures) > 0,
		"Their Key Offerings: "+strings.Join(head(bi.KeyFeatures, 5), ", ")+" - Reference these to show understanding")
	add(len(bi.PainPointsIdentified) > 0,
		"Pain Points Detected on Website: "+strings.Join(head(bi.PainPointsIdentified, 3), "; ")+" - Use these to enrich the diagnosis")
	add(len(bi.SocialProof) > 0,
		"Their Social Proof: "+strings.Join(head(bi.SocialProof, 3), ", ")+" - Reference their credibility in Why Us section")
	add(len(bi.TechStackHints) > 0,
		"Tech Stack: "+strings.Join(head(bi.TechStackHints, 5), ", ")+" - Shows their technical sophistication level")
	add(len(bi.CompetitorsMentioned) > 0,
		"Competitors Mentioned: "+strings.Join(head(bi.CompetitorsMentioned, 3), ", ")+" - Understand competitive landscape")
	add(bi.RawContent != "",
		"\nWebsite Content Excerpt (for context):\n"+excerpt(bi.RawContent)+"...")

	lines = append(lines, "\nACTION: Weave these insights naturally into your proposal. Don't just list them - use them to show deep understanding.")
	return strings.Join(lines, "\n")
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) > maxExcerpt {
		return string(r[:maxExcerpt])
	}
	return s
}
