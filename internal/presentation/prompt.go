package presentation

import (
	"fmt"
	"strings"
)

// BuildPrompt renders proposal content as a seven-slide deck outline followed by design notes.
func BuildPrompt(in Input) string {
	name := in.ProspectName
	if name == "" {
		name = "Client"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create a professional sales proposal presentation for %s.\n\n", name)
	fmt.Fprintf(&b, "## Slide 1: Title\nTitle: \"Strategic Proposal for %s\"\nSubtitle: \"Transforming Your Digital Presence\"\n\n", name)
	fmt.Fprintf(&b, "## Slide 2: Executive Summary\n%s\n\n", in.ExecutiveSummary)
	fmt.Fprintf(&b, "## Slide 3: Understanding Your Situation\n%s\n\n", in.CurrentSituation)
	fmt.Fprintf(&b, "## Slide 4: Our Proposed Strategy\n%s\n\n", in.ProposedStrategy)
	fmt.Fprintf(&b, "## Slide 5: Why Partner With Us\n%s\n\n", in.WhyUs)
	fmt.Fprintf(&b, "## Slide 6: Investment Options\n%s\n\n", FormatPricingTiers(in.Investment))
	fmt.Fprintf(&b, "## Slide 7: Next Steps\n%s\n\n", in.NextSteps)
	b.WriteString("Design Notes:\n" +
		"- Use a professional, modern aesthetic\n" +
		"- Include relevant imagery for each section\n" +
		"- Use icons and visual hierarchy for pricing tiers\n" +
		"- End with a clear call-to-action")
	return b.String()
}

// FormatPricingTiers renders one block per tier:
//
//	**Growth** - $5,000/mo
//	  Includes: a, b, c
func FormatPricingTiers(tiers []Tier) string {
	if len(tiers) == 0 {
		return "Contact us for custom pricing."
	}

	blocks := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		name := tier.Name
		if name == "" {
			name = "Package"
		}
		price := tier.Price
		if price == "" {
			price = "TBD"
		}
		features := "Custom features"
		if len(tier.Features) > 0 {
			features = strings.Join(tier.Features, ", ")
		}
		blocks = append(blocks, fmt.Sprintf("**%s** - %s\n  Includes: %s", name, price, features))
	}
	return strings.Join(blocks, "\n\n")
}
