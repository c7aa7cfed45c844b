// Package intel derives a business-intelligence summary from a prospect's website text using
// fixed keyword tables and patterns. Extraction is deterministic and makes no network calls.
package intel

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxRawContent bounds the excerpt retained for model context, in characters.
const MaxRawContent = 10000

const (
	maxPainPoints     = 3
	maxPainLineLength = 200
	maxProofPerRule   = 2
	maxFeatures       = 5
)

// PageSeparator joins crawled pages into one document.
const PageSeparator = "\n\n---\n\n"

// BusinessIntelligence summarizes what a prospect's website says about them.
type BusinessIntelligence struct {
	CompanyName          string   `json:"company_name"`
	Industry             string   `json:"industry"`
	ValueProposition     string   `json:"value_proposition"`
	TargetAudience       string   `json:"target_audience"`
	ProductsServices     []string `json:"products_services"`
	KeyFeatures          []string `json:"key_features"`
	PainPointsIdentified []string `json:"pain_points_identified"`
	CompetitorsMentioned []string `json:"competitors_mentioned"`
	SocialProof          []string `json:"social_proof"`
	TechStackHints       []string `json:"tech_stack_hints"`
	ToneStyle            string   `json:"tone_style"`
	RawContent           string   `json:"raw_content"`
}

// Empty reports whether no field carries a signal.
func (b *BusinessIntelligence) Empty() bool {
	if b == nil {
		return true
	}
	return b.CompanyName == "" && b.Industry == "" && b.ValueProposition == "" &&
		b.TargetAudience == "" && b.ToneStyle == "" && b.RawContent == "" &&
		len(b.ProductsServices) == 0 && len(b.KeyFeatures) == 0 &&
		len(b.PainPointsIdentified) == 0 && len(b.CompetitorsMentioned) == 0 &&
		len(b.SocialProof) == 0 && len(b.TechStackHints) == 0
}

type industry struct {
	name     string
	keywords []string
}

// Order matters: the first industry with any keyword present wins.
var industries = []industry{
	{"saas", []string{"saas", "software", "platform", "cloud", "api", "integration"}},
	{"ecommerce", []string{"shop", "store", "cart", "checkout", "products", "shipping"}},
	{"agency", []string{"agency", "marketing", "digital", "creative", "campaigns"}},
	{"consulting", []string{"consulting", "advisory", "strategy", "solutions"}},
	{"healthcare", []string{"health", "medical", "patient", "care", "clinical"}},
	{"fintech", []string{"finance", "payment", "banking", "invest", "crypto"}},
	{"education", []string{"learning", "course", "training", "education", "students"}},
	{"real estate", []string{"property", "real estate", "housing", "rental", "mortgage"}},
}

var painIndicators = []string{
	"struggling with", "challenge", "problem", "difficult", "pain point",
	"frustrated", "time-consuming", "expensive", "complex", "outdated",
}

type toneRule struct {
	tone  string
	words []string
}

var toneRules = []toneRule{
	{"corporate, enterprise", []string{"enterprise", "fortune 500", "corporate"}},
	{"tech-forward, startup", []string{"startup", "disrupt", "innovative"}},
	{"casual, friendly", []string{"fun", "love", "awesome", "🚀"}},
}

const defaultTone = "professional"

var socialProofPatterns = []*regexp.Regexp{
	regexp.MustCompile(`trusted by [\p{L}\p{N}_\s,]+`),
	regexp.MustCompile(`\d+\+? (?:customers|clients|users|companies)`),
	regexp.MustCompile(`used by [\p{L}\p{N}_\s,]+`),
	regexp.MustCompile(`featured in [\p{L}\p{N}_\s,]+`),
}

var techVocabulary = []string{
	"react", "vue", "angular", "shopify", "wordpress", "hubspot",
	"salesforce", "stripe", "aws", "google cloud", "azure",
}

var featurePattern = regexp.MustCompile(`(?i)(?:features?|benefits?|what we offer|our solution)[\s:]+([^\n]+)`)

// Extract classifies text scraped from sourceURL. It never fails; missing signals leave fields
// at their zero values (slices are empty, not nil).
func Extract(text, sourceURL string) BusinessIntelligence {
	lower := strings.ToLower(text)
	return BusinessIntelligence{
		CompanyName:          CompanyName(sourceURL),
		Industry:             detectIndustry(lower),
		ProductsServices:     []string{},
		KeyFeatures:          keyFeatures(text),
		PainPointsIdentified: painPoints(text),
		CompetitorsMentioned: []string{},
		SocialProof:          socialProof(lower),
		TechStackHints:       techHints(lower),
		ToneStyle:            detectTone(lower),
		RawContent:           truncateRunes(text, MaxRawContent),
	}
}

// Combine joins crawled pages into the document Extract consumes.
func Combine(pages []string) string {
	return strings.Join(pages, PageSeparator)
}

// CompanyName guesses a company name from the first label of the URL's host.
func CompanyName(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	host := strings.ReplaceAll(u.Host, "www.", "")
	label, _, _ := strings.Cut(host, ".")
	return cases.Title(language.Und).String(label)
}

func detectIndustry(lower string) string {
	for _, ind := range industries {
		if containsAny(lower, ind.keywords) {
			return ind.name
		}
	}
	return ""
}

func painPoints(text string) []string {
	found := []string{}
	for _, line := range strings.Split(text, "\n") {
		if !containsAny(strings.ToLower(line), painIndicators) {
			continue
		}
		if len([]rune(line)) >= maxPainLineLength {
			continue
		}
		found = append(found, strings.TrimSpace(line))
		if len(found) >= maxPainPoints {
			break
		}
	}
	return found
}

func detectTone(lower string) string {
	for _, rule := range toneRules {
		if containsAny(lower, rule.words) {
			return rule.tone
		}
	}
	return defaultTone
}

func socialProof(lower string) []string {
	proof := []string{}
	for _, re := range socialProofPatterns {
		proof = append(proof, re.FindAllString(lower, maxProofPerRule)...)
	}
	return proof
}

func techHints(lower string) []string {
	hints := []string{}
	for _, tech := range techVocabulary {
		if strings.Contains(lower, tech) {
			hints = append(hints, tech)
		}
	}
	return hints
}

func keyFeatures(text string) []string {
	features := []string{}
	for _, m := range featurePattern.FindAllStringSubmatch(text, maxFeatures) {
		features = append(features, strings.TrimSpace(m[1]))
	}
	return features
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
