package classifier

import (
	"strings"

	"catalog-service/internal/models"
)

// RuleKind distinguishes brand-specific override rules from generic
// keyword rules.
type RuleKind string

const (
	RuleKindBrand   RuleKind = "brand"
	RuleKindKeyword RuleKind = "keyword"
)

// FallbackCategorySlug is assigned when no rule matches. Classification
// never leaves an active product without a category.
const FallbackCategorySlug = "other-columns"

// Rule maps a product name (and, for brand rules, its brand) to a category
// slug. All Patterns must be present in the lowercased name; none of the
// Exclude patterns may be.
type Rule struct {
	Kind         RuleKind
	Brand        string
	Patterns     []string
	Exclude      []string
	CategorySlug string
}

func (r *Rule) matches(name, brand string) bool {
	if r.Kind == RuleKindBrand && !strings.EqualFold(r.Brand, brand) {
		return false
	}
	for _, p := range r.Patterns {
		if !strings.Contains(name, p) {
			return false
		}
	}
	for _, x := range r.Exclude {
		if strings.Contains(name, x) {
			return false
		}
	}
	return true
}

// Ruleset is an ordered rule table. Brand rules always run before keyword
// rules; within each group table order is evaluation order.
type Ruleset struct {
	brandRules   []Rule
	keywordRules []Rule
}

func NewRuleset(rules []Rule) *Ruleset {
	rs := &Ruleset{}
	for _, r := range rules {
		if r.Kind == RuleKindBrand {
			rs.brandRules = append(rs.brandRules, r)
		} else {
			rs.keywordRules = append(rs.keywordRules, r)
		}
	}
	return rs
}

// Evaluate returns the ordered, deduplicated category slugs of every
// matching rule; the first entry is the winner that becomes the primary
// category. The fallback slug is appended when nothing matches, so the
// result is never empty. ErrInvalidInput is returned for a blank name.
func (rs *Ruleset) Evaluate(name, brand string) ([]string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, models.ErrInvalidInput
	}
	lower := strings.ToLower(name)

	var matches []string
	seen := make(map[string]bool)
	add := func(slug string) {
		if !seen[slug] {
			seen[slug] = true
			matches = append(matches, slug)
		}
	}

	for i := range rs.brandRules {
		if rs.brandRules[i].matches(lower, brand) {
			add(rs.brandRules[i].CategorySlug)
		}
	}
	for i := range rs.keywordRules {
		if rs.keywordRules[i].matches(lower, brand) {
			add(rs.keywordRules[i].CategorySlug)
		}
	}

	if len(matches) == 0 {
		matches = append(matches, FallbackCategorySlug)
	}
	return matches, nil
}

// DefaultRuleset is the built-in classification table. Brand overrides
// come first: specific series rules before the brand's generic default
// ("Raptor Polar X" must resolve before the plain "Raptor" rule), and
// sample-prep series names exclude "column" so a column whose name quotes
// a cartridge series is not misrouted. Keyword rules follow the fixed
// priority order: chemistry codes, then accessory types, then catalog
// fallbacks.
func DefaultRuleset() *Ruleset {
	return NewRuleset([]Rule{
		// Restek
		{Kind: RuleKindBrand, Brand: "Restek", Patterns: []string{"raptor", "polar x"}, CategorySlug: "hilic-columns"},
		{Kind: RuleKindBrand, Brand: "Restek", Patterns: []string{"raptor"}, CategorySlug: "c18-columns"},
		{Kind: RuleKindBrand, Brand: "Restek", Patterns: []string{"ultra", "ibd"}, CategorySlug: "c18-columns"},
		{Kind: RuleKindBrand, Brand: "Restek", Patterns: []string{"allure"}, CategorySlug: "c18-columns"},
		{Kind: RuleKindBrand, Brand: "Restek", Patterns: []string{"pfas"}, CategorySlug: "c18-columns"},

		// Daicel chiral phases have no dedicated leaf
		{Kind: RuleKindBrand, Brand: "Daicel", Patterns: []string{"chiralpak"}, CategorySlug: "other-columns"},
		{Kind: RuleKindBrand, Brand: "Daicel", Patterns: []string{"chiralcel"}, CategorySlug: "other-columns"},

		// SPE cartridge series; the column exclusion keeps e.g.
		// "Oasis-compatible guard column" out of sample prep
		{Kind: RuleKindBrand, Brand: "Agilent", Patterns: []string{"bond elut"}, Exclude: []string{"column"}, CategorySlug: "spe-cartridges"},
		{Kind: RuleKindBrand, Brand: "Waters", Patterns: []string{"oasis"}, Exclude: []string{"column"}, CategorySlug: "spe-cartridges"},
		{Kind: RuleKindBrand, Brand: "Phenomenex", Patterns: []string{"strata"}, Exclude: []string{"column"}, CategorySlug: "spe-cartridges"},

		// Chemistry codes
		{Kind: RuleKindKeyword, Patterns: []string{"c18"}, CategorySlug: "c18-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{"c8"}, CategorySlug: "c8-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{"silica"}, CategorySlug: "silica-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{"phenyl"}, CategorySlug: "phenyl-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{"hilic"}, CategorySlug: "hilic-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{"cyano"}, CategorySlug: "cyano-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{" cn "}, CategorySlug: "cyano-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{"c4"}, CategorySlug: "c4-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{"pfp"}, CategorySlug: "pfp-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{"amino"}, CategorySlug: "amino-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{"nh2"}, CategorySlug: "amino-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{"diol"}, CategorySlug: "diol-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{"c30"}, CategorySlug: "c30-columns"},

		// Accessory types
		{Kind: RuleKindKeyword, Patterns: []string{"guard"}, CategorySlug: "guard-columns"},
		{Kind: RuleKindKeyword, Patterns: []string{"spe"}, CategorySlug: "spe-cartridges"},
		{Kind: RuleKindKeyword, Patterns: []string{"cartridge"}, CategorySlug: "spe-cartridges"},
		{Kind: RuleKindKeyword, Patterns: []string{"filter"}, CategorySlug: "syringe-filters"},
		{Kind: RuleKindKeyword, Patterns: []string{"vial"}, CategorySlug: "vials"},
		{Kind: RuleKindKeyword, Patterns: []string{"cap"}, CategorySlug: "caps-septa"},
		{Kind: RuleKindKeyword, Patterns: []string{"septa"}, CategorySlug: "caps-septa"},
		{Kind: RuleKindKeyword, Patterns: []string{"syringe"}, CategorySlug: "syringes-needles"},
		{Kind: RuleKindKeyword, Patterns: []string{"fitting"}, CategorySlug: "fittings-tubing"},
		{Kind: RuleKindKeyword, Patterns: []string{"tubing"}, CategorySlug: "fittings-tubing"},
	})
}
