package memory

import (
	"regexp"
	"strings"
)

// Category labels a memory with the kind of information it holds.
type Category string

const (
	CategoryPreferences Category = "preferences"
	CategoryPersonal    Category = "personal"
	CategoryHealth      Category = "health"
	CategorySkills      Category = "skills"
	CategoryFacts       Category = "facts"
	CategoryGeneral     Category = "general"
)

// categoryRules is the fixed, ordered rule table for category detection.
// Order matters: ties in the pattern vote are broken by position here.
var categoryRules = []struct {
	category Category
	patterns []*regexp.Regexp
}{
	{CategoryPreferences, compilePatterns(`prefer`, `\blike\b`, `enjoy`, `rather`, `instead`)},
	{CategoryPersonal, compilePatterns(`\bname\b`, `\bage\b`, `\blive\b`, `family`, `\bjob\b`, `\bwork\b`, `\bdog\b`, `\bcat\b`, `\bpet\b`)},
	{CategoryHealth, compilePatterns(`allerg`, `health`, `medical`, `condition`, `medication`)},
	{CategorySkills, compilePatterns(`\bcan\b`, `know how`, `able to`, `experience`, `skilled`)},
	{CategoryFacts, compilePatterns(`\bfact\b`, `\btrue\b`, `\balways\b`, `\bnever\b`, `\bmust\b`)},
}

// DetectCategory assigns a category by counting pattern hits per category
// over the lower-cased text. The category with the most hits wins; ties go
// to the earlier entry in the rule table; no hits means CategoryGeneral.
//
// Detection is deterministic and explainable on purpose: it is a heuristic
// and never fails, so callers need no error path.
func DetectCategory(text string) Category {
	lowered := strings.ToLower(text)

	best := CategoryGeneral
	bestHits := 0
	for _, rule := range categoryRules {
		hits := 0
		for _, p := range rule.patterns {
			if p.MatchString(lowered) {
				hits++
			}
		}
		if hits > bestHits {
			best = rule.category
			bestHits = hits
		}
	}
	return best
}
