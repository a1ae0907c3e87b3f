package screening

import "strings"

// ruleFunc inspects a submission and returns zero or more Findings if its
// rule matches.
type ruleFunc func(title, description, location string) []Finding

// RuleScorer is the default scorer. It runs a fixed set of pattern-matching
// rules against the submission text and accumulates a score.
type RuleScorer struct {
	rules []ruleFunc
}

// NewRuleScorer returns a RuleScorer loaded with the default rule set.
func NewRuleScorer() *RuleScorer {
	s := &RuleScorer{}
	s.rules = []ruleFunc{
		ruleSpamPhrases,
		ruleShortDescription,
		rulePromotionalLinks,
		ruleRepeatedCharacters,
		ruleVagueLocation,
	}
	return s
}

// Analyze runs every rule and returns the full screening result.
func (s *RuleScorer) Analyze(title, description, location string) *Result {
	var findings []Finding
	for _, r := range s.rules {
		findings = append(findings, r(title, description, location)...)
	}

	total := 0
	for _, f := range findings {
		total += int(f.Confidence * 25)
	}
	if total > 100 {
		total = 100
	}

	if findings == nil {
		findings = []Finding{}
	}

	return &Result{
		Score:    total,
		Severity: severityLabel(total),
		Findings: findings,
	}
}

// Score returns only the aggregate score, for callers that store a single
// number on the report.
func (s *RuleScorer) Score(title, description, location string) int {
	return s.Analyze(title, description, location).Score
}

// ── Rules ─────────────────────────────────────────────────────────────────────

// spamPhrases are substrings that almost never appear in a genuine
// infrastructure issue report.
var spamPhrases = []string{
	"buy now", "click here", "free money", "limited offer", "visit my",
	"earn cash", "work from home", "crypto", "casino", "lottery",
	"subscribe", "follow me",
}

func ruleSpamPhrases(title, description, _ string) []Finding {
	var findings []Finding
	lower := strings.ToLower(title + " " + description)
	for _, phrase := range spamPhrases {
		if strings.Contains(lower, phrase) {
			findings = append(findings, Finding{
				Rule:        "spam_phrase",
				Description: "Text contains spam phrase: " + phrase,
				Confidence:  0.8,
			})
		}
	}
	return findings
}

// ruleShortDescription flags descriptions too short to describe an actual
// issue.
func ruleShortDescription(_, description, _ string) []Finding {
	if len(strings.Fields(description)) < 3 {
		return []Finding{{
			Rule:        "short_description",
			Description: "Description has fewer than three words",
			Confidence:  0.5,
		}}
	}
	return nil
}

// rulePromotionalLinks flags URLs embedded in the report text. Genuine
// reports attach photos; they do not link out.
func rulePromotionalLinks(title, description, _ string) []Finding {
	lower := strings.ToLower(title + " " + description)
	if strings.Contains(lower, "http://") || strings.Contains(lower, "https://") || strings.Contains(lower, "www.") {
		return []Finding{{
			Rule:        "promotional_link",
			Description: "Text contains an embedded URL",
			Confidence:  0.6,
		}}
	}
	return nil
}

// ruleRepeatedCharacters flags keyboard-mash submissions (five or more of
// the same character in a row).
func ruleRepeatedCharacters(title, description, _ string) []Finding {
	var findings []Finding
	for _, text := range []string{title, description} {
		run := 0
		var last rune
		for _, r := range text {
			if r == last {
				run++
				if run >= 5 {
					findings = append(findings, Finding{
						Rule:        "repeated_characters",
						Description: "Text contains a long run of repeated characters",
						Confidence:  0.6,
					})
					break
				}
			} else {
				last = r
				run = 1
			}
		}
	}
	return findings
}

// vagueLocations are placeholder values that carry no routing information.
var vagueLocations = []string{
	"somewhere", "anywhere", "everywhere", "n/a", "na", "none", "unknown",
	"test", "asdf", "xyz",
}

func ruleVagueLocation(_, _, location string) []Finding {
	lower := strings.ToLower(strings.TrimSpace(location))
	for _, v := range vagueLocations {
		if lower == v {
			return []Finding{{
				Rule:        "vague_location",
				Description: "Location is a placeholder value: " + v,
				Confidence:  0.4,
			}}
		}
	}
	return nil
}
