package screening_test

import (
	"testing"

	"github.com/civicworks/fixline/internal/screening"
)

func TestRuleScorerCleanReport(t *testing.T) {
	s := screening.NewRuleScorer()
	res := s.Analyze(
		"Pothole on Main Street",
		"Large pothole near the intersection of Main and 4th, about half a meter wide.",
		"Main St & 4th Ave",
	)
	if res.Score != 0 {
		t.Errorf("clean report score = %d, want 0", res.Score)
	}
	if res.Severity != "none" {
		t.Errorf("clean report severity = %q, want %q", res.Severity, "none")
	}
	if len(res.Findings) != 0 {
		t.Errorf("clean report findings = %d, want 0", len(res.Findings))
	}
}

func TestRuleScorerSpamPhrases(t *testing.T) {
	s := screening.NewRuleScorer()
	res := s.Analyze(
		"FREE MONEY click here",
		"Visit my site for a limited offer, earn cash from home.",
		"Main St",
	)
	if res.Score < 35 {
		t.Errorf("spam report score = %d, want >= 35", res.Score)
	}
	if len(res.Findings) == 0 {
		t.Error("spam report produced no findings")
	}
}

func TestRuleScorerShortDescription(t *testing.T) {
	s := screening.NewRuleScorer()
	res := s.Analyze("Broken light", "broken", "5th Ave")
	if !hasRule(res.Findings, "short_description") {
		t.Errorf("findings = %+v, want short_description rule", res.Findings)
	}
}

func TestRuleScorerEmbeddedURL(t *testing.T) {
	s := screening.NewRuleScorer()
	res := s.Analyze(
		"Check this out",
		"See details at https://example.com/deal for the issue.",
		"Main St",
	)
	if !hasRule(res.Findings, "promotional_link") {
		t.Errorf("findings = %+v, want promotional_link rule", res.Findings)
	}
}

func TestRuleScorerRepeatedCharacters(t *testing.T) {
	s := screening.NewRuleScorer()
	res := s.Analyze("aaaaaaa", "asdf asdf something broken here", "Main St")
	if !hasRule(res.Findings, "repeated_characters") {
		t.Errorf("findings = %+v, want repeated_characters rule", res.Findings)
	}
}

func TestRuleScorerVagueLocation(t *testing.T) {
	s := screening.NewRuleScorer()
	res := s.Analyze("Water leak", "Water leaking from a broken main pipe.", "somewhere")
	if !hasRule(res.Findings, "vague_location") {
		t.Errorf("findings = %+v, want vague_location rule", res.Findings)
	}
}

func TestRuleScorerScoreCapped(t *testing.T) {
	s := screening.NewRuleScorer()
	score := s.Score(
		"FREE MONEY casino lottery click here buy now",
		"crypto crypto subscribe follow me visit my site http://spam.example limited offer work from home",
		"n/a",
	)
	if score > 100 {
		t.Errorf("score = %d, want <= 100", score)
	}
	if score < 85 {
		t.Errorf("heavily flagged report score = %d, want >= 85", score)
	}
}

func hasRule(findings []screening.Finding, rule string) bool {
	for _, f := range findings {
		if f.Rule == rule {
			return true
		}
	}
	return false
}
