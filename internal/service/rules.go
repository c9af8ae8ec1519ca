package service

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"gopkg.in/yaml.v3"
)

// RuleEngine maps free-text symptoms to approved tests. It is deterministic
// and never calls an external service.
type RuleEngine struct {
	catalog *domain.Catalog
}

func NewRuleEngine(catalog *domain.Catalog) *RuleEngine {
	return &RuleEngine{catalog: catalog}
}

func (e *RuleEngine) Catalog() *domain.Catalog {
	return e.catalog
}

// Recommend returns the baseline tests plus the tests of every symptom keyword
// found in context or answers, restricted to the approved list.
func (e *RuleEngine) Recommend(context, answers string) *domain.TestRecommendation {
	text := strings.ToLower(context + "\n" + answers)

	picked := make([]string, 0, len(e.catalog.Baseline))
	picked = append(picked, e.catalog.Baseline...)
	for _, kw := range e.catalog.Keywords() {
		if e.matches(text, kw) {
			picked = append(picked, e.catalog.Symptoms[kw]...)
		}
	}

	approved := make([]string, 0, len(picked))
	for _, t := range picked {
		if e.catalog.IsApproved(t) {
			approved = append(approved, t)
		}
	}

	return &domain.TestRecommendation{
		Approved:  e.catalog.SortedApproved(),
		RuleBased: domain.SortedUnique(approved),
	}
}

// RecommendYAML renders Recommend's result as the YAML block fed to the
// test prompt.
func (e *RuleEngine) RecommendYAML(context, answers string) (string, error) {
	return RecommendationYAML(e.Recommend(context, answers))
}

func RecommendationYAML(rec *domain.TestRecommendation) (string, error) {
	out, err := yaml.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal recommendation: %w", err)
	}
	return string(out), nil
}

func (e *RuleEngine) matches(text, keyword string) bool {
	if e.catalog.Match != domain.MatchWord {
		return strings.Contains(text, keyword)
	}
	return containsWord(text, keyword)
}

// containsWord reports whether keyword occurs in text with no letter or digit
// directly before or after it.
func containsWord(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	offset := 0
	for {
		i := strings.Index(text[offset:], keyword)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(keyword)

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
