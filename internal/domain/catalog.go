package domain

import (
	"fmt"
	"sort"
	"strings"
)

// MatchMode controls how symptom keywords are located in free text.
type MatchMode string

const (
	// MatchSubstring matches a keyword anywhere, including inside longer words.
	MatchSubstring MatchMode = "substring"
	// MatchWord only matches a keyword bounded by non-letter characters.
	MatchWord MatchMode = "word"
)

// Catalog is the read-only test configuration consumed by the rule engine.
// Only Baseline and the symptom mappings produce recommendations.
type Catalog struct {
	Approved []string
	Baseline []string
	Symptoms map[string][]string
	Match    MatchMode
}

// TestRecommendation is the rule engine's output.
type TestRecommendation struct {
	Approved  []string `yaml:"approved" json:"approved"`
	RuleBased []string `yaml:"rule_based" json:"rule_based"`
}

// IsApproved reports whether test is on the approved list.
func (c *Catalog) IsApproved(test string) bool {
	for _, t := range c.Approved {
		if t == test {
			return true
		}
	}
	return false
}

// SortedApproved returns a sorted, de-duplicated copy of the approved list.
func (c *Catalog) SortedApproved() []string {
	return SortedUnique(c.Approved)
}

// Keywords returns the symptom keywords in a stable order.
func (c *Catalog) Keywords() []string {
	keys := make([]string, 0, len(c.Symptoms))
	for k := range c.Symptoms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateCatalog validates a Catalog instance
func ValidateCatalog(c *Catalog) error {
	if c == nil {
		return fmt.Errorf("catalog cannot be nil")
	}

	if len(c.Approved) == 0 {
		return fmt.Errorf("catalog Approved list is required")
	}

	for k := range c.Symptoms {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("catalog Symptoms contains an empty keyword")
		}
		if k != strings.ToLower(k) {
			return fmt.Errorf("catalog Symptoms keyword %q must be lowercase", k)
		}
	}

	switch c.Match {
	case MatchSubstring, MatchWord:
	default:
		return fmt.Errorf("catalog Match is invalid: %s", c.Match)
	}

	return nil
}

// SortedUnique returns the sorted set of non-empty values.
func SortedUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
