package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of approved_tests.yaml. Other keys,
// such as the optional list, are documentation and ignored.
type catalogFile struct {
	Tests    []string            `yaml:"tests"`
	Baseline []string            `yaml:"baseline"`
	Symptoms map[string][]string `yaml:"symptoms"`
	Match    string              `yaml:"match"`
}

// DefaultCatalog returns the built-in test catalogue.
func DefaultCatalog() *domain.Catalog {
	baseline := []string{
		"CBC", "Serum Ferritin", "Vitamin D 25‑OH", "Vitamin B12", "Folate",
		"Iron Panel", "TSH", "Zinc", "Magnesium", "CMP/LFT",
	}
	optional := []string{"CRP", "HbA1c", "Lipid Profile", "tTG‑IgA (Coeliac)", "Total IgA", "Lead (Blood)", "Electrolytes"}

	approved := make([]string, 0, len(baseline)+len(optional))
	approved = append(approved, baseline...)
	approved = append(approved, optional...)

	return &domain.Catalog{
		Approved: approved,
		Baseline: baseline,
		Symptoms: map[string][]string{
			"constipation":  {"Serum Ferritin", "Zinc", "Magnesium"},
			"diarrhoea":     {"Electrolytes", "CRP"},
			"pica":          {"Serum Ferritin", "CBC", "Lead (Blood)"},
			"sleep":         {"Vitamin D 25‑OH", "Ferritin"},
			"hyperactivity": {"Ferritin", "Vitamin D 25‑OH", "TSH"},
			"poor appetite": {"CBC", "Iron Panel", "Zinc"},
			"overweight":    {"HbA1c", "Lipid Profile"},
			"underweight":   {"CBC", "CMP/LFT", "TSH"},
			"gi":            {"tTG‑IgA (Coeliac)", "Total IgA"},
		},
		Match: domain.MatchSubstring,
	}
}

// LoadCatalog reads the catalogue from path. An empty path yields the
// built-in catalogue; a path that does not exist is an error.
func LoadCatalog(path string) (*domain.Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("catalog file %s not found", path)
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	return ParseCatalog(data)
}

// ParseCatalog decodes catalogue YAML.
func ParseCatalog(data []byte) (*domain.Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	cat := &domain.Catalog{
		Approved: f.Tests,
		Baseline: f.Baseline,
		Symptoms: make(map[string][]string, len(f.Symptoms)),
		Match:    domain.MatchMode(f.Match),
	}
	if cat.Match == "" {
		cat.Match = domain.MatchSubstring
	}
	for k, tests := range f.Symptoms {
		cat.Symptoms[strings.ToLower(strings.TrimSpace(k))] = tests
	}

	if err := domain.ValidateCatalog(cat); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return cat, nil
}
