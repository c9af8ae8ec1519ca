package admin

import (
	"fmt"
	"io"
	"os"

	"github.com/cloo-solutions/nutrikb/internal/config"
	"github.com/cloo-solutions/nutrikb/internal/service"
	"github.com/spf13/cobra"
)

const envCatalogPath = "NUTRIKB_CATALOG_PATH"

// RecommendCmd runs the rule engine offline; it needs neither the database
// nor the embedding service.
func RecommendCmd() *cobra.Command {
	var contextFile, answersFile, catalogPath string

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend approved lab tests",
		Long:  "Print the approved catalogue and the rule-based picks for a context and answers file as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if catalogPath == "" {
				catalogPath = os.Getenv(envCatalogPath)
			}
			return runRecommend(cmd.OutOrStdout(), catalogPath, contextFile, answersFile)
		},
	}

	cmd.Flags().StringVar(&contextFile, "context-file", "", "File with consultation context")
	cmd.Flags().StringVar(&answersFile, "answers-file", "", "File with the parent's answers")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Approved tests YAML (default "+envCatalogPath+" or built-in)")

	return cmd
}

func runRecommend(out io.Writer, catalogPath, contextFile, answersFile string) error {
	catalog, err := config.LoadCatalog(catalogPath)
	if err != nil {
		return err
	}

	text, err := readOptionalFile(contextFile)
	if err != nil {
		return err
	}
	answers, err := readOptionalFile(answersFile)
	if err != nil {
		return err
	}

	rec := service.NewRuleEngine(catalog).Recommend(text, answers)
	yml, err := service.RecommendationYAML(rec)
	if err != nil {
		return err
	}
	fmt.Fprint(out, yml)
	return nil
}

func readOptionalFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
