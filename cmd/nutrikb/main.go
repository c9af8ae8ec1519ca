package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/nutrikb/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "nutrikb",
		Short: "Nutrikb CLI - clinical knowledge bank client",
		Long: `Nutrikb CLI talks to a running nutrikbd server.

Environment variables:
  NUTRIKB_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")

	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.IndexCmd())
	rootCmd.AddCommand(client.RetrieveCmd())
	rootCmd.AddCommand(client.RecommendCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
