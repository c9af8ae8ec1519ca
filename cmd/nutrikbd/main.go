package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/nutrikb/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nutrikbd",
		Short: "Nutrikb daemon and admin CLI",
		Long:  "Nutrikb daemon for running the API server and administering the clinical knowledge bank",
	}

	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.KBCmd())
	rootCmd.AddCommand(admin.RecommendCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
