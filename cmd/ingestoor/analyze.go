package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diffbench/ingestoor/pkg/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report app-detail identity field null-ness",
	Long: `Print a JSON report of app-detail rows bucketed by whether their app
name and URL are null. Useful for gauging normalizer coverage.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
		analysis, err := p.AnalyzeAppDetails(ctx)
		if err != nil {
			return fmt.Errorf("analyzing app details: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(analysis)
	})
}
