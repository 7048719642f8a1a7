package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diffbench/ingestoor/pkg/pipeline"
)

var mapModelsCmd = &cobra.Command{
	Use:   "map-models",
	Short: "Link run details to the model dictionary",
	Long: `Link unmapped run-detail rows to model dictionary entries by exact
model name. Links already set are never revisited.`,
	RunE: runMapModels,
}

func init() {
	rootCmd.AddCommand(mapModelsCmd)
}

func runMapModels(cmd *cobra.Command, args []string) error {
	return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
		result, err := p.MapModels(ctx)
		if err != nil {
			return fmt.Errorf("mapping models: %w", err)
		}

		log.WithField("updated", result.Updated).
			WithField("not_found", result.NotFound).
			Info("Model mapping finished")

		return nil
	})
}
