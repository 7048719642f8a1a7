package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diffbench/ingestoor/pkg/pipeline"
)

var normalizeMapping pipeline.AppNameMapping

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Rewrite application names onto canonical names",
	Long: `Rewrite free-form application names in the app-detail table onto the
supplied canonical names. All four names are required so no category
is silently skipped.`,
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizeMapping.Automatic1111,
		"automatic1111", "", "canonical name for AUTOMATIC1111 URLs")
	normalizeCmd.Flags().StringVar(&normalizeMapping.Vladmandic,
		"vladmandic", "", "canonical name for vladmandic URLs")
	normalizeCmd.Flags().StringVar(&normalizeMapping.StableDiffusion,
		"stable-diffusion", "", "canonical name for stable-diffusion-webui URLs")
	normalizeCmd.Flags().StringVar(&normalizeMapping.NullAppNameNullURL,
		"null-fallback", "", "canonical name for rows with no app name and no URL")

	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
		result, err := p.NormalizeAppNames(ctx, normalizeMapping)
		if err != nil {
			return fmt.Errorf("normalizing app names: %w", err)
		}

		log.WithField("automatic1111", result.Automatic1111).
			WithField("vladmandic", result.Vladmandic).
			WithField("stable_diffusion", result.StableDiffusion).
			WithField("null_fallback", result.NullAppNameNullURL).
			Info("Normalization finished")

		return nil
	})
}
