package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diffbench/ingestoor/pkg/pipeline"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify GPU brand and form factor",
	Long: `Recompute the brand and laptop flag of every GPU row from its device
description. The pass overwrites prior classifications.`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
		result, err := p.ClassifyGPUs(ctx)
		if err != nil {
			return fmt.Errorf("classifying gpus: %w", err)
		}

		log.WithField("nvidia", result.Nvidia).
			WithField("amd", result.AMD).
			WithField("intel", result.Intel).
			WithField("unknown", result.Unknown).
			WithField("laptop", result.Laptop).
			WithField("desktop", result.Desktop).
			Info("Classification finished")

		return nil
	})
}
