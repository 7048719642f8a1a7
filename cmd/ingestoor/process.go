package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/diffbench/ingestoor/pkg/pipeline"
)

var (
	processStage string
	processAll   bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run stage processors over pending raw runs",
	Long: `Run one stage processor with --stage, or all six with --all. Each
stage scans the runs lacking a row in its target table and fills the
gap, so re-running is always safe.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processStage, "stage", "",
		"stage to run: "+stageNames())
	processCmd.Flags().BoolVar(&processAll, "all", false,
		"run every stage, distinct stages in parallel")
	processCmd.MarkFlagsMutuallyExclusive("stage", "all")
	processCmd.MarkFlagsOneRequired("stage", "all")

	rootCmd.AddCommand(processCmd)
}

func stageNames() string {
	names := ""

	for i, stage := range pipeline.Stages() {
		if i > 0 {
			names += ", "
		}

		names += string(stage)
	}

	return names
}

func runProcess(cmd *cobra.Command, args []string) error {
	return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
		if !processAll {
			return runOneStage(ctx, p, pipeline.Stage(processStage))
		}

		// Distinct stages touch distinct target tables, so they can run
		// concurrently against the shared raw run store.
		g, gctx := errgroup.WithContext(ctx)

		for _, stage := range pipeline.Stages() {
			stage := stage
			g.Go(func() error {
				return runOneStage(gctx, p, stage)
			})
		}

		return g.Wait()
	})
}

func runOneStage(
	ctx context.Context, p *pipeline.Pipeline, stage pipeline.Stage,
) error {
	result, err := p.RunStage(ctx, stage)
	if err != nil {
		return fmt.Errorf("running stage %s: %w", stage, err)
	}

	log.WithField("stage", result.Stage).
		WithField("scanned", result.RowsScanned).
		WithField("inserted", result.RowsInserted).
		WithField("failed", result.RowsFailed).
		Info("Stage finished")

	return nil
}
