package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diffbench/ingestoor/pkg/config"
	"github.com/diffbench/ingestoor/pkg/pipeline"
	"github.com/diffbench/ingestoor/pkg/store"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a JSON file of raw run submissions",
	Long: `Read a JSON array of benchmark run submissions from a file and append
them to the raw run store in a single transaction.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "",
		"path to the JSON submissions file (required)")

	if err := importCmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	payload, err := os.ReadFile(importFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", importFile, err)
	}

	return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
		result, err := p.ImportRuns(ctx, payload)
		if err != nil {
			return fmt.Errorf("importing runs: %w", err)
		}

		log.WithField("imported", result.Imported).
			WithField("rejected", result.Rejected).
			Info("Import finished")

		for _, msg := range result.Errors {
			log.WithField("reason", msg).Warn("Rejected record")
		}

		return nil
	})
}

// withPipeline loads the config, opens the store, and runs fn against a
// pipeline bound to it. The store is closed on return.
func withPipeline(
	fn func(ctx context.Context, p *pipeline.Pipeline) error,
) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Store stop error")
		}
	}()

	return fn(ctx, pipeline.New(log, st))
}
