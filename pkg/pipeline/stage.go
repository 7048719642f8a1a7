package pipeline

import (
	"context"
	"fmt"

	"github.com/diffbench/ingestoor/pkg/parse"
	"github.com/diffbench/ingestoor/pkg/store"
)

// StageResult reports one stage processor invocation.
type StageResult struct {
	Stage        Stage        `json:"stage"`
	RowsScanned  int          `json:"rows_scanned"`
	RowsInserted int          `json:"rows_inserted"`
	RowsFailed   int          `json:"rows_failed"`
	Errors       []StageError `json:"errors,omitempty"`
}

// StageError records one run that could not be turned into a derived row.
// The run keeps no target row, so the next invocation retries it.
type StageError struct {
	RunID  uint   `json:"run_id"`
	Reason string `json:"reason"`
}

// RunStage executes one stage processor: scan the runs lacking a row in the
// stage's target table, parse the relevant raw field of each, and insert all
// parsed rows in one transaction. Re-invoking with no pending runs is a no-op
// success, which makes every stage idempotent.
func (p *Pipeline) RunStage(ctx context.Context, stage Stage) (*StageResult, error) {
	mu, ok := p.stageMu[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}

	// One scan-then-insert sequence per target table at a time.
	mu.Lock()
	defer mu.Unlock()

	switch stage {
	case StagePerformance:
		return runStage(ctx, p, stage,
			p.store.ListRunsMissingPerformance,
			buildPerformanceRow,
			p.store.CreatePerformanceResults,
		)
	case StageAppDetails:
		return runStage(ctx, p, stage,
			p.store.ListRunsMissingAppDetails,
			buildAppDetailRow,
			p.store.CreateAppDetails,
		)
	case StageSystemInfo:
		return runStage(ctx, p, stage,
			p.store.ListRunsMissingSystemInfo,
			buildSystemInfoRow,
			p.store.CreateSystemInfos,
		)
	case StageLibraries:
		return runStage(ctx, p, stage,
			p.store.ListRunsMissingLibraries,
			buildLibraryRow,
			p.store.CreateLibraries,
		)
	case StageGPU:
		return runStage(ctx, p, stage,
			p.store.ListRunsMissingGPU,
			buildGPURow,
			p.store.CreateGPUs,
		)
	case StageRunDetails:
		return runStage(ctx, p, stage,
			p.store.ListRunsMissingRunDetails,
			buildRunDetailsRow,
			p.store.CreateRunDetails,
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
}

// runStage is the stage processor framework shared by all six stages. A
// build failure skips that run and continues; a storage fault on the batch
// insert fails the whole invocation with nothing committed.
func runStage[T any](
	ctx context.Context,
	p *Pipeline,
	stage Stage,
	scan func(context.Context) ([]store.Run, error),
	build func(run store.Run) (*T, *StageError),
	insert func(context.Context, []*T) error,
) (*StageResult, error) {
	runs, err := scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning stage %s: %w", stage, err)
	}

	result := &StageResult{Stage: stage, RowsScanned: len(runs)}

	if len(runs) == 0 {
		return result, nil
	}

	staged := make([]*T, 0, len(runs))

	for _, run := range runs {
		row, stageErr := build(run)
		if stageErr != nil {
			result.RowsFailed++
			result.Errors = append(result.Errors, *stageErr)

			p.log.WithField("stage", stage).
				WithField("run_id", stageErr.RunID).
				WithField("reason", stageErr.Reason).
				Warn("Skipping run")

			continue
		}

		staged = append(staged, row)
	}

	if err := insert(ctx, staged); err != nil {
		return nil, fmt.Errorf("inserting stage %s batch: %w", stage, err)
	}

	result.RowsInserted = len(staged)

	p.log.WithField("stage", stage).
		WithField("scanned", result.RowsScanned).
		WithField("inserted", result.RowsInserted).
		WithField("failed", result.RowsFailed).
		Info("Stage processed")

	return result, nil
}

// deref returns the pointed-to string or "" for nil. Parsers treat empty and
// absent raw fields identically: an all-null row, not a failure.
func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func buildPerformanceRow(run store.Run) (*store.PerformanceResult, *StageError) {
	perf := parse.ParsePerformance(deref(run.VRAMUsage))

	return &store.PerformanceResult{
		RunID:  &run.ID,
		ITS:    run.VRAMUsage,
		AvgITS: perf.Average,
	}, nil
}

func buildAppDetailRow(run store.Run) (*store.AppDetail, *StageError) {
	info := parse.ParseAppInfo(deref(run.Info))

	return &store.AppDetail{
		RunID:   &run.ID,
		AppName: info.AppName,
		Updated: info.Updated,
		Hash:    info.Hash,
		URL:     info.URL,
	}, nil
}

func buildSystemInfoRow(run store.Run) (*store.SystemInfo, *StageError) {
	sys := parse.ParseSystemInfo(deref(run.SystemInfo))

	return &store.SystemInfo{
		RunID:   &run.ID,
		Arch:    sys.Arch,
		CPU:     sys.CPU,
		System:  sys.System,
		Release: sys.Release,
		Python:  sys.Python,
	}, nil
}

// buildLibraryRow records both xformers values: the run-level field and the
// version parsed out of the library field. They are independently addressable
// in the source data and stay that way here.
func buildLibraryRow(run store.Run) (*store.Library, *StageError) {
	libs := parse.ParseLibraries(deref(run.ModelInfo))

	return &store.Library{
		RunID:        &run.ID,
		Torch:        libs.Torch,
		Xformers:     run.Xformers,
		Xformers1:    libs.Xformers,
		Diffusers:    libs.Diffusers,
		Transformers: libs.Transformers,
	}, nil
}

func buildGPURow(run store.Run) (*store.GPU, *StageError) {
	dev := parse.ParseDeviceInfo(deref(run.DeviceInfo))

	return &store.GPU{
		RunID:   &run.ID,
		Device:  dev.Device,
		Driver:  dev.Driver,
		GPUChip: dev.GPUChip,
	}, nil
}

func buildRunDetailsRow(run store.Run) (*store.RunMoreDetails, *StageError) {
	return &store.RunMoreDetails{
		RunID:     &run.ID,
		Timestamp: run.Timestamp,
		ModelName: run.ModelName,
		User:      run.User,
		Notes:     run.Notes,
	}, nil
}
