package pipeline_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffbench/ingestoor/pkg/config"
	"github.com/diffbench/ingestoor/pkg/pipeline"
	"github.com/diffbench/ingestoor/pkg/store"
)

func setupPipeline(t *testing.T) (*pipeline.Pipeline, store.Store) {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := store.NewStore(log, cfg)
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	return pipeline.New(log, s), s
}

func importRecords(t *testing.T, p *pipeline.Pipeline, records []pipeline.RawRun) {
	t.Helper()

	payload, err := json.Marshal(records)
	require.NoError(t, err)

	result, err := p.ImportRuns(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, len(records), result.Imported)
	require.Zero(t, result.Rejected)
}

func sampleRecords() []pipeline.RawRun {
	return []pipeline.RawRun{
		{
			Timestamp:  "2024-01-01 12:00:00",
			VRAMUsage:  "10.1/NaN/9.9",
			Info:       "app: test updated: 2024-01-01 hash: abc123 url: https://example.com",
			SystemInfo: "arch: x86_64 cpu: AMD Ryzen 9 5900X system: Linux release: 5.15.0 python: 3.10.6",
			ModelInfo:  "torch: 2.0.1 xformers: 0.0.20 diffusers: 0.19.3 transformers: 4.30.2",
			DeviceInfo: "device: NVIDIA GeForce RTX 3080 driver: 535.86.10 gpu_chip: GA102",
			Xformers:   "0.0.21",
			ModelName:  "sd-v1-5",
			User:       "alice",
			Notes:      "first run",
		},
		{
			Timestamp:  "2024-01-02 08:30:00",
			VRAMUsage:  "NaN",
			Info:       "url: https://github.com/AUTOMATIC1111/stable-diffusion-webui",
			DeviceInfo: "device: AMD Radeon RX 6800 XT driver: 23.7.1",
			ModelName:  "custom-merge",
			User:       "bob",
		},
		{
			Timestamp:  "2024-01-03 17:45:00",
			VRAMUsage:  "4.2",
			DeviceInfo: "device: NVIDIA GeForce RTX 3070 Laptop GPU driver: 531.14",
		},
	}
}

func TestImportRuns_MalformedPayload(t *testing.T) {
	p, s := setupPipeline(t)
	ctx := context.Background()

	_, err := p.ImportRuns(ctx, []byte(`{"not": "a list"}`))
	require.ErrorIs(t, err, pipeline.ErrMalformedBatch)

	// Nothing committed.
	count, err := s.CountRuns(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImportRuns_RejectsNonRecordElements(t *testing.T) {
	p, s := setupPipeline(t)
	ctx := context.Background()

	payload := []byte(`[{"user": "alice"}, 42, {"user": "bob"}]`)

	result, err := p.ImportRuns(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Rejected)
	assert.Len(t, result.Errors, 1)

	count, err := s.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRunStage_UnknownStage(t *testing.T) {
	p, _ := setupPipeline(t)

	_, err := p.RunStage(context.Background(), pipeline.Stage("bogus"))
	assert.ErrorIs(t, err, pipeline.ErrUnknownStage)
}

func TestRunStage_AppDetailsEndToEnd(t *testing.T) {
	p, s := setupPipeline(t)
	ctx := context.Background()

	importRecords(t, p, sampleRecords()[:1])

	result, err := p.RunStage(ctx, pipeline.StageAppDetails)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowsScanned)
	assert.Equal(t, 1, result.RowsInserted)
	assert.Zero(t, result.RowsFailed)

	details, err := s.ListAppDetails(ctx)
	require.NoError(t, err)
	require.Len(t, details, 1)

	require.NotNil(t, details[0].AppName)
	assert.Equal(t, "test", *details[0].AppName)
	assert.Equal(t, "2024-01-01", *details[0].Updated)
	assert.Equal(t, "abc123", *details[0].Hash)
	assert.Equal(t, "https://example.com", *details[0].URL)
}

func TestRunStage_PerformanceAveraging(t *testing.T) {
	p, s := setupPipeline(t)
	ctx := context.Background()

	importRecords(t, p, sampleRecords())

	result, err := p.RunStage(ctx, pipeline.StagePerformance)
	require.NoError(t, err)
	assert.Equal(t, 3, result.RowsInserted)

	rows, err := s.ListPerformanceResults(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// "10.1/NaN/9.9" averages the two valid samples.
	require.NotNil(t, rows[0].AvgITS)
	assert.InDelta(t, 10.0, *rows[0].AvgITS, 1e-9)

	// "NaN" has no valid samples: absent average, not zero.
	assert.Nil(t, rows[1].AvgITS)

	require.NotNil(t, rows[2].AvgITS)
	assert.InDelta(t, 4.2, *rows[2].AvgITS, 1e-9)
}

func TestRunStage_Idempotency(t *testing.T) {
	p, s := setupPipeline(t)
	ctx := context.Background()

	importRecords(t, p, sampleRecords())

	for _, stage := range pipeline.Stages() {
		first, err := p.RunStage(ctx, stage)
		require.NoError(t, err)
		assert.Equal(t, 3, first.RowsInserted, "stage %s", stage)

		second, err := p.RunStage(ctx, stage)
		require.NoError(t, err)
		assert.Zero(t, second.RowsScanned, "stage %s", stage)
		assert.Zero(t, second.RowsInserted, "stage %s", stage)
	}

	// Row counts unchanged after the second pass.
	gpus, err := s.ListGPUs(ctx)
	require.NoError(t, err)
	assert.Len(t, gpus, 3)
}

func TestRunStage_PicksUpNewRuns(t *testing.T) {
	p, _ := setupPipeline(t)
	ctx := context.Background()

	records := sampleRecords()
	importRecords(t, p, records[:2])

	first, err := p.RunStage(ctx, pipeline.StageGPU)
	require.NoError(t, err)
	assert.Equal(t, 2, first.RowsInserted)

	importRecords(t, p, records[2:])

	second, err := p.RunStage(ctx, pipeline.StageGPU)
	require.NoError(t, err)
	assert.Equal(t, 1, second.RowsScanned)
	assert.Equal(t, 1, second.RowsInserted)
}

func TestRunStage_LibrariesKeepBothXformersFields(t *testing.T) {
	p, s := setupPipeline(t)
	ctx := context.Background()

	importRecords(t, p, sampleRecords()[:1])

	_, err := p.RunStage(ctx, pipeline.StageLibraries)
	require.NoError(t, err)

	libs, err := s.ListLibraries(ctx)
	require.NoError(t, err)
	require.Len(t, libs, 1)

	// Run-level field and library-field version stay independent.
	require.NotNil(t, libs[0].Xformers)
	require.NotNil(t, libs[0].Xformers1)
	assert.Equal(t, "0.0.21", *libs[0].Xformers)
	assert.Equal(t, "0.0.20", *libs[0].Xformers1)
	assert.Equal(t, "2.0.1", *libs[0].Torch)
}

func TestRunStage_EmptyFieldsYieldNullRow(t *testing.T) {
	p, s := setupPipeline(t)
	ctx := context.Background()

	importRecords(t, p, []pipeline.RawRun{{User: "carol"}})

	result, err := p.RunStage(ctx, pipeline.StageSystemInfo)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowsInserted)
	assert.Zero(t, result.RowsFailed)

	rows, err := s.ListSystemInfos(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Arch)
	assert.Nil(t, rows[0].CPU)
	assert.Nil(t, rows[0].Python)
}

func TestClassifyGPUs(t *testing.T) {
	p, s := setupPipeline(t)
	ctx := context.Background()

	importRecords(t, p, []pipeline.RawRun{
		{DeviceInfo: "device: NVIDIA GeForce RTX 3080"},
		{DeviceInfo: "device: RX 6800 XT"},
		{DeviceInfo: "device: UHD Graphics 630"},
		{DeviceInfo: "device: NVIDIA GeForce RTX 3070 Laptop GPU"},
		{DeviceInfo: "device: Apple M2"},
		{User: "no-device"},
	})

	_, err := p.RunStage(ctx, pipeline.StageGPU)
	require.NoError(t, err)

	result, err := p.ClassifyGPUs(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Nvidia)
	assert.Equal(t, int64(1), result.AMD)
	assert.Equal(t, int64(1), result.Intel)
	assert.Equal(t, int64(2), result.Unknown)
	assert.Equal(t, int64(1), result.Laptop)
	assert.Equal(t, int64(5), result.Desktop)

	// Totality: every row ends with a defined brand and laptop flag.
	gpus, err := s.ListGPUs(ctx)
	require.NoError(t, err)

	for _, gpu := range gpus {
		assert.NotEmpty(t, gpu.Brand)
		assert.NotNil(t, gpu.IsLaptop)
	}

	// Re-running recomputes the same result.
	again, err := p.ClassifyGPUs(ctx)
	require.NoError(t, err)
	assert.Equal(t, result, again)
}

func TestNormalizeAppNames(t *testing.T) {
	p, s := setupPipeline(t)
	ctx := context.Background()

	importRecords(t, p, []pipeline.RawRun{
		{Info: "url: https://github.com/AUTOMATIC1111/stable-diffusion-webui"},
		{Info: "url: https://github.com/vladmandic/automatic"},
		{Info: "url: https://github.com/other/stable-diffusion-webui"},
		{User: "dave"},
		{Info: "app: keepme url: https://example.com"},
	})

	_, err := p.RunStage(ctx, pipeline.StageAppDetails)
	require.NoError(t, err)

	mapping := pipeline.AppNameMapping{
		Automatic1111:      "AUTOMATIC1111 WebUI",
		Vladmandic:         "SD.Next",
		StableDiffusion:    "Stable Diffusion WebUI",
		NullAppNameNullURL: "unknown",
	}

	result, err := p.NormalizeAppNames(ctx, mapping)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Automatic1111)
	assert.Equal(t, int64(1), result.Vladmandic)
	assert.Equal(t, int64(1), result.StableDiffusion)
	assert.Equal(t, int64(1), result.NullAppNameNullURL)

	details, err := s.ListAppDetails(ctx)
	require.NoError(t, err)
	require.Len(t, details, 5)

	assert.Equal(t, "AUTOMATIC1111 WebUI", *details[0].AppName)
	assert.Equal(t, "SD.Next", *details[1].AppName)
	assert.Equal(t, "Stable Diffusion WebUI", *details[2].AppName)
	assert.Equal(t, "unknown", *details[3].AppName)

	// Non-matching rows are untouched.
	assert.Equal(t, "keepme", *details[4].AppName)
}

func TestNormalizeAppNames_InvalidMapping(t *testing.T) {
	p, _ := setupPipeline(t)

	_, err := p.NormalizeAppNames(context.Background(), pipeline.AppNameMapping{
		Automatic1111: "only one set",
	})
	assert.ErrorIs(t, err, pipeline.ErrInvalidMapping)
}

func TestMapModels_Monotonic(t *testing.T) {
	p, s := setupPipeline(t)
	ctx := context.Background()

	importRecords(t, p, sampleRecords())

	_, err := p.RunStage(ctx, pipeline.StageRunDetails)
	require.NoError(t, err)

	require.NoError(t, s.CreateModelMaps(ctx, []*store.ModelMap{
		{ModelName: "sd-v1-5"},
	}))

	result, err := p.MapModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.NotFound)

	// Add the missing name and re-run: only the still-unmapped rows are
	// scanned and the existing link survives.
	require.NoError(t, s.CreateModelMaps(ctx, []*store.ModelMap{
		{ModelName: "custom-merge"},
	}))

	maps, err := s.ListModelMaps(ctx)
	require.NoError(t, err)

	firstID := maps[0].ID

	again, err := p.MapModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Updated)
	assert.Equal(t, 1, again.NotFound)

	details, err := s.ListRunDetails(ctx)
	require.NoError(t, err)
	require.NotNil(t, details[0].ModelMapID)
	assert.Equal(t, firstID, *details[0].ModelMapID)
}

func TestAnalyzeAppDetails(t *testing.T) {
	p, _ := setupPipeline(t)
	ctx := context.Background()

	importRecords(t, p, []pipeline.RawRun{
		{Info: "app: test url: https://example.com"},
		{Info: "app: test"},
		{User: "eve"},
	})

	_, err := p.RunStage(ctx, pipeline.StageAppDetails)
	require.NoError(t, err)

	analysis, err := p.AnalyzeAppDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), analysis.TotalRows)

	byKey := make(map[[2]bool]int64, len(analysis.Buckets))
	for _, bucket := range analysis.Buckets {
		byKey[[2]bool{bucket.AppNameNull, bucket.URLNull}] = bucket.Count
	}

	assert.Equal(t, int64(1), byKey[[2]bool{false, false}])
	assert.Equal(t, int64(1), byKey[[2]bool{false, true}])
	assert.Equal(t, int64(1), byKey[[2]bool{true, true}])
}
