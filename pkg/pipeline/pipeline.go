// Package pipeline implements the ingestion and normalization pipeline: the
// raw-record importer, the idempotent stage processors that populate the
// derived tables, and the classification passes that run after them.
package pipeline

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/diffbench/ingestoor/pkg/store"
)

// Stage identifies one normalization stage, one per derived table.
type Stage string

// Stage identifiers.
const (
	StagePerformance Stage = "performance"
	StageAppDetails  Stage = "app-details"
	StageSystemInfo  Stage = "system-info"
	StageLibraries   Stage = "libraries"
	StageGPU         Stage = "gpu"
	StageRunDetails  Stage = "run-details"
)

// Stages returns all stage identifiers in their conventional processing
// order. Stages are independent; the order is cosmetic.
func Stages() []Stage {
	return []Stage{
		StagePerformance,
		StageAppDetails,
		StageSystemInfo,
		StageLibraries,
		StageGPU,
		StageRunDetails,
	}
}

var (
	// ErrUnknownStage is returned for a stage identifier that does not name
	// a stage processor.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrMalformedBatch is returned when an import payload is not a list of
	// records. Nothing is committed.
	ErrMalformedBatch = errors.New("import payload is not a list of records")

	// ErrInvalidMapping is returned when the app-name mapping carries an
	// empty canonical name.
	ErrInvalidMapping = errors.New("all canonical app names must be non-empty")
)

// Pipeline wires the stage processors and classification passes to a store.
// All operations are synchronous and safe for concurrent use: each stage
// serializes its own scan-then-insert sequence; the classification passes
// recompute deterministically and tolerate overlapping runs.
type Pipeline struct {
	log   logrus.FieldLogger
	store store.Store

	// stageMu serializes concurrent invocations of the same stage so two
	// overlapping scans cannot both insert rows for the same run.
	stageMu map[Stage]*sync.Mutex
}

// New creates a Pipeline on top of the given store.
func New(log logrus.FieldLogger, st store.Store) *Pipeline {
	mu := make(map[Stage]*sync.Mutex, len(Stages()))
	for _, stage := range Stages() {
		mu[stage] = &sync.Mutex{}
	}

	return &Pipeline{
		log:     log.WithField("component", "pipeline"),
		store:   st,
		stageMu: mu,
	}
}
