package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/diffbench/ingestoor/pkg/store"
)

// RawRun is one submission record as uploaded by a client installation. All
// fields are free text; parsing happens later, at the stage processors.
type RawRun struct {
	Timestamp  string `json:"timestamp"`
	VRAMUsage  string `json:"vram_usage"`
	Info       string `json:"info"`
	SystemInfo string `json:"system_info"`
	ModelInfo  string `json:"model_info"`
	DeviceInfo string `json:"device_info"`
	Xformers   string `json:"xformers"`
	ModelName  string `json:"model_name"`
	User       string `json:"user"`
	Notes      string `json:"notes"`
}

// ImportResult reports one import call.
type ImportResult struct {
	Imported int      `json:"imported_count"`
	Rejected int      `json:"rejected_count"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportRuns decodes a JSON array of submission records and appends them to
// the raw run store in one transaction. A payload that is not a list fails
// wholesale with ErrMalformedBatch and commits nothing. Elements that are not
// records are rejected and counted; malformed text inside a well-formed
// record is stored as-is.
func (p *Pipeline) ImportRuns(ctx context.Context, payload []byte) (*ImportResult, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(payload, &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}

	result := &ImportResult{}
	runs := make([]*store.Run, 0, len(elements))

	for i, element := range elements {
		var record RawRun
		if err := json.Unmarshal(element, &record); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors,
				fmt.Sprintf("record %d: %v", i+1, err))

			continue
		}

		runs = append(runs, recordToRun(record))
	}

	if err := p.store.CreateRuns(ctx, runs); err != nil {
		return nil, fmt.Errorf("importing runs: %w", err)
	}

	result.Imported = len(runs)

	p.log.WithField("imported", result.Imported).
		WithField("rejected", result.Rejected).
		Info("Imported raw runs")

	return result, nil
}

// recordToRun maps a raw record onto the run model. Empty fields are stored
// as NULL so downstream null-ness analysis sees absent data, not "".
func recordToRun(r RawRun) *store.Run {
	return &store.Run{
		Timestamp:  optional(r.Timestamp),
		VRAMUsage:  optional(r.VRAMUsage),
		Info:       optional(r.Info),
		SystemInfo: optional(r.SystemInfo),
		ModelInfo:  optional(r.ModelInfo),
		DeviceInfo: optional(r.DeviceInfo),
		Xformers:   optional(r.Xformers),
		ModelName:  optional(r.ModelName),
		User:       optional(r.User),
		Notes:      optional(r.Notes),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
