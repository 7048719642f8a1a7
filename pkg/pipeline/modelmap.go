package pipeline

import (
	"context"
	"fmt"
)

// ModelMapResult reports one model mapper pass.
type ModelMapResult struct {
	Updated  int `json:"updated_count"`
	NotFound int `json:"not_found_count"`
}

// MapModels links run-details rows to the model dictionary by exact model
// name. Only rows without a link are scanned, so the pass is idempotent by
// skip and a link, once set, is never revisited. A missing dictionary entry
// is a counted outcome, not an error.
func (p *Pipeline) MapModels(ctx context.Context) (*ModelMapResult, error) {
	unmapped, err := p.store.ListRunDetailsUnmapped(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing unmapped run details: %w", err)
	}

	result := &ModelMapResult{}

	if len(unmapped) == 0 {
		return result, nil
	}

	entries, err := p.store.ListModelMaps(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing model maps: %w", err)
	}

	byName := make(map[string]uint, len(entries))
	for _, entry := range entries {
		byName[entry.ModelName] = entry.ID
	}

	for _, details := range unmapped {
		if details.ModelName == nil {
			result.NotFound++

			continue
		}

		mapID, ok := byName[*details.ModelName]
		if !ok {
			result.NotFound++

			continue
		}

		if err := p.store.SetRunDetailsModelMap(
			ctx, details.ID, mapID,
		); err != nil {
			return nil, fmt.Errorf("linking run details %d: %w", details.ID, err)
		}

		result.Updated++
	}

	p.log.WithField("updated", result.Updated).
		WithField("not_found", result.NotFound).
		Info("Mapped model names")

	return result, nil
}
