package pipeline

import (
	"context"
	"fmt"
)

// AppNameMapping assigns a canonical application name to each of the four
// fixed identity categories.
type AppNameMapping struct {
	Automatic1111      string `json:"automatic1111"`
	Vladmandic         string `json:"vladmandic"`
	StableDiffusion    string `json:"stable_diffusion"`
	NullAppNameNullURL string `json:"null_app_name_null_url"`
}

// NormalizeResult reports how many app-detail rows each category rewrote.
type NormalizeResult struct {
	Automatic1111      int64 `json:"automatic1111"`
	Vladmandic         int64 `json:"vladmandic"`
	StableDiffusion    int64 `json:"stable_diffusion"`
	NullAppNameNullURL int64 `json:"null_app_name_null_url"`
}

// NormalizeAppNames rewrites free-form application names onto the supplied
// canonical names. Rows matching no category are left untouched. The category
// rules run in a fixed order; each row matches at most one because the later
// rules require a still-null app name.
func (p *Pipeline) NormalizeAppNames(
	ctx context.Context, mapping AppNameMapping,
) (*NormalizeResult, error) {
	if mapping.Automatic1111 == "" || mapping.Vladmandic == "" ||
		mapping.StableDiffusion == "" || mapping.NullAppNameNullURL == "" {
		return nil, ErrInvalidMapping
	}

	result := &NormalizeResult{}

	var err error

	if result.Automatic1111, err = p.store.UpdateAutomatic1111Names(
		ctx, mapping.Automatic1111,
	); err != nil {
		return nil, fmt.Errorf("normalizing automatic1111 names: %w", err)
	}

	if result.Vladmandic, err = p.store.UpdateVladmandicNames(
		ctx, mapping.Vladmandic,
	); err != nil {
		return nil, fmt.Errorf("normalizing vladmandic names: %w", err)
	}

	if result.StableDiffusion, err = p.store.UpdateStableDiffusionNames(
		ctx, mapping.StableDiffusion,
	); err != nil {
		return nil, fmt.Errorf("normalizing stable-diffusion names: %w", err)
	}

	if result.NullAppNameNullURL, err = p.store.UpdateNullAppNameNullURLNames(
		ctx, mapping.NullAppNameNullURL,
	); err != nil {
		return nil, fmt.Errorf("normalizing null-identity names: %w", err)
	}

	p.log.WithField("automatic1111", result.Automatic1111).
		WithField("vladmandic", result.Vladmandic).
		WithField("stable_diffusion", result.StableDiffusion).
		WithField("null_identity", result.NullAppNameNullURL).
		Info("Normalized app names")

	return result, nil
}
