package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/diffbench/ingestoor/pkg/store"
)

// brandKeywords maps device-description substrings to brands. Groups are
// checked in order and the first match wins, so NVIDIA terms shadow the
// bare "rx " and "uhd" patterns of later groups.
var brandKeywords = []struct {
	brand    store.Brand
	keywords []string
}{
	{store.BrandNvidia, []string{"nvidia", "geforce", "rtx", "gtx"}},
	{store.BrandAMD, []string{"amd", "radeon", "rx "}},
	{store.BrandIntel, []string{"intel", "uhd", "iris"}},
}

// laptopKeywords marks mobile-part device descriptions.
var laptopKeywords = []string{"laptop", "mobile"}

// ClassifyResult reports one classifier pass over the GPU table.
type ClassifyResult struct {
	Nvidia  int64 `json:"nvidia_count"`
	AMD     int64 `json:"amd_count"`
	Intel   int64 `json:"intel_count"`
	Unknown int64 `json:"unknown_count"`
	Laptop  int64 `json:"laptop_count"`
	Desktop int64 `json:"desktop_count"`
}

// ClassifyGPUs assigns a brand and a laptop flag to every GPU row from its
// device description. Every row is overwritten unconditionally: the pass is
// idempotent by recomputation, not by skip, and no row is ever left without
// a brand.
func (p *Pipeline) ClassifyGPUs(ctx context.Context) (*ClassifyResult, error) {
	gpus, err := p.store.ListGPUs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing gpus: %w", err)
	}

	result := &ClassifyResult{}

	for _, gpu := range gpus {
		device := deref(gpu.Device)
		brand := classifyBrand(device)
		laptop := isLaptopDevice(device)

		if err := p.store.UpdateGPUClassification(
			ctx, gpu.ID, brand, laptop,
		); err != nil {
			return nil, fmt.Errorf("classifying gpu %d: %w", gpu.ID, err)
		}

		switch brand {
		case store.BrandNvidia:
			result.Nvidia++
		case store.BrandAMD:
			result.AMD++
		case store.BrandIntel:
			result.Intel++
		case store.BrandUnknown:
			result.Unknown++
		}

		if laptop {
			result.Laptop++
		} else {
			result.Desktop++
		}
	}

	p.log.WithField("nvidia", result.Nvidia).
		WithField("amd", result.AMD).
		WithField("intel", result.Intel).
		WithField("unknown", result.Unknown).
		Info("Classified GPUs")

	return result, nil
}

// classifyBrand matches the device description against the ordered keyword
// groups, case-insensitively.
func classifyBrand(device string) store.Brand {
	lower := strings.ToLower(device)

	for _, group := range brandKeywords {
		for _, keyword := range group.keywords {
			if strings.Contains(lower, keyword) {
				return group.brand
			}
		}
	}

	return store.BrandUnknown
}

// isLaptopDevice reports whether the device description names a mobile part.
func isLaptopDevice(device string) bool {
	lower := strings.ToLower(device)

	for _, keyword := range laptopKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}

	return false
}
