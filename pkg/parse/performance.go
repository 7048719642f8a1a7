package parse

import (
	"math"
	"strconv"
	"strings"
)

// Performance holds the throughput samples extracted from a submission's
// iteration-rate field.
type Performance struct {
	// Samples contains the valid numeric samples in input order.
	Samples []float64
	// Average is the mean of Samples, or nil when no valid sample remains.
	// An all-NaN input records an absent average, not zero.
	Average *float64
}

// ParsePerformance parses a "/"-delimited list of numeric samples. The
// literal "NaN" marks a missing sample and is skipped, as is any token that
// does not parse as a number.
func ParsePerformance(raw string) Performance {
	var out Performance

	for _, token := range strings.Split(raw, "/") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		value, err := strconv.ParseFloat(token, 64)
		if err != nil || math.IsNaN(value) {
			continue
		}

		out.Samples = append(out.Samples, value)
	}

	if len(out.Samples) > 0 {
		sum := 0.0
		for _, v := range out.Samples {
			sum += v
		}

		avg := sum / float64(len(out.Samples))
		out.Average = &avg
	}

	return out
}
