package rag

import (
	"math"

	"github.com/ModaAI/moda-mvp/engine/domain"
)

// calibrate maps a raw store scalar onto a similarity percentage.
//
// Distance metric (cosine distance in [0,2]): similarity = (1-d)*100.
// Score metric (cosine similarity in [-1,1]): similarity = (s+1)*50.
//
// The result is rounded to two decimals and clamped to [0,100]. The clamp
// is a correctness invariant: a degenerate raw value must never escape the
// bound. The raw value itself is kept unmodified on the record.
func calibrate(raw float64, metric domain.Metric) float64 {
	var pct float64
	switch metric {
	case domain.MetricCosineScore:
		pct = (raw + 1) * 50
	default:
		pct = (1 - raw) * 100
	}
	pct = math.Round(pct*100) / 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
