package metric

import (
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Interval is a bootstrap confidence interval of a measure
type Interval struct {
	Lower  float64
	Upper  float64
	Mean   float64
	StdDev float64
}

// Bootstrap estimates the confidence interval of a measure by resampling
// the profits with replacement. confidence is the two-sided level, e.g.
// 0.95 for a 95% interval.
func Bootstrap(profits []float64, measure Measure, samples int, confidence float64) Interval {
	if len(profits) == 0 || samples <= 0 {
		return Interval{}
	}

	data := make([]float64, 0, samples)
	resample := make([]float64, len(profits))
	for i := 0; i < samples; i++ {
		for j := range resample {
			resample[j] = lo.Sample(profits)
		}
		data = append(data, measure(resample))
	}

	sort.Float64s(data)
	mean, stdDev := stat.MeanStdDev(data, nil)

	tail := 1 - confidence
	return Interval{
		Lower:  stat.Quantile(tail/2, stat.LinInterp, data, nil),
		Upper:  stat.Quantile(1-tail/2, stat.LinInterp, data, nil),
		Mean:   mean,
		StdDev: stdDev,
	}
}
