package indicator

import (
	"math"
	"time"
)

// VWAP returns the session volume weighted average price. The running sums
// of price*volume and volume reset whenever the UTC calendar date of the
// bar changes, in a single forward pass.
//
// When the input carries no volume at all, the typical price SMA(20) is
// returned instead so the level stays usable as a price filter.
func VWAP(highs, lows, closes, volumes []float64, times []time.Time) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}

	total := 0.0
	for _, v := range volumes {
		total += v
	}
	typical := make([]float64, len(closes))
	for i := range closes {
		typical[i] = (highs[i] + lows[i] + closes[i]) / 3
	}
	if total == 0 {
		return SMA(typical, 20)
	}

	var (
		cumPV  float64
		cumVol float64
		curDay int
	)
	for i := range closes {
		y, m, d := times[i].UTC().Date()
		day := y*10000 + int(m)*100 + d
		if i == 0 || day != curDay {
			cumPV, cumVol = 0, 0
			curDay = day
		}
		cumPV += typical[i] * volumes[i]
		cumVol += volumes[i]
		if cumVol == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = cumPV / cumVol
	}

	return out
}
