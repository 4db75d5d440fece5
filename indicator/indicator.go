// Package indicator implements the technical indicators used by the signal
// cascade. All functions return a slice aligned with the input; positions
// where the indicator is not yet defined hold NaN.
package indicator

import (
	"math"
)

// EMA returns the exponential moving average with smoothing 2/(period+1).
// The first output equals the first input; every later value is the
// recursive blend of the current input and the previous output.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	alpha := 2.0 / (float64(period) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}

	return out
}

// SMA returns the simple moving average over a sliding window. Positions
// before a full window, or whose window contains NaN, hold NaN.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 {
		return out
	}

	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if ok {
			out[i] = sum / float64(period)
		}
	}

	return out
}

// RSI returns the relative strength index computed from exponentially
// smoothed average gains and losses. The first position holds NaN, and so
// does any position where the smoothed loss is zero.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(closes) < 2 {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	// the gain and loss series carry a leading zero at index 0, so the
	// smoothing recursion seeds at zero rather than at the first delta
	avgGain := EMA(gains, period)
	avgLoss := EMA(losses, period)

	for i := 1; i < len(closes); i++ {
		loss := avgLoss[i]
		if loss == 0 {
			continue
		}
		rs := avgGain[i] / loss
		out[i] = 100 - 100/(1+rs)
	}

	return out
}

// Stoch returns the slowed stochastic oscillator %K and %D lines. The raw
// %K is the position of the close within the kPeriod high/low range; it is
// smoothed by an SMA of length slowing, and %D is an SMA of %K of length
// dPeriod. Flat ranges and warmup positions hold NaN.
func Stoch(highs, lows, closes []float64, kPeriod, dPeriod, slowing int) (k, d []float64) {
	raw := make([]float64, len(closes))
	for i := range raw {
		raw[i] = math.NaN()
	}

	for i := kPeriod - 1; i < len(closes); i++ {
		hi := highs[i]
		lo := lows[i]
		for j := i - kPeriod + 1; j < i; j++ {
			hi = math.Max(hi, highs[j])
			lo = math.Min(lo, lows[j])
		}
		if hi == lo {
			continue
		}
		raw[i] = 100 * (closes[i] - lo) / (hi - lo)
	}

	k = SMA(raw, slowing)
	d = SMA(k, dPeriod)
	return k, d
}

// ATR returns the average true range smoothed with the same exponential
// recurrence as EMA. The first true range is the first bar's high-low span.
func ATR(highs, lows, closes []float64, period int) []float64 {
	if len(closes) == 0 {
		return nil
	}

	tr := make([]float64, len(closes))
	tr[0] = highs[0] - lows[0]
	for i := 1; i < len(closes); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	return EMA(tr, period)
}
