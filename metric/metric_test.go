package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Zero(t, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-12)
}

func TestWinRate(t *testing.T) {
	assert.Zero(t, WinRate(nil))
	assert.InDelta(t, 0.75, WinRate([]float64{10, 5, 0, -3}), 1e-12)
}

func TestPayoff(t *testing.T) {
	assert.InDelta(t, 2.0, Payoff([]float64{20, 20, -10}), 1e-12)
	assert.Equal(t, 10.0, Payoff([]float64{5, 10}), "no losses caps the ratio")
}

func TestProfitFactor(t *testing.T) {
	assert.InDelta(t, 3.0, ProfitFactor([]float64{20, 10, -10}), 1e-12)
	assert.Equal(t, 10.0, ProfitFactor([]float64{5}), "no losses caps the ratio")
}

func TestBootstrap(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, Interval{}, Bootstrap(nil, Mean, 100, 0.95))
	})

	t.Run("constant input collapses the interval", func(t *testing.T) {
		interval := Bootstrap([]float64{5, 5, 5, 5}, Mean, 200, 0.95)
		assert.InDelta(t, 5.0, interval.Mean, 1e-12)
		assert.InDelta(t, 5.0, interval.Lower, 1e-12)
		assert.InDelta(t, 5.0, interval.Upper, 1e-12)
		assert.Zero(t, interval.StdDev)
	})

	t.Run("interval brackets the sample mean", func(t *testing.T) {
		profits := []float64{10, -5, 8, -3, 12, -6, 7, -2}
		interval := Bootstrap(profits, Mean, 2000, 0.95)
		assert.LessOrEqual(t, interval.Lower, interval.Upper)
		assert.Greater(t, interval.Upper, Mean(profits)-10)
		assert.Less(t, interval.Lower, Mean(profits)+10)
	})
}
