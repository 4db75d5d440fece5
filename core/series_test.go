package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeriesAccessors(t *testing.T) {
	s := Series[float64]{1, 2, 3, 4}

	assert.Equal(t, 4, s.Length())
	assert.Equal(t, 4.0, s.Last(0))
	assert.Equal(t, 3.0, s.Last(1))
	assert.Equal(t, []float64{1, 2, 3, 4}, s.Values())
	assert.Equal(t, Series[float64]{3, 4}, s.LastValues(2))
}

func TestSeriesCrossover(t *testing.T) {
	fast := Series[float64]{1, 3}
	slow := Series[float64]{2, 2}

	assert.True(t, fast.Crossover(slow))
	assert.False(t, slow.Crossover(fast))
	assert.True(t, slow.Crossunder(fast))
	assert.True(t, fast.Cross(slow))

	t.Run("no cross when already above", func(t *testing.T) {
		above := Series[float64]{3, 4}
		below := Series[float64]{1, 2}
		assert.False(t, above.Crossover(below))
		assert.False(t, above.Cross(below))
	})
}

func TestDataframeAlignment(t *testing.T) {
	df := NewDataframe("EURUSD", "5m", []Candle{
		{Symbol: "EURUSD", Time: ts(9, 0), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Symbol: "EURUSD", Time: ts(9, 5), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 20},
		{Symbol: "EURUSD", Time: ts(9, 10), Open: 2, High: 3, Low: 1.5, Close: 2.5, Volume: 30},
	})

	assert.Equal(t, 3, df.Length())

	t.Run("last index at or before an instant", func(t *testing.T) {
		assert.Equal(t, -1, df.LastIndexAt(ts(8, 59)))
		assert.Equal(t, 0, df.LastIndexAt(ts(9, 0)))
		assert.Equal(t, 0, df.LastIndexAt(ts(9, 4)))
		assert.Equal(t, 1, df.LastIndexAt(ts(9, 5)))
		assert.Equal(t, 2, df.LastIndexAt(ts(23, 0)))
	})

	t.Run("candle round trip", func(t *testing.T) {
		c := df.Candle(1)
		assert.Equal(t, ts(9, 5), c.Time)
		assert.Equal(t, 2.0, c.Close)
		assert.Equal(t, "EURUSD", c.Symbol)
	})

	t.Run("slice by time keeps metadata aligned", func(t *testing.T) {
		df.Metadata["x"] = Series[float64]{10, 20, 30}
		sub := df.Slice(ts(9, 5), ts(9, 10))
		assert.Equal(t, 2, sub.Length())
		assert.Equal(t, Series[float64]{20, 30}, sub.Metadata["x"])
	})
}
