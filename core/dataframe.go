package core

import (
	"sort"
	"time"
)

// Dataframe is a time series container for OHLCV and derived indicator data.
// One Dataframe holds the full history of a single symbol and timeframe;
// indicator columns live in Metadata keyed by column name.
type Dataframe struct {
	Symbol    string
	Timeframe string

	Open   Series[float64]
	High   Series[float64]
	Low    Series[float64]
	Close  Series[float64]
	Volume Series[float64]

	Time []time.Time

	// Derived indicator columns, aligned index-by-index with the bar series
	Metadata map[string]Series[float64]
}

// NewDataframe builds a dataframe from a time-ordered candle slice
func NewDataframe(symbol, timeframe string, candles []Candle) *Dataframe {
	df := &Dataframe{
		Symbol:    symbol,
		Timeframe: timeframe,
		Open:      make(Series[float64], 0, len(candles)),
		High:      make(Series[float64], 0, len(candles)),
		Low:       make(Series[float64], 0, len(candles)),
		Close:     make(Series[float64], 0, len(candles)),
		Volume:    make(Series[float64], 0, len(candles)),
		Time:      make([]time.Time, 0, len(candles)),
		Metadata:  make(map[string]Series[float64]),
	}

	for _, candle := range candles {
		df.Open = append(df.Open, candle.Open)
		df.High = append(df.High, candle.High)
		df.Low = append(df.Low, candle.Low)
		df.Close = append(df.Close, candle.Close)
		df.Volume = append(df.Volume, candle.Volume)
		df.Time = append(df.Time, candle.Time)
	}

	return df
}

// Length returns the number of bars in the dataframe
func (df *Dataframe) Length() int {
	return len(df.Time)
}

// LastIndexAt returns the index of the latest bar with time <= t.
// Returns -1 when no bar is at or before t. Different timeframes advance
// at different rates, so callers align on this rather than on raw indexes.
func (df *Dataframe) LastIndexAt(t time.Time) int {
	n := len(df.Time)
	idx := sort.Search(n, func(i int) bool {
		return df.Time[i].After(t)
	})
	return idx - 1
}

// Candle reassembles the bar at index i
func (df *Dataframe) Candle(i int) Candle {
	return Candle{
		Symbol: df.Symbol,
		Time:   df.Time[i],
		Open:   df.Open[i],
		High:   df.High[i],
		Low:    df.Low[i],
		Close:  df.Close[i],
		Volume: df.Volume[i],
	}
}

// Slice returns a view of the dataframe restricted to [from, to] inclusive
// by time. Metadata columns are sliced with the bars.
func (df *Dataframe) Slice(from, to time.Time) *Dataframe {
	n := len(df.Time)
	start := sort.Search(n, func(i int) bool { return !df.Time[i].Before(from) })
	end := sort.Search(n, func(i int) bool { return df.Time[i].After(to) })

	out := &Dataframe{
		Symbol:    df.Symbol,
		Timeframe: df.Timeframe,
		Open:      df.Open[start:end],
		High:      df.High[start:end],
		Low:       df.Low[start:end],
		Close:     df.Close[start:end],
		Volume:    df.Volume[start:end],
		Time:      df.Time[start:end],
		Metadata:  make(map[string]Series[float64]),
	}

	for key := range df.Metadata {
		out.Metadata[key] = df.Metadata[key][start:end]
	}

	return out
}
