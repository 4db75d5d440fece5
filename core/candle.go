package core

import (
	"fmt"
	"strconv"
	"time"
)

// Candle represents a single OHLCV bar for a symbol and timeframe
type Candle struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// GetSymbol returns the symbol the candle belongs to
func (c Candle) GetSymbol() string { return c.Symbol }

// GetTime returns the open timestamp of the candle
func (c Candle) GetTime() time.Time { return c.Time }

// GetOpen returns the opening price of the candle
func (c Candle) GetOpen() float64 { return c.Open }

// GetHigh returns the highest price during the candle period
func (c Candle) GetHigh() float64 { return c.High }

// GetLow returns the lowest price during the candle period
func (c Candle) GetLow() float64 { return c.Low }

// GetClose returns the closing price of the candle
func (c Candle) GetClose() float64 { return c.Close }

// GetVolume returns the traded volume during the candle period
func (c Candle) GetVolume() float64 { return c.Volume }

// IsEmpty checks if the candle contains no significant data
func (c Candle) IsEmpty() bool { return c.Symbol == "" && c.Close == 0 && c.Open == 0 }

// TypicalPrice returns the (high+low+close)/3 price used by VWAP
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// ToSlice converts a candle to a string slice for CSV serialization
// with the specified decimal precision
func (c Candle) ToSlice(precision int) []string {
	return []string{
		fmt.Sprintf("%d", c.Time.Unix()),
		strconv.FormatFloat(c.Open, 'f', precision, 64),
		strconv.FormatFloat(c.High, 'f', precision, 64),
		strconv.FormatFloat(c.Low, 'f', precision, 64),
		strconv.FormatFloat(c.Close, 'f', precision, 64),
		strconv.FormatFloat(c.Volume, 'f', precision, 64),
	}
}
