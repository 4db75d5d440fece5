package core

// SideType represents the direction of a trade (BUY or SELL)
type SideType string

// Trade side constants
const (
	SideTypeBuy  SideType = "BUY"
	SideTypeSell SideType = "SELL"
)

// SignalType is the outcome of a signal evaluation
type SignalType string

// Signal constants; indeterminate evaluations always resolve to SignalNone
const (
	SignalNone SignalType = "NONE"
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
)

// Side converts a non-NONE signal into a trade side
func (s SignalType) Side() SideType {
	if s == SignalSell {
		return SideTypeSell
	}
	return SideTypeBuy
}

// Trend labels the higher-timeframe market direction
type Trend string

// Trend constants; a neutral trend suppresses all entries
const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendNeutral Trend = "NEUTRAL"
)

// SignalDetails carries the indicator values observed at decision time.
// It is produced once per evaluation and never persisted as state.
type SignalDetails struct {
	Trend        Trend
	Confirmation SignalType
	Entry        SignalType
	Price        float64
	ATR          float64
	M15EMAFast   float64
	M15EMASlow   float64
	M5RSI        float64
	M5VWAP       float64
	M1StochK     float64
	M1StochD     float64
}
