// Package signal implements the three timeframe entry cascade: trend on
// 15m, confirmation on 5m and trigger on 1m.
package signal

import (
	"math"
	"time"

	"github.com/quantfx/pipstride/config"
	"github.com/quantfx/pipstride/core"
	"github.com/quantfx/pipstride/indicator"
)

// Engine evaluates the cascade over precomputed indicator columns
type Engine struct {
	cfg config.IndicatorConfig
}

// NewEngine creates a cascade engine with the given indicator settings
func NewEngine(cfg config.IndicatorConfig) *Engine {
	return &Engine{cfg: cfg}
}

// snapshot carries the indicator values aligned to one evaluation instant.
// It is only built when every required value is defined, so the decision
// logic below never has to compare NaN.
type snapshot struct {
	m15EMAFast float64
	m15EMASlow float64
	m5EMAFast  float64
	m5EMASlow  float64
	m5RSI      float64
	m5VWAP     float64
	m5Close    float64
	m1StochK   float64
	m1StochD   float64
	m1PrevK    float64
	m1PrevD    float64
	m1ATR      float64
	m1Close    float64

	stochCrossUp   bool
	stochCrossDown bool
}

// ComputeIndicators attaches the indicator columns each timeframe needs.
// It must be called once per dataframe before GetSignal.
func (e *Engine) ComputeIndicators(m1, m5, m15 *core.Dataframe) {
	cfg := e.cfg

	m15.Metadata["ema_fast"] = indicator.EMA(m15.Close.Values(), cfg.EMAFast)
	m15.Metadata["ema_slow"] = indicator.EMA(m15.Close.Values(), cfg.EMASlow)

	m5.Metadata["ema_fast"] = indicator.EMA(m5.Close.Values(), cfg.EMAFast)
	m5.Metadata["ema_slow"] = indicator.EMA(m5.Close.Values(), cfg.EMASlow)
	m5.Metadata["rsi"] = indicator.RSI(m5.Close.Values(), cfg.RSIPeriod)
	m5.Metadata["vwap"] = indicator.VWAP(
		m5.High.Values(), m5.Low.Values(), m5.Close.Values(), m5.Volume.Values(), m5.Time)

	k, d := indicator.Stoch(
		m1.High.Values(), m1.Low.Values(), m1.Close.Values(),
		cfg.StochK, cfg.StochD, cfg.StochSlowing)
	m1.Metadata["stoch_k"] = k
	m1.Metadata["stoch_d"] = d
	m1.Metadata["atr"] = indicator.ATR(
		m1.High.Values(), m1.Low.Values(), m1.Close.Values(), cfg.ATRPeriod)
}

// GetSignal evaluates the cascade at instant t. It returns NONE whenever
// any stage disagrees or any required indicator value is still undefined.
func (e *Engine) GetSignal(t time.Time, m1, m5, m15 *core.Dataframe) (core.SignalType, core.SignalDetails) {
	snap, ok := e.snapshotAt(t, m1, m5, m15)
	if !ok {
		return core.SignalNone, core.SignalDetails{}
	}

	details := core.SignalDetails{
		Price:      snap.m1Close,
		ATR:        snap.m1ATR,
		M15EMAFast: snap.m15EMAFast,
		M15EMASlow: snap.m15EMASlow,
		M5RSI:      snap.m5RSI,
		M5VWAP:     snap.m5VWAP,
		M1StochK:   snap.m1StochK,
		M1StochD:   snap.m1StochD,
	}

	if snap.m1ATR < e.cfg.MinATR {
		return core.SignalNone, details
	}

	trend := e.trend(snap)
	details.Trend = trend
	if trend == core.TrendNeutral {
		return core.SignalNone, details
	}

	signal := core.SignalBuy
	if trend == core.TrendBearish {
		signal = core.SignalSell
	}

	details.Confirmation = core.SignalNone
	details.Entry = core.SignalNone
	if !e.confirmation(snap, trend) {
		return core.SignalNone, details
	}
	details.Confirmation = signal

	if !e.trigger(snap, trend) {
		return core.SignalNone, details
	}
	details.Entry = signal

	return signal, details
}

// trend reads direction from the 15m EMA pair. Equal EMAs give no trend.
func (e *Engine) trend(s snapshot) core.Trend {
	switch {
	case s.m15EMAFast > s.m15EMASlow:
		return core.TrendBullish
	case s.m15EMAFast < s.m15EMASlow:
		return core.TrendBearish
	default:
		return core.TrendNeutral
	}
}

// confirmation checks momentum alignment on the 5m timeframe: EMA order,
// price side of VWAP and RSI inside the directional band
func (e *Engine) confirmation(s snapshot, trend core.Trend) bool {
	if trend == core.TrendBullish {
		return s.m5EMAFast > s.m5EMASlow &&
			s.m5Close > s.m5VWAP &&
			s.m5RSI >= e.cfg.RSIBuyMin && s.m5RSI <= e.cfg.RSIBuyMax
	}
	return s.m5EMAFast < s.m5EMASlow &&
		s.m5Close < s.m5VWAP &&
		s.m5RSI >= e.cfg.RSISellMin && s.m5RSI <= e.cfg.RSISellMax
}

// trigger fires on a 1m stochastic cross out of the extreme zone. The
// zone thresholds are inclusive: a cross starting exactly at the oversold
// or overbought level still counts.
func (e *Engine) trigger(s snapshot, trend core.Trend) bool {
	if trend == core.TrendBullish {
		return s.stochCrossUp && s.m1PrevK <= e.cfg.StochOversold
	}
	return s.stochCrossDown && s.m1PrevK >= e.cfg.StochOverbought
}

// snapshotAt aligns all three timeframes to the latest bar at or before t
// and extracts the indicator values. ok is false when any timeframe has no
// bar yet, the 1m series has no previous bar, or any value is NaN.
func (e *Engine) snapshotAt(t time.Time, m1, m5, m15 *core.Dataframe) (snapshot, bool) {
	i1 := m1.LastIndexAt(t)
	i5 := m5.LastIndexAt(t)
	i15 := m15.LastIndexAt(t)
	if i1 < 1 || i5 < 0 || i15 < 0 {
		return snapshot{}, false
	}

	s := snapshot{
		m15EMAFast: m15.Metadata["ema_fast"][i15],
		m15EMASlow: m15.Metadata["ema_slow"][i15],
		m5EMAFast:  m5.Metadata["ema_fast"][i5],
		m5EMASlow:  m5.Metadata["ema_slow"][i5],
		m5RSI:      m5.Metadata["rsi"][i5],
		m5VWAP:     m5.Metadata["vwap"][i5],
		m5Close:    m5.Close[i5],
		m1StochK:   m1.Metadata["stoch_k"][i1],
		m1StochD:   m1.Metadata["stoch_d"][i1],
		m1PrevK:    m1.Metadata["stoch_k"][i1-1],
		m1PrevD:    m1.Metadata["stoch_d"][i1-1],
		m1ATR:      m1.Metadata["atr"][i1],
		m1Close:    m1.Close[i1],
	}

	for _, v := range []float64{
		s.m15EMAFast, s.m15EMASlow, s.m5EMAFast, s.m5EMASlow, s.m5RSI,
		s.m5VWAP, s.m5Close, s.m1StochK, s.m1StochD, s.m1PrevK, s.m1PrevD,
		s.m1ATR, s.m1Close,
	} {
		if math.IsNaN(v) {
			return snapshot{}, false
		}
	}

	k := m1.Metadata["stoch_k"][:i1+1]
	d := m1.Metadata["stoch_d"][:i1+1]
	s.stochCrossUp = k.Crossover(d)
	s.stochCrossDown = d.Crossover(k)

	return s, true
}
