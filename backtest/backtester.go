package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/quantfx/pipstride/config"
	"github.com/quantfx/pipstride/core"
	"github.com/quantfx/pipstride/logger"
	"github.com/quantfx/pipstride/signal"
)

// Trade event actions reported to notifiers and the bridge
const (
	ActionOpen         = "OPEN"
	ActionClose        = "CLOSE"
	ActionPartialClose = "PARTIAL_CLOSE"
)

const minLot = 0.01

// Result bundles everything a finished run produced
type Result struct {
	Statistics Statistics
	Trades     []*Trade
	Equity     []core.EquityPoint
}

// Backtester drives the simulation bar by bar over the 1m series, with the
// 5m and 15m series aligned by time for the signal cascade.
type Backtester struct {
	cfg       config.Config
	symbol    string
	feed      core.Feeder
	engine    *signal.Engine
	portfolio *Portfolio
	log       logger.Logger

	storage  core.TradeStorage
	notifier core.Notifier
	progress bool

	nextTicket int64
	halted     bool
}

// Option configures a Backtester
type Option func(*Backtester)

// WithStorage persists trades and equity samples to the given sink
func WithStorage(storage core.TradeStorage) Option {
	return func(b *Backtester) { b.storage = storage }
}

// WithNotifier forwards signal and trade events to the given notifier
func WithNotifier(notifier core.Notifier) Option {
	return func(b *Backtester) { b.notifier = notifier }
}

// WithProgress renders a terminal progress bar during the run
func WithProgress() Option {
	return func(b *Backtester) { b.progress = true }
}

// NewBacktester creates a simulation for one symbol
func NewBacktester(cfg config.Config, symbol string, feed core.Feeder, log logger.Logger, options ...Option) *Backtester {
	b := &Backtester{
		cfg:        cfg,
		symbol:     symbol,
		feed:       feed,
		engine:     signal.NewEngine(cfg.Indicator),
		portfolio:  NewPortfolio(cfg.Trading.InitialBalance),
		log:        log,
		nextTicket: 1,
	}

	for _, option := range options {
		option(b)
	}

	return b
}

// Portfolio exposes the ledger, mainly for inspection after Run
func (b *Backtester) Portfolio() *Portfolio { return b.portfolio }

// Run executes the simulation over the full candle history and returns the
// result summary. The context is checked between bars; cancelation stops
// the run after closing every open position.
func (b *Backtester) Run(ctx context.Context) (*Result, error) {
	m1, m5, m15, err := b.loadDataframes(ctx)
	if err != nil {
		return nil, err
	}

	b.engine.ComputeIndicators(m1, m5, m15)

	b.log.WithFields(map[string]any{
		"symbol":  b.symbol,
		"bars":    m1.Length(),
		"from":    m1.Time[0].Format(time.DateOnly),
		"to":      m1.Time[m1.Length()-1].Format(time.DateOnly),
		"balance": b.portfolio.Balance(),
	}).Info("Starting backtest")

	var bar *progressbar.ProgressBar
	if b.progress {
		bar = progressbar.Default(int64(m1.Length()), "backtesting")
	}

	var currentDay int
	for i := 0; i < m1.Length(); i++ {
		if bar != nil {
			_ = bar.Add(1)
		}
		if err := ctx.Err(); err != nil {
			b.closeEverything(m1, i)
			return nil, err
		}

		candle := m1.Candle(i)

		if day := dateKey(candle.Time); day != currentDay {
			currentDay = day
			b.portfolio.ResetDailyStats()
		}

		b.recordEquity(ctx, candle.Time, candle.Close)
		b.managePositions(candle)

		if !b.halted && b.portfolio.CheckGlobalDrawdown(b.cfg.Trading.MaxDrawdownPercent) {
			// open positions still run to their stop or target; only new
			// entries stop
			b.halted = true
			b.log.WithField("drawdown_pct", b.portfolio.MaxDrawdownPct()).
				Warn("Maximum drawdown reached, no new trades")
		}

		if b.halted || b.portfolio.HasOpenTrade() {
			continue
		}
		if !b.portfolio.CheckDailyLimits(b.cfg.Trading.MaxDailyTrades, b.cfg.Trading.MaxDailyLossPercent) {
			continue
		}
		if !b.inSession(candle.Time) {
			continue
		}

		sig, details := b.engine.GetSignal(candle.Time, m1, m5, m15)
		if sig == core.SignalNone {
			continue
		}

		b.openTrade(ctx, sig, details, candle)
	}

	if m1.Length() > 0 {
		last := m1.Candle(m1.Length() - 1)
		b.closeAllAt(last.Time, last.Close, ReasonEndOfData)
	}

	result := &Result{
		Statistics: ComputeStatistics(b.portfolio.ClosedTrades(), b.portfolio.EquityCurve(), b.portfolio.InitialBalance()),
		Trades:     b.portfolio.ClosedTrades(),
		Equity:     b.portfolio.EquityCurve(),
	}
	// the forced close settles after the last equity sample
	result.Statistics.FinalBalance = b.portfolio.Balance()

	b.log.WithFields(map[string]any{
		"trades":     result.Statistics.TotalTrades,
		"net_profit": fmt.Sprintf("%.2f", result.Statistics.NetProfit),
		"win_rate":   fmt.Sprintf("%.1f%%", result.Statistics.WinRate),
	}).Info("Backtest finished")

	return result, nil
}

func (b *Backtester) loadDataframes(ctx context.Context) (m1, m5, m15 *core.Dataframe, err error) {
	for _, tf := range []struct {
		name string
		dst  **core.Dataframe
	}{
		{"1m", &m1}, {"5m", &m5}, {"15m", &m15},
	} {
		candles, err := b.feed.Candles(ctx, b.symbol, tf.name)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load %s candles: %w", tf.name, err)
		}
		*tf.dst = core.NewDataframe(b.symbol, tf.name, candles)
	}
	return m1, m5, m15, nil
}

// managePositions applies the exit rules of every open trade against the
// current bar. The stop and the final target are checked before the
// partial target, and only one exit is acted upon per bar: a bar crossing
// both targets closes the full volume at the final one.
func (b *Backtester) managePositions(candle core.Candle) {
	for _, trade := range b.portfolio.OpenTrades() {
		switch {
		case trade.CheckStopLoss(candle):
			b.closeTrade(trade, candle.Time, trade.StopLoss, ReasonStopLoss)

		case trade.CheckTakeProfitFinal(candle):
			b.closeTrade(trade, candle.Time, trade.TakeProfitFinal, ReasonFinalTP)

		case trade.CheckTakeProfitPartial(candle):
			b.partialClose(trade, candle.Time)
			trade.MoveToBreakEven()
		}
	}
}

// partialClose realizes the configured fraction of the position at the
// first target
func (b *Backtester) partialClose(trade *Trade, at time.Time) {
	volume := roundLot(trade.Volume * b.cfg.PartialCloseFraction())
	if volume < minLot {
		volume = minLot
	}

	profit, err := b.portfolio.PartialCloseTrade(trade.Ticket, at, trade.TakeProfitPartial, volume, ReasonPartialTP)
	if err != nil {
		b.log.WithError(err).WithField("ticket", trade.Ticket).Error("Partial close failed")
		return
	}

	b.log.WithFields(map[string]any{
		"ticket": trade.Ticket,
		"volume": volume,
		"profit": fmt.Sprintf("%.2f", profit),
	}).Info("Partial take profit")

	b.afterTradeEvent(trade, ActionPartialClose, volume, trade.TakeProfitPartial, profit, ReasonPartialTP)
}

func (b *Backtester) closeTrade(trade *Trade, at time.Time, price float64, reason string) {
	volume := trade.OpenVolume()
	profit, err := b.portfolio.CloseTrade(trade.Ticket, at, price, reason)
	if err != nil {
		b.log.WithError(err).WithField("ticket", trade.Ticket).Error("Close failed")
		return
	}

	b.log.WithFields(map[string]any{
		"ticket": trade.Ticket,
		"reason": reason,
		"profit": fmt.Sprintf("%.2f", profit),
		"pips":   fmt.Sprintf("%.1f", trade.ProfitPips),
	}).Info("Trade closed")

	b.afterTradeEvent(trade, ActionClose, volume, price, profit, reason)
}

// openTrade sizes and opens a position from a signal. The ask side pays
// the spread, so BUY entries fill above the bar close.
func (b *Backtester) openTrade(ctx context.Context, sig core.SignalType, details core.SignalDetails, candle core.Candle) {
	side := sig.Side()
	pip := pipSize(b.symbol)

	entry := candle.Close
	if side == core.SideTypeBuy {
		entry += b.cfg.Trading.SpreadPips * pip
	}

	slPips := b.cfg.Trading.StopLossPips
	volume := b.lotSize(slPips)
	if volume == 0 {
		return
	}

	var stop, tp1, tp2 float64
	if side == core.SideTypeBuy {
		stop = entry - slPips*pip
		tp1 = entry + slPips*b.cfg.Trading.RRPartial*pip
		tp2 = entry + slPips*b.cfg.Trading.RRFinal*pip
	} else {
		stop = entry + slPips*pip
		tp1 = entry - slPips*b.cfg.Trading.RRPartial*pip
		tp2 = entry - slPips*b.cfg.Trading.RRFinal*pip
	}

	trade := NewTrade(b.nextTicket, b.symbol, side, candle.Time,
		entry, volume, stop, tp1, tp2, b.cfg.Trading.CommissionPerLot)
	b.nextTicket++
	b.portfolio.AddTrade(trade)

	b.log.WithFields(map[string]any{
		"ticket": trade.Ticket,
		"side":   side,
		"entry":  entry,
		"volume": volume,
		"atr":    fmt.Sprintf("%.5f", details.ATR),
		"trend":  details.Trend,
	}).Info("Trade opened")

	if b.storage != nil {
		record := trade.ToRecord()
		if err := b.storage.CreateTrade(ctx, &record); err != nil {
			b.log.WithError(err).Error("Persist trade failed")
		} else {
			trade.recordID = record.ID
		}
	}
	if b.notifier != nil {
		b.notifier.OnTrade(core.TradeEvent{
			Ticket: trade.Ticket,
			Symbol: trade.Symbol,
			Side:   side,
			Action: ActionOpen,
			Volume: volume,
			Price:  entry,
		})
	}
}

// lotSize converts the configured risk percentage into lots. A zero stop
// distance falls back to the minimum lot; exhausted balance yields zero,
// which skips the trade.
func (b *Backtester) lotSize(slPips float64) float64 {
	risk := b.portfolio.Balance() * b.cfg.Trading.RiskPerTrade / 100
	if risk <= 0 {
		return 0
	}
	if slPips == 0 {
		return minLot
	}

	pipValuePerLot := pipSize(b.symbol) * contractSize
	volume := roundLot(risk / (slPips * pipValuePerLot))
	return math.Max(minLot, volume)
}

func (b *Backtester) afterTradeEvent(trade *Trade, action string, volume, price, profit float64, reason string) {
	if b.storage != nil {
		record := trade.ToRecord()
		if err := b.storage.UpdateTrade(context.Background(), &record); err != nil {
			b.log.WithError(err).Error("Persist trade failed")
		}
	}
	if b.notifier != nil {
		b.notifier.OnTrade(core.TradeEvent{
			Ticket: trade.Ticket,
			Symbol: trade.Symbol,
			Side:   trade.Side,
			Action: action,
			Volume: volume,
			Price:  price,
			Profit: profit,
			Reason: reason,
		})
	}
}

func (b *Backtester) recordEquity(ctx context.Context, t time.Time, price float64) {
	point := b.portfolio.UpdateEquity(t, price)
	if b.storage != nil {
		if err := b.storage.CreateEquityPoint(ctx, &point); err != nil {
			b.log.WithError(err).Error("Persist equity point failed")
		}
	}
}

func (b *Backtester) closeAllAt(at time.Time, price float64, reason string) {
	for _, trade := range b.portfolio.OpenTrades() {
		b.closeTrade(trade, at, price, reason)
	}
}

func (b *Backtester) closeEverything(m1 *core.Dataframe, i int) {
	if m1.Length() == 0 {
		return
	}
	if i >= m1.Length() {
		i = m1.Length() - 1
	}
	candle := m1.Candle(i)
	b.closeAllAt(candle.Time, candle.Close, ReasonEndOfData)
}

// inSession reports whether the instant falls inside the London or New
// York entry window. Both windows are half-open UTC hour ranges.
func (b *Backtester) inSession(t time.Time) bool {
	hour := t.UTC().Hour()
	s := b.cfg.Session
	london := hour >= s.LondonStartHour && hour < s.LondonEndHour
	newYork := hour >= s.NYStartHour && hour < s.NYEndHour
	return london || newYork
}

func roundLot(volume float64) float64 {
	return math.Round(volume*100) / 100
}

func dateKey(t time.Time) int {
	y, m, d := t.UTC().Date()
	return y*10000 + int(m)*100 + d
}
