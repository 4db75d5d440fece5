package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfx/pipstride/config"
	"github.com/quantfx/pipstride/core"
	"github.com/quantfx/pipstride/logger"
	zerologger "github.com/quantfx/pipstride/logger/zerolog"
	"github.com/quantfx/pipstride/storage"
)

type stubFeed struct {
	candles map[string][]core.Candle
}

func (f *stubFeed) Candles(_ context.Context, symbol, timeframe string) ([]core.Candle, error) {
	return f.candles[timeframe], nil
}

func (f *stubFeed) CandlesByPeriod(_ context.Context, symbol, timeframe string, start, end time.Time) ([]core.Candle, error) {
	return f.candles[timeframe], nil
}

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	zl, err := zerologger.NewZerolog("error", time.Kitchen, false, false)
	require.NoError(t, err)
	return zerologger.NewAdapter(zl)
}

// flatFeed builds aligned 1m/5m/15m series of constant prices inside the
// London session. Flat prices never produce a stochastic value, so no
// signals fire.
func flatFeed(start time.Time, minutes int) *stubFeed {
	f := &stubFeed{candles: make(map[string][]core.Candle)}
	steps := map[string]time.Duration{"1m": time.Minute, "5m": 5 * time.Minute, "15m": 15 * time.Minute}
	for tf, step := range steps {
		n := minutes / int(step/time.Minute)
		for i := 0; i < n; i++ {
			f.candles[tf] = append(f.candles[tf], core.Candle{
				Symbol: "EURUSD",
				Time:   start.Add(time.Duration(i) * step),
				Open:   1.0850, High: 1.0850, Low: 1.0850, Close: 1.0850,
				Volume: 1,
			})
		}
	}
	return f
}

func newTestBacktester(t *testing.T, feed core.Feeder, options ...Option) *Backtester {
	t.Helper()
	return NewBacktester(config.Default(), "EURUSD", feed, testLogger(t), options...)
}

func TestInSession(t *testing.T) {
	b := newTestBacktester(t, flatFeed(time.Now(), 60))

	cases := []struct {
		hour int
		want bool
	}{
		{7, false},
		{8, true},   // London opens
		{11, true},
		{12, false}, // London window is half-open
		{13, true},  // New York opens
		{16, true},
		{17, false},
		{22, false},
	}
	for _, tc := range cases {
		at := time.Date(2024, 3, 4, tc.hour, 30, 0, 0, time.UTC)
		assert.Equal(t, tc.want, b.inSession(at), "hour %d", tc.hour)
	}
}

func TestLotSize(t *testing.T) {
	b := newTestBacktester(t, flatFeed(time.Now(), 60))

	// 1% of 10000 risked over 12 pips at $10/pip/lot
	assert.InDelta(t, 0.83, b.lotSize(12), 1e-9)

	t.Run("zero stop distance falls back to minimum lot", func(t *testing.T) {
		assert.Equal(t, minLot, b.lotSize(0))
	})

	t.Run("tiny risk still trades the minimum lot", func(t *testing.T) {
		b.portfolio.balance = 10
		assert.Equal(t, minLot, b.lotSize(12))
	})

	t.Run("exhausted balance skips the trade", func(t *testing.T) {
		b.portfolio.balance = 0
		assert.Zero(t, b.lotSize(12))
	})
}

func TestManagePositions(t *testing.T) {
	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	t.Run("stop loss closes the whole position", func(t *testing.T) {
		b := newTestBacktester(t, flatFeed(at, 60))
		trade := NewTrade(1, "EURUSD", core.SideTypeBuy, at,
			1.0850, 0.10, 1.0838, 1.0874, 1.0886, 0)
		b.portfolio.AddTrade(trade)

		b.managePositions(core.Candle{Time: at, Low: 1.0830, High: 1.0851, Close: 1.0835})

		assert.False(t, b.portfolio.HasOpenTrade())
		require.Len(t, b.portfolio.ClosedTrades(), 1)
		assert.Equal(t, ReasonStopLoss, trade.Comment)
		require.NotNil(t, trade.ExitPrice)
		assert.Equal(t, 1.0838, *trade.ExitPrice, "fills at the stop, not the bar low")
	})

	t.Run("stop beats the partial target on the same bar", func(t *testing.T) {
		b := newTestBacktester(t, flatFeed(at, 60))
		trade := NewTrade(1, "EURUSD", core.SideTypeBuy, at,
			1.0850, 0.10, 1.0838, 1.0874, 1.0886, 0)
		b.portfolio.AddTrade(trade)

		b.managePositions(core.Candle{Time: at, Low: 1.0830, High: 1.0875, Close: 1.0840})

		assert.False(t, b.portfolio.HasOpenTrade())
		assert.False(t, trade.PartialClosed)
		assert.Equal(t, ReasonStopLoss, trade.Comment)
		assert.Negative(t, trade.Profit)
	})

	t.Run("partial target halves the position and arms break even", func(t *testing.T) {
		b := newTestBacktester(t, flatFeed(at, 60))
		trade := NewTrade(1, "EURUSD", core.SideTypeBuy, at,
			1.0850, 0.10, 1.0838, 1.0874, 1.0886, 0)
		b.portfolio.AddTrade(trade)

		b.managePositions(core.Candle{Time: at, Low: 1.0850, High: 1.0875, Close: 1.0870})

		assert.True(t, b.portfolio.HasOpenTrade())
		assert.Equal(t, StatusPartialClose, trade.Status)
		assert.InDelta(t, 0.05, trade.OpenVolume(), 1e-9)
		assert.True(t, trade.BreakEven)
		assert.Equal(t, trade.EntryPrice, trade.StopLoss)

		// a later stop hit at entry still reads as a stop loss
		b.managePositions(core.Candle{Time: at.Add(time.Minute), Low: 1.0848, High: 1.0860, Close: 1.0850})
		assert.False(t, b.portfolio.HasOpenTrade())
		assert.Equal(t, ReasonStopLoss, trade.Comment)
		assert.Equal(t, StatusClosed, trade.Status)
	})

	t.Run("runaway bar closes the full volume at the final target", func(t *testing.T) {
		b := newTestBacktester(t, flatFeed(at, 60))
		trade := NewTrade(1, "EURUSD", core.SideTypeBuy, at,
			1.0850, 0.10, 1.0838, 1.0874, 1.0886, 0)
		b.portfolio.AddTrade(trade)

		b.managePositions(core.Candle{Time: at, Low: 1.0850, High: 1.0890, Close: 1.0885})

		assert.False(t, b.portfolio.HasOpenTrade())
		assert.False(t, trade.PartialClosed, "only one exit per bar")
		assert.Equal(t, ReasonFinalTP, trade.Comment)
		assert.InDelta(t, 36.0, trade.Profit, 1e-9)
	})
}

func TestRunFlatMarket(t *testing.T) {
	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	b := newTestBacktester(t, flatFeed(start, 120))

	result, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.Statistics.TotalTrades, "flat prices produce no signals")
	assert.InDelta(t, 10000.0, result.Statistics.FinalBalance, 1e-9)
	// exactly one sample per simulated bar
	assert.Len(t, result.Equity, 120)
}

func TestRunCanceledContext(t *testing.T) {
	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	b := newTestBacktester(t, flatFeed(start, 60))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStorageFollowsTradeLifecycle(t *testing.T) {
	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	db, err := storage.NewFromMemory()
	require.NoError(t, err)
	defer db.Close()

	b := newTestBacktester(t, flatFeed(at, 60), WithStorage(db))
	b.openTrade(ctx, core.SignalBuy, core.SignalDetails{}, core.Candle{Time: at, Close: 1.0850})

	trades := b.portfolio.OpenTrades()
	require.Len(t, trades, 1)
	assert.NotZero(t, trades[0].recordID, "the stored record id is kept for updates")

	// closing must update the same record, not fail on a fresh one
	b.closeTrade(trades[0], at.Add(time.Minute), trades[0].TakeProfitFinal, ReasonFinalTP)

	records, err := db.Trades(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StatusClosed, records[0].Status)
	assert.Equal(t, ReasonFinalTP, records[0].Comment)
}

func TestTicketsStartAtOne(t *testing.T) {
	b := newTestBacktester(t, flatFeed(time.Now(), 60))
	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	b.openTrade(context.Background(), core.SignalBuy, core.SignalDetails{}, core.Candle{Time: at, Close: 1.0850})
	require.True(t, b.portfolio.HasOpenTrade())

	trades := b.portfolio.OpenTrades()
	require.Len(t, trades, 1)
	assert.Equal(t, int64(1), trades[0].Ticket)

	// the ask pays the spread on BUY entries
	assert.InDelta(t, 1.0850+0.0001, trades[0].EntryPrice, 1e-9)
}
