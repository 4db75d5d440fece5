package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfx/pipstride/core"
)

var tradeTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newBuyTrade(commissionPerLot float64) *Trade {
	// 12 pip stop, targets at 2R and 3R
	return NewTrade(1, "EURUSD", core.SideTypeBuy, tradeTime,
		1.0850, 0.10, 1.0838, 1.0874, 1.0886, commissionPerLot)
}

func TestPipValue(t *testing.T) {
	trade := newBuyTrade(0)
	assert.InDelta(t, 1.0, trade.PipValue(0.10), 1e-9)

	jpy := NewTrade(2, "USDJPY", core.SideTypeSell, tradeTime,
		150.00, 0.10, 150.12, 149.76, 149.64, 0)
	assert.Equal(t, 0.01, jpy.PipSize())
	assert.InDelta(t, 100.0, jpy.PipValue(0.10), 1e-9)
}

func TestPips(t *testing.T) {
	buy := newBuyTrade(0)
	assert.InDelta(t, 24.0, buy.Pips(1.0874), 1e-9)
	assert.InDelta(t, -12.0, buy.Pips(1.0838), 1e-9)

	sell := NewTrade(2, "EURUSD", core.SideTypeSell, tradeTime,
		1.0850, 0.10, 1.0862, 1.0826, 1.0814, 0)
	assert.InDelta(t, 24.0, sell.Pips(1.0826), 1e-9)
	assert.InDelta(t, -12.0, sell.Pips(1.0862), 1e-9)
}

func TestCloseFullPosition(t *testing.T) {
	trade := newBuyTrade(7.0)
	exit := tradeTime.Add(30 * time.Minute)

	profit, err := trade.Close(exit, 1.0874, ReasonFinalTP)
	require.NoError(t, err)

	// 24 pips * $1/pip minus exit commission on 0.10 lots
	assert.InDelta(t, 24.0-0.7, profit, 1e-9)
	assert.Equal(t, StatusClosed, trade.Status)
	assert.Equal(t, 0.0, trade.OpenVolume())
	require.NotNil(t, trade.ExitTime)
	assert.Equal(t, exit, *trade.ExitTime)
	assert.Equal(t, ReasonFinalTP, trade.Comment)
	// entry commission on full volume plus exit commission
	assert.InDelta(t, 1.4, trade.Commission, 1e-9)
}

func TestCloseIdempotent(t *testing.T) {
	trade := newBuyTrade(0)
	_, err := trade.Close(tradeTime, 1.0874, ReasonFinalTP)
	require.NoError(t, err)

	profitBefore := trade.Profit
	profit, err := trade.Close(tradeTime, 1.0900, ReasonFinalTP)
	assert.ErrorIs(t, err, core.ErrAlreadyClosed)
	assert.Zero(t, profit)
	assert.Equal(t, profitBefore, trade.Profit)

	_, err = trade.ClosePartial(tradeTime, 1.0900, 0.05, ReasonPartialTP)
	assert.ErrorIs(t, err, core.ErrAlreadyClosed)
}

func TestClosePartial(t *testing.T) {
	trade := newBuyTrade(7.0)

	profit, err := trade.ClosePartial(tradeTime, 1.0874, 0.05, ReasonPartialTP)
	require.NoError(t, err)

	// 24 pips at half size minus exit commission on 0.05 lots
	assert.InDelta(t, 24.0*0.5-0.35, profit, 1e-9)
	assert.Equal(t, StatusPartialClose, trade.Status)
	assert.True(t, trade.PartialClosed)
	assert.InDelta(t, 0.05, trade.OpenVolume(), 1e-9)
	assert.InDelta(t, 0.10, trade.Volume, 1e-9, "entry volume never changes")

	// runner closes at the final target
	profit, err = trade.Close(tradeTime, 1.0886, ReasonFinalTP)
	require.NoError(t, err)
	assert.InDelta(t, 36.0*0.5-0.35, profit, 1e-9)
	assert.Equal(t, StatusClosed, trade.Status)
	assert.InDelta(t, trade.Volume, trade.VolumeClosed, 1e-9)
}

func TestClosePartialClampsToOpenVolume(t *testing.T) {
	trade := newBuyTrade(0)

	_, err := trade.ClosePartial(tradeTime, 1.0874, 1.0, ReasonPartialTP)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, trade.Status)
	assert.InDelta(t, 0.10, trade.VolumeClosed, 1e-9)
}

func TestMoveToBreakEven(t *testing.T) {
	trade := newBuyTrade(0)
	trade.MoveToBreakEven()
	assert.Equal(t, trade.EntryPrice, trade.StopLoss)
	assert.True(t, trade.BreakEven)

	// a second call must not touch the stop again
	trade.StopLoss = 1.0860
	trade.MoveToBreakEven()
	assert.Equal(t, 1.0860, trade.StopLoss)
}

func TestTouchChecks(t *testing.T) {
	trade := newBuyTrade(0)

	hit := core.Candle{Low: 1.0830, High: 1.0855}
	miss := core.Candle{Low: 1.0845, High: 1.0855}
	assert.True(t, trade.CheckStopLoss(hit))
	assert.False(t, trade.CheckStopLoss(miss))

	tp1 := core.Candle{Low: 1.0860, High: 1.0875}
	assert.True(t, trade.CheckTakeProfitPartial(tp1))
	assert.False(t, trade.CheckTakeProfitFinal(tp1))

	tp2 := core.Candle{Low: 1.0860, High: 1.0890}
	assert.True(t, trade.CheckTakeProfitFinal(tp2))

	trade.PartialClosed = true
	assert.False(t, trade.CheckTakeProfitPartial(tp1), "first target fires once")

	sell := NewTrade(2, "EURUSD", core.SideTypeSell, tradeTime,
		1.0850, 0.10, 1.0862, 1.0826, 1.0814, 0)
	assert.True(t, sell.CheckStopLoss(core.Candle{Low: 1.0850, High: 1.0865}))
	assert.True(t, sell.CheckTakeProfitPartial(core.Candle{Low: 1.0820, High: 1.0850}))
}

func TestFloatingPL(t *testing.T) {
	trade := newBuyTrade(0)
	assert.InDelta(t, 10.0, trade.FloatingPL(1.0860), 1e-9)
	assert.InDelta(t, -12.0, trade.FloatingPL(1.0838), 1e-9)

	_, err := trade.Close(tradeTime, 1.0860, ReasonFinalTP)
	require.NoError(t, err)
	assert.Zero(t, trade.FloatingPL(1.0900))
}

func TestToRecord(t *testing.T) {
	trade := newBuyTrade(7.0)
	_, err := trade.ClosePartial(tradeTime, 1.0874, 0.05, ReasonPartialTP)
	require.NoError(t, err)
	exit := tradeTime.Add(time.Hour)
	_, err = trade.Close(exit, 1.0886, ReasonFinalTP)
	require.NoError(t, err)

	record := trade.ToRecord()
	assert.Equal(t, int64(1), record.Ticket)
	assert.Equal(t, StatusClosed, record.Status)
	assert.Equal(t, trade.Profit, record.Profit)
	assert.Equal(t, trade.Commission, record.Commission)
	assert.True(t, record.PartialClosed)
	assert.Equal(t, exit, record.UpdatedAt)
	require.NotNil(t, record.ExitPrice)
	assert.Equal(t, 1.0886, *record.ExitPrice)
}
