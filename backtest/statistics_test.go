package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfx/pipstride/core"
)

func closedTrade(profit, pips float64, exit time.Time) *Trade {
	price := 1.0850
	trade := NewTrade(1, "EURUSD", core.SideTypeBuy, exit.Add(-time.Hour),
		price, 0.10, price-0.0012, price+0.0024, price+0.0036, 0)
	trade.Profit = profit
	trade.ProfitPips = pips
	trade.VolumeClosed = trade.Volume
	trade.Status = StatusClosed
	trade.ExitTime = &exit
	trade.ExitPrice = &price
	return trade
}

func TestComputeStatisticsEmpty(t *testing.T) {
	s := ComputeStatistics(nil, nil, 10000)

	assert.Equal(t, 10000.0, s.InitialBalance)
	assert.Equal(t, 10000.0, s.FinalBalance)
	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.NetProfit)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.MaxDrawdown)
	assert.Zero(t, s.SharpeRatio)
	assert.Empty(t, s.MonthlyProfit)
}

func TestComputeStatisticsTradeFigures(t *testing.T) {
	exit := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	trades := []*Trade{
		closedTrade(100, 10, exit),
		closedTrade(-50, -5, exit),
		closedTrade(200, 20, exit),
		closedTrade(-50, -5, exit),
	}

	s := ComputeStatistics(trades, nil, 10000)

	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.InDelta(t, 200.0, s.NetProfit, 1e-9)
	assert.InDelta(t, 2.0, s.NetProfitPct, 1e-9)
	assert.InDelta(t, 300.0, s.GrossProfit, 1e-9)
	assert.InDelta(t, 100.0, s.GrossLoss, 1e-9)
	assert.InDelta(t, 3.0, s.ProfitFactor, 1e-9)
	assert.InDelta(t, 50.0, s.WinRate, 1e-9)
	assert.InDelta(t, 150.0, s.AverageWin, 1e-9)
	assert.InDelta(t, 50.0, s.AverageLoss, 1e-9)
	assert.InDelta(t, 3.0, s.Payoff, 1e-9)
	assert.InDelta(t, 50.0, s.Expectancy, 1e-9)
	assert.InDelta(t, 200.0, s.LargestWin, 1e-9)
	assert.InDelta(t, -50.0, s.LargestLoss, 1e-9)
	assert.InDelta(t, 20.0, s.TotalPips, 1e-9)
}

func TestStreaksResetOnBreakeven(t *testing.T) {
	exit := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	trades := []*Trade{
		closedTrade(10, 1, exit),
		closedTrade(10, 1, exit),
		closedTrade(0, 0, exit),
		closedTrade(10, 1, exit),
		closedTrade(-10, -1, exit),
		closedTrade(-10, -1, exit),
		closedTrade(-10, -1, exit),
	}

	s := ComputeStatistics(trades, nil, 10000)

	assert.Equal(t, 1, s.Breakeven)
	assert.Equal(t, 2, s.MaxWinStreak, "breakeven interrupts the win streak")
	assert.Equal(t, 3, s.MaxLossStreak)
}

func TestDrawdownSequence(t *testing.T) {
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	equities := []float64{10000, 10500, 10200, 10800, 9700, 10100}
	equity := make([]core.EquityPoint, len(equities))
	for i, e := range equities {
		equity[i] = core.EquityPoint{Time: base.Add(time.Duration(i) * time.Minute), Equity: e, Balance: e}
	}

	s := ComputeStatistics(nil, equity, 10000)

	// worst fall is from the 10800 peak down to 9700
	assert.InDelta(t, 1100.0, s.MaxDrawdown, 1e-9)
	assert.InDelta(t, 1100.0/10800.0*100, s.MaxDrawdownPct, 1e-9)
}

func TestDrawdownRecoveryKeepsWorstFall(t *testing.T) {
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	equities := []float64{10000, 10500, 9800, 10200}
	equity := make([]core.EquityPoint, len(equities))
	for i, e := range equities {
		equity[i] = core.EquityPoint{Time: base.Add(time.Duration(i) * time.Minute), Equity: e, Balance: e}
	}

	s := ComputeStatistics(nil, equity, 10000)

	assert.InDelta(t, 700.0, s.MaxDrawdown, 1e-9)
	assert.InDelta(t, 700.0/10500.0*100, s.MaxDrawdownPct, 1e-9)
}

func TestRiskRatios(t *testing.T) {
	base := time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)
	equities := []float64{10000, 10100, 10050, 10200, 10150, 10300}
	equity := make([]core.EquityPoint, len(equities))
	for i, e := range equities {
		equity[i] = core.EquityPoint{Time: base.AddDate(0, 0, i), Equity: e, Balance: e}
	}

	s := ComputeStatistics(nil, equity, 10000)

	assert.Greater(t, s.SharpeRatio, 0.0)
	assert.Greater(t, s.SortinoRatio, 0.0)
	assert.Greater(t, s.CalmarRatio, 0.0)
	assert.Greater(t, s.SortinoRatio, s.SharpeRatio,
		"downside deviation is smaller than total deviation here")
}

func TestRiskRatiosUseEverySample(t *testing.T) {
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	equities := []float64{10000, 10100, 10050, 10200}
	equity := make([]core.EquityPoint, len(equities))
	for i, e := range equities {
		// all samples fall on the same calendar day
		equity[i] = core.EquityPoint{Time: base.Add(time.Duration(i) * time.Minute), Equity: e, Balance: e}
	}

	s := ComputeStatistics(nil, equity, 10000)

	assert.NotZero(t, s.SharpeRatio, "intraday samples must contribute returns")
}

func TestTradeDurations(t *testing.T) {
	exit := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	winner := closedTrade(100, 10, exit)
	winner.EntryTime = exit.Add(-30 * time.Minute)
	loser := closedTrade(-50, -5, exit)
	loser.EntryTime = exit.Add(-10 * time.Minute)

	s := ComputeStatistics([]*Trade{winner, loser}, nil, 10000)

	assert.InDelta(t, 20.0, s.AvgTradeMinutes, 1e-9)
	assert.InDelta(t, 30.0, s.AvgWinMinutes, 1e-9)
	assert.InDelta(t, 10.0, s.AvgLossMinutes, 1e-9)
}

func TestDrawdownAverages(t *testing.T) {
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	equities := []float64{10000, 9900, 9800, 10000}
	equity := make([]core.EquityPoint, len(equities))
	for i, e := range equities {
		equity[i] = core.EquityPoint{Time: base.Add(time.Duration(i) * time.Minute), Equity: e, Balance: e}
	}

	s := ComputeStatistics(nil, equity, 10000)

	// only the two samples below the peak count
	assert.InDelta(t, 150.0, s.AvgDrawdown, 1e-9)
	assert.InDelta(t, 1.5, s.AvgDrawdownPct, 1e-9)
	assert.InDelta(t, 200.0, s.MaxDrawdown, 1e-9)
}

func TestMonthlyAggregation(t *testing.T) {
	march := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	april := time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC)
	trades := []*Trade{
		closedTrade(100, 10, march),
		closedTrade(-40, -4, march),
		closedTrade(70, 7, april),
	}

	s := ComputeStatistics(trades, nil, 10000)

	require.Len(t, s.MonthlyProfit, 2)
	assert.Equal(t, "2024-03", s.MonthlyProfit[0].Month)
	assert.InDelta(t, 60.0, s.MonthlyProfit[0].Profit, 1e-9)
	assert.Equal(t, 2, s.MonthlyProfit[0].Trades)
	assert.Equal(t, "2024-04", s.MonthlyProfit[1].Month)
	assert.InDelta(t, 70.0, s.MonthlyProfit[1].Profit, 1e-9)
}

func TestProfits(t *testing.T) {
	exit := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	trades := []*Trade{closedTrade(5, 1, exit), closedTrade(-3, -1, exit)}
	assert.Equal(t, []float64{5, -3}, Profits(trades))
}
