package backtest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfx/pipstride/core"
)

// Trading days per year, used to annualize daily return moments
const annualizationFactor = 252

// Statistics summarizes a finished run. A run with no closed trades
// yields the zero value with only the balance fields set.
type Statistics struct {
	InitialBalance float64 `json:"initial_balance"`
	FinalBalance   float64 `json:"final_balance"`
	NetProfit      float64 `json:"net_profit"`
	NetProfitPct   float64 `json:"net_profit_pct"`
	GrossProfit    float64 `json:"gross_profit"`
	GrossLoss      float64 `json:"gross_loss"`
	ProfitFactor   float64 `json:"profit_factor"`
	TotalPips      float64 `json:"total_pips"`
	Commission     float64 `json:"commission"`

	TotalTrades   int     `json:"total_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Breakeven     int     `json:"breakeven"`
	WinRate       float64 `json:"win_rate"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	Payoff        float64 `json:"payoff"`
	Expectancy    float64 `json:"expectancy"`
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
	MaxWinStreak  int     `json:"max_win_streak"`
	MaxLossStreak int     `json:"max_loss_streak"`

	AvgTradeMinutes float64 `json:"avg_trade_minutes"`
	AvgWinMinutes   float64 `json:"avg_win_minutes"`
	AvgLossMinutes  float64 `json:"avg_loss_minutes"`

	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	AvgDrawdown    float64 `json:"avg_drawdown"`
	AvgDrawdownPct float64 `json:"avg_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	SortinoRatio   float64 `json:"sortino_ratio"`
	CalmarRatio    float64 `json:"calmar_ratio"`

	MonthlyProfit []MonthProfit `json:"monthly_profit"`
}

// MonthProfit is the realized profit of all trades exiting in one month
type MonthProfit struct {
	Month  string  `json:"month"`
	Profit float64 `json:"profit"`
	Trades int     `json:"trades"`
}

// ComputeStatistics builds the result summary from the closed trades and
// the sampled equity curve
func ComputeStatistics(trades []*Trade, equity []core.EquityPoint, initialBalance float64) Statistics {
	s := Statistics{
		InitialBalance: initialBalance,
		FinalBalance:   initialBalance,
	}

	if len(equity) > 0 {
		s.FinalBalance = equity[len(equity)-1].Balance
	}

	s.tradeFigures(trades)
	s.durations(trades)
	s.drawdown(equity)
	s.riskRatios(equity, initialBalance)
	s.monthly(trades)

	return s
}

func (s *Statistics) tradeFigures(trades []*Trade) {
	var winStreak, lossStreak int

	for _, trade := range trades {
		s.TotalTrades++
		s.NetProfit += trade.Profit
		s.TotalPips += trade.ProfitPips
		s.Commission += trade.Commission

		switch {
		case trade.Profit > 0:
			s.Wins++
			s.GrossProfit += trade.Profit
			s.LargestWin = math.Max(s.LargestWin, trade.Profit)
			winStreak++
			lossStreak = 0
		case trade.Profit < 0:
			s.Losses++
			s.GrossLoss += -trade.Profit
			s.LargestLoss = math.Min(s.LargestLoss, trade.Profit)
			lossStreak++
			winStreak = 0
		default:
			// breakeven outcomes interrupt both streaks
			s.Breakeven++
			winStreak, lossStreak = 0, 0
		}

		s.MaxWinStreak = max(s.MaxWinStreak, winStreak)
		s.MaxLossStreak = max(s.MaxLossStreak, lossStreak)
	}

	if s.InitialBalance > 0 {
		s.NetProfitPct = s.NetProfit / s.InitialBalance * 100
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
		s.Expectancy = s.NetProfit / float64(s.TotalTrades)
	}
	if s.Wins > 0 {
		s.AverageWin = s.GrossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AverageLoss = s.GrossLoss / float64(s.Losses)
	}
	if s.AverageLoss > 0 {
		s.Payoff = s.AverageWin / s.AverageLoss
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
}

// durations averages the holding time of the closed trades in minutes
func (s *Statistics) durations(trades []*Trade) {
	var total, wins, losses float64
	var nTotal, nWins, nLosses int

	for _, trade := range trades {
		if trade.ExitTime == nil {
			continue
		}
		minutes := trade.ExitTime.Sub(trade.EntryTime).Minutes()
		total += minutes
		nTotal++
		switch {
		case trade.Profit > 0:
			wins += minutes
			nWins++
		case trade.Profit < 0:
			losses += minutes
			nLosses++
		}
	}

	if nTotal > 0 {
		s.AvgTradeMinutes = total / float64(nTotal)
	}
	if nWins > 0 {
		s.AvgWinMinutes = wins / float64(nWins)
	}
	if nLosses > 0 {
		s.AvgLossMinutes = losses / float64(nLosses)
	}
}

// drawdown walks the equity curve tracking the running peak. The absolute
// and percentage maxima ratchet independently, and the averages cover only
// the samples spent below the peak.
func (s *Statistics) drawdown(equity []core.EquityPoint) {
	if len(equity) == 0 {
		return
	}

	var ddSum, ddPctSum float64
	var inDrawdown int

	peak := equity[0].Equity
	for _, point := range equity {
		if point.Equity > peak {
			peak = point.Equity
		}
		dd := peak - point.Equity
		if dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
		if dd > 0 {
			ddSum += dd
			inDrawdown++
			if peak > 0 {
				ddPct := dd / peak * 100
				ddPctSum += ddPct
				if ddPct > s.MaxDrawdownPct {
					s.MaxDrawdownPct = ddPct
				}
			}
		}
	}

	if inDrawdown > 0 {
		s.AvgDrawdown = ddSum / float64(inDrawdown)
		s.AvgDrawdownPct = ddPctSum / float64(inDrawdown)
	}
}

// riskRatios derives Sharpe, Sortino and Calmar from the percentage
// returns between consecutive equity samples, annualized with the fixed
// trading-day constant
func (s *Statistics) riskRatios(equity []core.EquityPoint, initialBalance float64) {
	returns := equityReturns(equity)
	if len(returns) < 2 {
		return
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if std > 0 {
		s.SharpeRatio = mean / std * math.Sqrt(annualizationFactor)
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) > 1 {
		if downStd := stat.StdDev(downside, nil); downStd > 0 {
			s.SortinoRatio = mean / downStd * math.Sqrt(annualizationFactor)
		}
	}

	if s.MaxDrawdownPct > 0 && initialBalance > 0 {
		annualReturn := mean * annualizationFactor * 100
		s.CalmarRatio = annualReturn / s.MaxDrawdownPct
	}
}

// equityReturns is the relative change between consecutive equity samples
func equityReturns(equity []core.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (equity[i].Equity-prev)/prev)
	}

	return returns
}

// monthly aggregates realized profit by the month the trade exited in
func (s *Statistics) monthly(trades []*Trade) {
	byMonth := make(map[string]*MonthProfit)
	for _, trade := range trades {
		if trade.ExitTime == nil {
			continue
		}
		key := trade.ExitTime.UTC().Format("2006-01")
		entry, ok := byMonth[key]
		if !ok {
			entry = &MonthProfit{Month: key}
			byMonth[key] = entry
		}
		entry.Profit += trade.Profit
		entry.Trades++
	}

	for _, entry := range byMonth {
		s.MonthlyProfit = append(s.MonthlyProfit, *entry)
	}
	sort.Slice(s.MonthlyProfit, func(i, j int) bool {
		return s.MonthlyProfit[i].Month < s.MonthlyProfit[j].Month
	})
}

// Profits returns the realized profit of each closed trade in close order
func Profits(trades []*Trade) []float64 {
	profits := make([]float64, len(trades))
	for i, trade := range trades {
		profits[i] = trade.Profit
	}
	return profits
}
