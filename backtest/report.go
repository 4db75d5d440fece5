package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
)

// WriteSummary renders the run summary as a table followed by a profit
// histogram of the closed trades
func WriteSummary(w io.Writer, result *Result) {
	s := result.Statistics

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	rows := [][]string{
		{"Initial balance", fmt.Sprintf("%.2f", s.InitialBalance)},
		{"Final balance", fmt.Sprintf("%.2f", s.FinalBalance)},
		{"Net profit", fmt.Sprintf("%.2f (%.2f %%)", s.NetProfit, s.NetProfitPct)},
		{"Total pips", fmt.Sprintf("%.1f", s.TotalPips)},
		{"Commission paid", fmt.Sprintf("%.2f", s.Commission)},
		{"Trades", strconv.Itoa(s.TotalTrades)},
		{"Wins / Losses / BE", fmt.Sprintf("%d / %d / %d", s.Wins, s.Losses, s.Breakeven)},
		{"Win rate", fmt.Sprintf("%.1f %%", s.WinRate)},
		{"Profit factor", fmt.Sprintf("%.3f", s.ProfitFactor)},
		{"Payoff", fmt.Sprintf("%.3f", s.Payoff)},
		{"Expectancy", fmt.Sprintf("%.2f", s.Expectancy)},
		{"Largest win / loss", fmt.Sprintf("%.2f / %.2f", s.LargestWin, s.LargestLoss)},
		{"Win / loss streak", fmt.Sprintf("%d / %d", s.MaxWinStreak, s.MaxLossStreak)},
		{"Avg trade minutes", fmt.Sprintf("%.1f (win %.1f / loss %.1f)", s.AvgTradeMinutes, s.AvgWinMinutes, s.AvgLossMinutes)},
		{"Max drawdown", fmt.Sprintf("%.2f (%.2f %%)", s.MaxDrawdown, s.MaxDrawdownPct)},
		{"Avg drawdown", fmt.Sprintf("%.2f (%.2f %%)", s.AvgDrawdown, s.AvgDrawdownPct)},
		{"Sharpe ratio", fmt.Sprintf("%.3f", s.SharpeRatio)},
		{"Sortino ratio", fmt.Sprintf("%.3f", s.SortinoRatio)},
		{"Calmar ratio", fmt.Sprintf("%.3f", s.CalmarRatio)},
	}
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()

	if len(s.MonthlyProfit) > 0 {
		monthly := tablewriter.NewWriter(w)
		monthly.SetHeader([]string{"Month", "Trades", "Profit"})
		for _, m := range s.MonthlyProfit {
			monthly.Append([]string{m.Month, strconv.Itoa(m.Trades), fmt.Sprintf("%.2f", m.Profit)})
		}
		monthly.Render()
	}

	profits := Profits(result.Trades)
	if len(profits) > 1 {
		fmt.Fprintln(w, "------ TRADE PROFIT DISTRIBUTION ------")
		hist := histogram.Hist(15, profits)
		if err := histogram.Fprint(w, hist, histogram.Linear(10)); err != nil {
			fmt.Fprintf(w, "histogram: %v\n", err)
		}
		fmt.Fprintln(w)
	}
}

// SaveReport writes the run artifacts into the output directory: the trade
// list and equity curve as CSV and the statistics as JSON
func SaveReport(outputDir string, result *Result) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := saveTradesCSV(filepath.Join(outputDir, "trades.csv"), result.Trades); err != nil {
		return err
	}
	if err := saveEquityCSV(filepath.Join(outputDir, "equity.csv"), result); err != nil {
		return err
	}
	return saveStatisticsJSON(filepath.Join(outputDir, "statistics.json"), result.Statistics)
}

func saveTradesCSV(path string, trades []*Trade) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{
		"ticket", "symbol", "side", "entry_time", "entry_price", "exit_time",
		"exit_price", "volume", "stop_loss", "tp_partial", "tp_final",
		"profit", "pips", "commission", "comment",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, trade := range trades {
		exitTime, exitPrice := "", ""
		if trade.ExitTime != nil {
			exitTime = trade.ExitTime.Format(time.RFC3339)
		}
		if trade.ExitPrice != nil {
			exitPrice = strconv.FormatFloat(*trade.ExitPrice, 'f', 5, 64)
		}

		row := []string{
			strconv.FormatInt(trade.Ticket, 10),
			trade.Symbol,
			string(trade.Side),
			trade.EntryTime.Format(time.RFC3339),
			strconv.FormatFloat(trade.EntryPrice, 'f', 5, 64),
			exitTime,
			exitPrice,
			strconv.FormatFloat(trade.Volume, 'f', 2, 64),
			strconv.FormatFloat(trade.StopLoss, 'f', 5, 64),
			strconv.FormatFloat(trade.TakeProfitPartial, 'f', 5, 64),
			strconv.FormatFloat(trade.TakeProfitFinal, 'f', 5, 64),
			strconv.FormatFloat(trade.Profit, 'f', 2, 64),
			strconv.FormatFloat(trade.ProfitPips, 'f', 1, 64),
			strconv.FormatFloat(trade.Commission, 'f', 2, 64),
			trade.Comment,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func saveEquityCSV(path string, result *Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"time", "balance", "equity", "floating_pl"}); err != nil {
		return err
	}
	for _, point := range result.Equity {
		row := []string{
			point.Time.Format(time.RFC3339),
			strconv.FormatFloat(point.Balance, 'f', 2, 64),
			strconv.FormatFloat(point.Equity, 'f', 2, 64),
			strconv.FormatFloat(point.FloatingPL, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func saveStatisticsJSON(path string, s Statistics) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal statistics: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
