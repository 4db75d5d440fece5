package backtest

import (
	"fmt"
	"time"

	"github.com/quantfx/pipstride/core"
)

// Portfolio is the simulated account ledger. The balance changes only
// through realized profit and commission; equity adds the floating profit
// of open positions on top.
type Portfolio struct {
	balance        float64
	initialBalance float64
	peakEquity     float64
	maxDrawdown    float64
	maxDrawdownPct float64

	open   map[int64]*Trade
	closed []*Trade
	equity []core.EquityPoint

	dailyTrades int
	dailyProfit float64
}

// NewPortfolio creates a ledger with the given starting balance
func NewPortfolio(initialBalance float64) *Portfolio {
	return &Portfolio{
		balance:        initialBalance,
		initialBalance: initialBalance,
		peakEquity:     initialBalance,
		open:           make(map[int64]*Trade),
	}
}

// Balance returns the realized account balance
func (p *Portfolio) Balance() float64 { return p.balance }

// InitialBalance returns the starting balance of the run
func (p *Portfolio) InitialBalance() float64 { return p.initialBalance }

// OpenTrades returns the currently open positions
func (p *Portfolio) OpenTrades() []*Trade {
	trades := make([]*Trade, 0, len(p.open))
	for _, trade := range p.open {
		trades = append(trades, trade)
	}
	return trades
}

// ClosedTrades returns every fully closed trade in close order
func (p *Portfolio) ClosedTrades() []*Trade { return p.closed }

// EquityCurve returns the recorded equity samples in time order
func (p *Portfolio) EquityCurve() []core.EquityPoint { return p.equity }

// HasOpenTrade reports whether any position is currently open
func (p *Portfolio) HasOpenTrade() bool { return len(p.open) > 0 }

// DailyTrades returns the number of trades closed since the last daily reset
func (p *Portfolio) DailyTrades() int { return p.dailyTrades }

// MaxDrawdown returns the worst peak-to-trough equity fall seen so far
func (p *Portfolio) MaxDrawdown() float64 { return p.maxDrawdown }

// MaxDrawdownPct returns the worst relative drawdown seen so far. It only
// ever grows over the course of a run.
func (p *Portfolio) MaxDrawdownPct() float64 { return p.maxDrawdownPct }

// AddTrade registers a freshly opened trade and pays its entry commission
// out of the balance
func (p *Portfolio) AddTrade(trade *Trade) {
	p.open[trade.Ticket] = trade
	p.balance -= trade.Commission
}

// UpdateEquity samples the account state at the given price and ratchets
// the running equity peak and the maximum drawdown
func (p *Portfolio) UpdateEquity(t time.Time, price float64) core.EquityPoint {
	floating := 0.0
	for _, trade := range p.open {
		floating += trade.FloatingPL(price)
	}

	point := core.EquityPoint{
		Time:       t,
		Balance:    p.balance,
		Equity:     p.balance + floating,
		FloatingPL: floating,
	}
	p.equity = append(p.equity, point)

	if point.Equity > p.peakEquity {
		p.peakEquity = point.Equity
	}
	if dd := p.peakEquity - point.Equity; dd > p.maxDrawdown {
		p.maxDrawdown = dd
	}
	if p.peakEquity > 0 {
		if ddPct := (p.peakEquity - point.Equity) / p.peakEquity * 100; ddPct > p.maxDrawdownPct {
			p.maxDrawdownPct = ddPct
		}
	}

	return point
}

// CloseTrade fully closes the position with the given ticket and credits
// the realized profit to the balance
func (p *Portfolio) CloseTrade(ticket int64, closeTime time.Time, price float64, reason string) (float64, error) {
	trade, ok := p.open[ticket]
	if !ok {
		return 0, fmt.Errorf("%w: %d", core.ErrUnknownTicket, ticket)
	}

	profit, err := trade.Close(closeTime, price, reason)
	if err != nil {
		return 0, err
	}

	p.balance += profit
	p.dailyProfit += profit
	p.dailyTrades++
	delete(p.open, ticket)
	p.closed = append(p.closed, trade)

	return profit, nil
}

// PartialCloseTrade closes part of the position with the given ticket. If
// the requested volume covers the whole position the trade leaves the open
// set.
func (p *Portfolio) PartialCloseTrade(ticket int64, closeTime time.Time, price, volume float64, reason string) (float64, error) {
	trade, ok := p.open[ticket]
	if !ok {
		return 0, fmt.Errorf("%w: %d", core.ErrUnknownTicket, ticket)
	}

	profit, err := trade.ClosePartial(closeTime, price, volume, reason)
	if err != nil {
		return 0, err
	}

	p.balance += profit
	p.dailyProfit += profit
	if trade.Status == StatusClosed {
		p.dailyTrades++
		delete(p.open, ticket)
		p.closed = append(p.closed, trade)
	}

	return profit, nil
}

// CloseAll closes every open position at the given price
func (p *Portfolio) CloseAll(closeTime time.Time, price float64, reason string) {
	for ticket := range p.open {
		// every ticket in the map is open, so Close cannot fail
		_, _ = p.CloseTrade(ticket, closeTime, price, reason)
	}
}

// ResetDailyStats starts a new trading day: the trade counter and the
// realized daily profit restart at zero
func (p *Portfolio) ResetDailyStats() {
	p.dailyTrades = 0
	p.dailyProfit = 0
}

// CheckDailyLimits reports whether a new trade may be opened under the
// daily trade count and daily loss caps. The loss cap only applies when
// the realized daily profit is negative, measured against the current
// balance.
func (p *Portfolio) CheckDailyLimits(maxTrades int, maxLossPercent float64) bool {
	if p.dailyTrades >= maxTrades {
		return false
	}
	if p.dailyProfit < 0 && p.balance > 0 {
		lossPercent := -p.dailyProfit / p.balance * 100
		if lossPercent >= maxLossPercent {
			return false
		}
	}
	return true
}

// CheckGlobalDrawdown reports whether the retained maximum drawdown has
// ever reached the given percentage. The measure ratchets one way, so a
// breach persists through any later equity recovery.
func (p *Portfolio) CheckGlobalDrawdown(maxDrawdownPercent float64) bool {
	return p.maxDrawdownPct >= maxDrawdownPercent
}
