// Package backtest implements the candle-driven simulation: trade
// lifecycle, account ledger, the bar loop and result statistics.
package backtest

import (
	"strings"
	"time"

	"github.com/quantfx/pipstride/core"
)

// Trade status values
const (
	StatusOpen         = "OPEN"
	StatusPartialClose = "PARTIAL_CLOSE"
	StatusClosed       = "CLOSED"
)

// Close reasons attached to exits. A stop hit after the break-even move
// still reports "Stop Loss".
const (
	ReasonStopLoss  = "Stop Loss"
	ReasonPartialTP = "Take Profit Partial"
	ReasonFinalTP   = "Take Profit Final"
	ReasonEndOfData = "End of backtest"
)

const contractSize = 100000

// Trade models one position from entry through partial and final exits.
// Profit, pips and commission accumulate across close events; Volume is
// the size at entry and never changes.
type Trade struct {
	Ticket            int64
	Symbol            string
	Side              core.SideType
	Status            string
	EntryTime         time.Time
	EntryPrice        float64
	ExitTime          *time.Time
	ExitPrice         *float64
	Volume            float64
	VolumeClosed      float64
	StopLoss          float64
	TakeProfitPartial float64
	TakeProfitFinal   float64
	Profit            float64
	ProfitPips        float64
	Commission        float64
	CommissionPerLot  float64
	Comment           string
	BreakEven         bool
	PartialClosed     bool

	// recordID is the storage key assigned when the trade record is first
	// persisted; later updates must reuse it
	recordID int64
}

// NewTrade opens a position and charges the entry commission on the full
// volume
func NewTrade(ticket int64, symbol string, side core.SideType, entryTime time.Time,
	entryPrice, volume, stopLoss, tpPartial, tpFinal, commissionPerLot float64) *Trade {

	return &Trade{
		Ticket:            ticket,
		Symbol:            symbol,
		Side:              side,
		Status:            StatusOpen,
		EntryTime:         entryTime,
		EntryPrice:        entryPrice,
		Volume:            volume,
		StopLoss:          stopLoss,
		TakeProfitPartial: tpPartial,
		TakeProfitFinal:   tpFinal,
		Commission:        commissionPerLot * volume,
		CommissionPerLot:  commissionPerLot,
	}
}

// OpenVolume returns the lots still held
func (t *Trade) OpenVolume() float64 {
	return t.Volume - t.VolumeClosed
}

// pipSize returns the price increment of one pip. Quotes against the yen
// use two decimal places, every other pair four.
func pipSize(symbol string) float64 {
	if strings.HasSuffix(strings.ToUpper(symbol), "JPY") {
		return 0.01
	}
	return 0.0001
}

// PipSize returns the price increment of one pip for the trade's symbol
func (t *Trade) PipSize() float64 {
	return pipSize(t.Symbol)
}

// PipValue returns the account-currency value of one pip for the given
// volume in lots
func (t *Trade) PipValue(volume float64) float64 {
	return t.PipSize() * volume * contractSize
}

// Pips returns the signed pip distance from entry to the given price
func (t *Trade) Pips(price float64) float64 {
	if t.Side == core.SideTypeBuy {
		return (price - t.EntryPrice) / t.PipSize()
	}
	return (t.EntryPrice - price) / t.PipSize()
}

// FloatingPL returns the unrealized profit of the open volume at the given
// price, before commission
func (t *Trade) FloatingPL(price float64) float64 {
	if t.Status == StatusClosed {
		return 0
	}
	return t.Pips(price) * t.PipValue(t.OpenVolume())
}

// ClosePartial realizes profit on a portion of the position. The exit
// commission is charged on the closed volume only. When the requested
// volume covers the remaining position the trade closes fully.
func (t *Trade) ClosePartial(closeTime time.Time, price, volume float64, reason string) (float64, error) {
	if t.Status == StatusClosed {
		return 0, core.ErrAlreadyClosed
	}

	if open := t.OpenVolume(); volume >= open {
		volume = open
	}

	pips := t.Pips(price)
	commission := t.CommissionPerLot * volume
	profit := pips*t.PipValue(volume) - commission

	t.VolumeClosed += volume
	t.Profit += profit
	t.ProfitPips += pips
	t.Commission += commission
	t.PartialClosed = true

	if t.OpenVolume() <= 1e-9 {
		t.finalize(closeTime, price, reason)
	} else {
		t.Status = StatusPartialClose
	}

	return profit, nil
}

// Close realizes profit on the entire remaining position
func (t *Trade) Close(closeTime time.Time, price float64, reason string) (float64, error) {
	if t.Status == StatusClosed {
		return 0, core.ErrAlreadyClosed
	}

	volume := t.OpenVolume()
	pips := t.Pips(price)
	commission := t.CommissionPerLot * volume
	profit := pips*t.PipValue(volume) - commission

	t.VolumeClosed += volume
	t.Profit += profit
	t.ProfitPips += pips
	t.Commission += commission
	t.finalize(closeTime, price, reason)

	return profit, nil
}

func (t *Trade) finalize(closeTime time.Time, price float64, reason string) {
	t.Status = StatusClosed
	t.ExitTime = &closeTime
	t.ExitPrice = &price
	t.Comment = reason
}

// MoveToBreakEven moves the stop to the entry price. Idempotent.
func (t *Trade) MoveToBreakEven() {
	if t.BreakEven || t.Status == StatusClosed {
		return
	}
	t.StopLoss = t.EntryPrice
	t.BreakEven = true
}

// CheckStopLoss reports whether the candle's range touched the stop
func (t *Trade) CheckStopLoss(candle core.Candle) bool {
	if t.Status == StatusClosed {
		return false
	}
	if t.Side == core.SideTypeBuy {
		return candle.Low <= t.StopLoss
	}
	return candle.High >= t.StopLoss
}

// CheckTakeProfitPartial reports whether the candle's range touched the
// first target while the position is still whole
func (t *Trade) CheckTakeProfitPartial(candle core.Candle) bool {
	if t.Status == StatusClosed || t.PartialClosed {
		return false
	}
	if t.Side == core.SideTypeBuy {
		return candle.High >= t.TakeProfitPartial
	}
	return candle.Low <= t.TakeProfitPartial
}

// CheckTakeProfitFinal reports whether the candle's range touched the
// final target
func (t *Trade) CheckTakeProfitFinal(candle core.Candle) bool {
	if t.Status == StatusClosed {
		return false
	}
	if t.Side == core.SideTypeBuy {
		return candle.High >= t.TakeProfitFinal
	}
	return candle.Low <= t.TakeProfitFinal
}

// ToRecord flattens the trade into its storage and report representation
func (t *Trade) ToRecord() core.TradeRecord {
	record := core.TradeRecord{
		ID:            t.recordID,
		Ticket:        t.Ticket,
		Symbol:        t.Symbol,
		Side:          t.Side,
		Status:        t.Status,
		EntryTime:     t.EntryTime,
		EntryPrice:    t.EntryPrice,
		ExitTime:      t.ExitTime,
		ExitPrice:     t.ExitPrice,
		Volume:        t.Volume,
		VolumeClosed:  t.VolumeClosed,
		StopLoss:      t.StopLoss,
		TakeProfit1:   t.TakeProfitPartial,
		TakeProfit2:   t.TakeProfitFinal,
		Profit:        t.Profit,
		ProfitPips:    t.ProfitPips,
		Commission:    t.Commission,
		Comment:       t.Comment,
		BreakEven:     t.BreakEven,
		PartialClosed: t.PartialClosed,
	}
	if t.ExitTime != nil {
		record.UpdatedAt = *t.ExitTime
	} else {
		record.UpdatedAt = t.EntryTime
	}
	return record
}
