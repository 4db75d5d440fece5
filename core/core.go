package core

import (
	"context"
	"slices"
	"time"
)

// Feeder supplies time-ordered, duplicate-free candle history per timeframe
type Feeder interface {
	Candles(ctx context.Context, symbol, timeframe string) ([]Candle, error)
	CandlesByPeriod(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Candle, error)
}

// Notifier receives human-facing notifications about signals and trades
type Notifier interface {
	Notify(message string)
	OnTrade(event TradeEvent)
	OnError(err error)
}

// NotifierWithStart is a notifier with its own polling loop
type NotifierWithStart interface {
	Notifier
	Start()
}

// MultiNotifier fans every event out to all wrapped notifiers
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(message string) {
	for _, n := range m {
		n.Notify(message)
	}
}

func (m MultiNotifier) OnTrade(event TradeEvent) {
	for _, n := range m {
		n.OnTrade(event)
	}
}

func (m MultiNotifier) OnError(err error) {
	for _, n := range m {
		n.OnError(err)
	}
}

// TradeFilter defines a function type for filtering stored trade records
type TradeFilter func(record TradeRecord) bool

// TradeStorage persists trade records and equity samples. Storage is an
// optional sink; the simulation does not depend on it for correctness.
type TradeStorage interface {
	CreateTrade(ctx context.Context, record *TradeRecord) error
	UpdateTrade(ctx context.Context, record *TradeRecord) error
	Trades(ctx context.Context, filters ...TradeFilter) ([]*TradeRecord, error)
	CreateEquityPoint(ctx context.Context, point *EquityPoint) error
}

// WithSymbol filters trade records by symbol
func WithSymbol(symbol string) TradeFilter {
	return func(record TradeRecord) bool {
		return record.Symbol == symbol
	}
}

// WithStatusIn filters trade records by one or more statuses
func WithStatusIn(status ...string) TradeFilter {
	return func(record TradeRecord) bool {
		return slices.Contains(status, record.Status)
	}
}

// WithExitBefore filters trade records closed at or before the given time
func WithExitBefore(t time.Time) TradeFilter {
	return func(record TradeRecord) bool {
		return record.ExitTime != nil && !record.ExitTime.After(t)
	}
}

// TradeRecord is the flat, storage- and report-facing view of a trade
type TradeRecord struct {
	ID            int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Ticket        int64      `json:"ticket"`
	Symbol        string     `json:"symbol"`
	Side          SideType   `json:"side"`
	Status        string     `json:"status"`
	EntryTime     time.Time  `json:"entry_time"`
	EntryPrice    float64    `json:"entry_price"`
	ExitTime      *time.Time `json:"exit_time"`
	ExitPrice     *float64   `json:"exit_price"`
	Volume        float64    `json:"volume"`
	VolumeClosed  float64    `json:"volume_closed"`
	StopLoss      float64    `json:"stop_loss"`
	TakeProfit1   float64    `json:"take_profit_partial"`
	TakeProfit2   float64    `json:"take_profit_final"`
	Profit        float64    `json:"profit"`
	ProfitPips    float64    `json:"profit_pips"`
	Commission    float64    `json:"commission"`
	Comment       string     `json:"comment"`
	UpdatedAt     time.Time  `json:"updated_at"`
	BreakEven     bool       `json:"break_even"`
	PartialClosed bool       `json:"partial_closed"`
}

// EquityPoint is one sample of the simulated account state
type EquityPoint struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Time       time.Time `json:"time"`
	Balance    float64   `json:"balance"`
	Equity     float64   `json:"equity"`
	FloatingPL float64   `json:"floating_pl"`
}
