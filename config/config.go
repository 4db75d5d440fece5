// Package config holds the explicit configuration for a simulation run.
// The configuration is constructed once and passed into the components that
// need it; there is no process-wide settings object.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config aggregates every tunable of a backtest run
type Config struct {
	Trading   TradingConfig   `mapstructure:"trading"`
	Session   SessionConfig   `mapstructure:"session"`
	Indicator IndicatorConfig `mapstructure:"indicator"`
	System    SystemConfig    `mapstructure:"system"`
}

// TradingConfig holds risk management and order placement parameters
type TradingConfig struct {
	InitialBalance      float64 `mapstructure:"initial_balance"`
	Leverage            int     `mapstructure:"leverage"`
	CommissionPerLot    float64 `mapstructure:"commission_per_lot"`
	SpreadPips          float64 `mapstructure:"spread_pips"`
	RiskPerTrade        float64 `mapstructure:"risk_per_trade"`        // percent of balance
	MaxDrawdownPercent  float64 `mapstructure:"max_drawdown"`          // account-wide, percent
	MaxDailyLossPercent float64 `mapstructure:"max_daily_drawdown"`    // percent
	MaxDailyTrades      int     `mapstructure:"max_daily_trades"`
	StopLossPips        float64 `mapstructure:"stop_loss_pips"`
	RRPartial           float64 `mapstructure:"rr_partial"`
	RRFinal             float64 `mapstructure:"rr_final"`
	PartialClosePercent float64 `mapstructure:"partial_close_percent"` // 0-100
}

// SessionConfig holds the UTC hour windows during which entries are allowed.
// Windows are half-open: [Start, End).
type SessionConfig struct {
	LondonStartHour int `mapstructure:"london_start"`
	LondonEndHour   int `mapstructure:"london_end"`
	NYStartHour     int `mapstructure:"ny_start"`
	NYEndHour       int `mapstructure:"ny_end"`
}

// IndicatorConfig holds indicator periods and signal thresholds
type IndicatorConfig struct {
	EMAFast         int     `mapstructure:"ema_fast"`
	EMASlow         int     `mapstructure:"ema_slow"`
	RSIPeriod       int     `mapstructure:"rsi_period"`
	StochK          int     `mapstructure:"stoch_k"`
	StochD          int     `mapstructure:"stoch_d"`
	StochSlowing    int     `mapstructure:"stoch_slowing"`
	ATRPeriod       int     `mapstructure:"atr_period"`
	MinATR          float64 `mapstructure:"min_atr"`
	RSIBuyMin       float64 `mapstructure:"rsi_buy_min"`
	RSIBuyMax       float64 `mapstructure:"rsi_buy_max"`
	RSISellMin      float64 `mapstructure:"rsi_sell_min"`
	RSISellMax      float64 `mapstructure:"rsi_sell_max"`
	StochOversold   float64 `mapstructure:"stoch_oversold"`
	StochOverbought float64 `mapstructure:"stoch_overbought"`
}

// SystemConfig holds glue settings that are not part of the algorithmic core
type SystemConfig struct {
	LogLevel      string `mapstructure:"log_level"`
	BridgeDir     string `mapstructure:"bridge_dir"`
	TelegramToken string `mapstructure:"telegram_token"`
	TelegramUser  int64  `mapstructure:"telegram_user"`
}

// Default returns the reference parameter set for the strategy
func Default() Config {
	return Config{
		Trading: TradingConfig{
			InitialBalance:      10000,
			Leverage:            100,
			CommissionPerLot:    0,
			SpreadPips:          1,
			RiskPerTrade:        1,
			MaxDrawdownPercent:  10,
			MaxDailyLossPercent: 5,
			MaxDailyTrades:      10,
			StopLossPips:        12,
			RRPartial:           2,
			RRFinal:             3,
			PartialClosePercent: 50,
		},
		Session: SessionConfig{
			LondonStartHour: 8,
			LondonEndHour:   12,
			NYStartHour:     13,
			NYEndHour:       17,
		},
		Indicator: IndicatorConfig{
			EMAFast:         9,
			EMASlow:         21,
			RSIPeriod:       14,
			StochK:          5,
			StochD:          3,
			StochSlowing:    3,
			ATRPeriod:       14,
			MinATR:          0.0003,
			RSIBuyMin:       40,
			RSIBuyMax:       70,
			RSISellMin:      30,
			RSISellMax:      60,
			StochOversold:   20,
			StochOverbought: 80,
		},
		System: SystemConfig{
			LogLevel: "info",
		},
	}
}

// Load reads a YAML configuration file over the defaults
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations that would make a run meaningless.
// Configuration errors fail fast, before the simulation starts.
func (c Config) Validate() error {
	t := c.Trading
	switch {
	case t.InitialBalance <= 0:
		return fmt.Errorf("initial balance must be positive, got %v", t.InitialBalance)
	case t.StopLossPips <= 0:
		return fmt.Errorf("stop loss pips must be positive, got %v", t.StopLossPips)
	case t.RRPartial <= 0 || t.RRFinal <= 0:
		return fmt.Errorf("risk:reward multiples must be positive")
	case t.RRFinal < t.RRPartial:
		return fmt.Errorf("final R:R (%v) must not be below partial R:R (%v)", t.RRFinal, t.RRPartial)
	case t.PartialClosePercent <= 0 || t.PartialClosePercent >= 100:
		return fmt.Errorf("partial close percent must be in (0, 100), got %v", t.PartialClosePercent)
	case t.RiskPerTrade <= 0:
		return fmt.Errorf("risk per trade must be positive, got %v", t.RiskPerTrade)
	}

	for _, h := range []int{c.Session.LondonStartHour, c.Session.LondonEndHour, c.Session.NYStartHour, c.Session.NYEndHour} {
		if h < 0 || h > 24 {
			return fmt.Errorf("session hour out of range: %d", h)
		}
	}

	i := c.Indicator
	if i.EMAFast <= 0 || i.EMASlow <= 0 || i.RSIPeriod <= 0 || i.StochK <= 0 ||
		i.StochD <= 0 || i.StochSlowing <= 0 || i.ATRPeriod <= 0 {
		return fmt.Errorf("indicator periods must be positive")
	}
	if i.EMAFast >= i.EMASlow {
		return fmt.Errorf("fast EMA period (%d) must be below slow EMA period (%d)", i.EMAFast, i.EMASlow)
	}

	return nil
}

// PartialCloseFraction returns the partial close size as a fraction in (0, 1)
func (c Config) PartialCloseFraction() float64 {
	return c.Trading.PartialClosePercent / 100
}
