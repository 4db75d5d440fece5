// Package pipstride wires the candle feed, signal cascade and simulated
// account into a runnable backtest application
package pipstride

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/quantfx/pipstride/backtest"
	"github.com/quantfx/pipstride/config"
	"github.com/quantfx/pipstride/core"
	"github.com/quantfx/pipstride/logger"
	zerologger "github.com/quantfx/pipstride/logger/zerolog"
	"github.com/quantfx/pipstride/metric"
)

const bootstrapSamples = 10000

// App bundles one configured backtest run and its result
type App struct {
	cfg      config.Config
	symbol   string
	feed     core.Feeder
	log      logger.Logger
	storage  core.TradeStorage
	notifier core.Notifier
	progress bool

	result *backtest.Result
}

// Option configures an App
type Option func(*App)

// WithLogger replaces the default console logger
func WithLogger(log logger.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithStorage persists trades and equity samples during the run
func WithStorage(storage core.TradeStorage) Option {
	return func(a *App) { a.storage = storage }
}

// WithNotifier forwards trade events to the given notifier
func WithNotifier(notifier core.Notifier) Option {
	return func(a *App) { a.notifier = notifier }
}

// WithProgress renders a progress bar during the run
func WithProgress() Option {
	return func(a *App) { a.progress = true }
}

// New creates an application for one symbol over the given feed
func New(cfg config.Config, symbol string, feed core.Feeder, options ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{
		cfg:    cfg,
		symbol: symbol,
		feed:   feed,
	}

	for _, option := range options {
		option(app)
	}

	if app.log == nil {
		zl, err := zerologger.NewZerolog(cfg.System.LogLevel, time.DateTime, true, false)
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
		app.log = zerologger.NewAdapter(zl)
	}

	return app, nil
}

// Run executes the backtest and keeps the result for Summary and SaveReport
func (a *App) Run(ctx context.Context) (*backtest.Result, error) {
	options := make([]backtest.Option, 0, 3)
	if a.storage != nil {
		options = append(options, backtest.WithStorage(a.storage))
	}
	if a.notifier != nil {
		options = append(options, backtest.WithNotifier(a.notifier))
	}
	if a.progress {
		options = append(options, backtest.WithProgress())
	}

	bt := backtest.NewBacktester(a.cfg, a.symbol, a.feed, a.log, options...)

	result, err := bt.Run(ctx)
	if err != nil {
		return nil, err
	}

	a.result = result
	return result, nil
}

// Summary prints the result tables, the profit histogram and bootstrap
// confidence intervals of the per-trade measures
func (a *App) Summary() {
	if a.result == nil {
		a.log.Warn("No result to summarize, run the backtest first")
		return
	}

	backtest.WriteSummary(os.Stdout, a.result)

	profits := backtest.Profits(a.result.Trades)
	if len(profits) < 2 {
		return
	}

	fmt.Println("------ CONFIDENCE INTERVAL (95%) -------")
	meanInterval := metric.Bootstrap(profits, metric.Mean, bootstrapSamples, 0.95)
	payoffInterval := metric.Bootstrap(profits, metric.Payoff, bootstrapSamples, 0.95)
	profitFactorInterval := metric.Bootstrap(profits, metric.ProfitFactor, bootstrapSamples, 0.95)

	fmt.Printf("AVG PROFIT:  %.2f (%.2f ~ %.2f)\n",
		meanInterval.Mean, meanInterval.Lower, meanInterval.Upper)
	fmt.Printf("PAYOFF:      %.2f (%.2f ~ %.2f)\n",
		payoffInterval.Mean, payoffInterval.Lower, payoffInterval.Upper)
	fmt.Printf("PROF.FACTOR: %.2f (%.2f ~ %.2f)\n",
		profitFactorInterval.Mean, profitFactorInterval.Lower, profitFactorInterval.Upper)
	fmt.Println()
}

// SaveReport writes the run artifacts into the output directory
func (a *App) SaveReport(outputDir string) error {
	if a.result == nil {
		return fmt.Errorf("no result to save, run the backtest first")
	}
	return backtest.SaveReport(outputDir, a.result)
}
