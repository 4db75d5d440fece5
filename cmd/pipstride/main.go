package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfx/pipstride"
	"github.com/quantfx/pipstride/bridge"
	"github.com/quantfx/pipstride/config"
	"github.com/quantfx/pipstride/core"
	"github.com/quantfx/pipstride/feed"
	"github.com/quantfx/pipstride/logger"
	zerologger "github.com/quantfx/pipstride/logger/zerolog"
	"github.com/quantfx/pipstride/notification"
	"github.com/quantfx/pipstride/storage"
)

const dateLayout = "2006-01-02"

// Command line flags
var (
	symbol     string
	m1File     string
	m5File     string
	m15File    string
	startDate  string
	endDate    string
	balance    float64
	configFile string
	outputDir  string
	dbFile     string
	dbBackend  string
	progress   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "pipstride",
		Short:   "Multi-timeframe forex scalping backtester",
		Version: "1.0.0",
	}

	rootCmd.AddCommand(buildBacktestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildBacktestCmd() *cobra.Command {
	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a backtest over CSV candle history",
		RunE:  runBacktest,
	}

	backtestCmd.Flags().StringVarP(&symbol, "symbol", "p", "EURUSD", "Symbol (e.g. EURUSD)")
	backtestCmd.Flags().StringVar(&m1File, "m1", "", "1m candles CSV file")
	backtestCmd.Flags().StringVar(&m5File, "m5", "", "5m candles CSV file (resampled from 1m when omitted)")
	backtestCmd.Flags().StringVar(&m15File, "m15", "", "15m candles CSV file (resampled from 1m when omitted)")
	backtestCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2024-01-01)")
	backtestCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2024-06-30)")
	backtestCmd.Flags().Float64VarP(&balance, "balance", "b", 0, "Initial balance override")
	backtestCmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	backtestCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for report files")
	backtestCmd.Flags().StringVar(&dbFile, "db", "", "Database file for trade persistence")
	backtestCmd.Flags().StringVar(&dbBackend, "db-backend", "buntdb", "Persistence backend: buntdb or sqlite")
	backtestCmd.Flags().BoolVar(&progress, "progress", true, "Render a progress bar")

	backtestCmd.MarkFlagRequired("m1")

	return backtestCmd
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	candleFeed, err := buildFeed()
	if err != nil {
		return err
	}

	options, closeStorage, err := buildOptions(cfg, log)
	if err != nil {
		return err
	}
	defer closeStorage()

	app, err := pipstride.New(cfg, symbol, candleFeed, options...)
	if err != nil {
		return err
	}

	if _, err := app.Run(cmd.Context()); err != nil {
		return err
	}

	app.Summary()

	if outputDir != "" {
		return app.SaveReport(outputDir)
	}
	return nil
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return config.Config{}, err
		}
	}
	if balance > 0 {
		cfg.Trading.InitialBalance = balance
	}
	return cfg, nil
}

func buildFeed() (core.Feeder, error) {
	feeds := []feed.SymbolFeed{{Symbol: symbol, File: m1File, Timeframe: "1m"}}
	if m5File != "" {
		feeds = append(feeds, feed.SymbolFeed{Symbol: symbol, File: m5File, Timeframe: "5m"})
	}
	if m15File != "" {
		feeds = append(feeds, feed.SymbolFeed{Symbol: symbol, File: m15File, Timeframe: "15m"})
	}

	candleFeed, err := feed.NewCSVFeed([]string{"1m", "5m", "15m"}, feeds...)
	if err != nil {
		return nil, err
	}

	if startDate != "" || endDate != "" {
		start, end, err := parseDateRange()
		if err != nil {
			return nil, err
		}
		candleFeed.Between(start, end)
	}

	return candleFeed, nil
}

func parseDateRange() (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

	if startDate != "" {
		var err error
		if start, err = time.ParseInLocation(dateLayout, startDate, time.UTC); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse start date: %w", err)
		}
	}
	if endDate != "" {
		parsed, err := time.ParseInLocation(dateLayout, endDate, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse end date: %w", err)
		}
		// the end date is inclusive
		end = parsed.AddDate(0, 0, 1).Add(-time.Second)
	}

	return start, end, nil
}

func buildLogger(cfg config.Config) (logger.Logger, error) {
	zl, err := zerologger.NewZerolog(cfg.System.LogLevel, time.DateTime, true, false)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return zerologger.NewAdapter(zl), nil
}

func buildNotifiers(cfg config.Config, log logger.Logger) (core.Notifier, error) {
	var notifiers core.MultiNotifier

	if cfg.System.TelegramToken != "" {
		telegram, err := notification.NewTelegram(cfg.System.TelegramToken, cfg.System.TelegramUser, log)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, telegram)
	}

	if cfg.System.BridgeDir != "" {
		b, err := bridge.New(cfg.System.BridgeDir)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, bridge.NewNotifier(b, log))
	}

	switch len(notifiers) {
	case 0:
		return nil, nil
	case 1:
		return notifiers[0], nil
	default:
		return notifiers, nil
	}
}

func buildOptions(cfg config.Config, log logger.Logger) ([]pipstride.Option, func(), error) {
	options := []pipstride.Option{pipstride.WithLogger(log)}
	closeStorage := func() {}

	if progress {
		options = append(options, pipstride.WithProgress())
	}

	notifier, err := buildNotifiers(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if notifier != nil {
		options = append(options, pipstride.WithNotifier(notifier))
	}

	if dbFile != "" {
		switch dbBackend {
		case "buntdb":
			db, err := storage.NewFromFile(dbFile)
			if err != nil {
				return nil, nil, err
			}
			options = append(options, pipstride.WithStorage(db))
			closeStorage = func() { db.Close() }
		case "sqlite":
			db, err := storage.NewFromSQLite(dbFile, storage.DefaultConfig())
			if err != nil {
				return nil, nil, err
			}
			options = append(options, pipstride.WithStorage(db))
			closeStorage = func() { db.Close() }
		default:
			return nil, nil, fmt.Errorf("unknown database backend: %q", dbBackend)
		}
	}

	return options, closeStorage, nil
}
