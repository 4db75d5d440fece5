// Package feed provides candle data sources for the simulator
package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/xhit/go-str2duration/v2"

	"github.com/quantfx/pipstride/core"
)

// defaultHeaderMap defines the column order assumed when the file carries
// no header row
var defaultHeaderMap = map[string]int{
	"time": 0, "open": 1, "high": 2, "low": 3, "close": 4, "volume": 5,
}

// timeLayouts lists the accepted textual timestamp formats, tried in order
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006.01.02 15:04",
	"2006-01-02 15:04",
}

// SymbolFeed describes one CSV file of bars for a symbol
type SymbolFeed struct {
	Symbol    string
	File      string
	Timeframe string
}

// CSVFeed loads bar history from CSV files and serves it per symbol and
// timeframe. Missing timeframes are resampled from the finest one loaded.
type CSVFeed struct {
	feeds   map[string]SymbolFeed
	candles map[string][]core.Candle
}

// NewCSVFeed creates a feed from the given files and resamples each symbol
// to every requested target timeframe that was not loaded directly
func NewCSVFeed(targetTimeframes []string, feeds ...SymbolFeed) (*CSVFeed, error) {
	f := &CSVFeed{
		feeds:   make(map[string]SymbolFeed),
		candles: make(map[string][]core.Candle),
	}

	for _, sf := range feeds {
		f.feeds[sf.Symbol] = sf

		candles, err := readCandlesFromCSV(sf)
		if err != nil {
			return nil, err
		}

		f.candles[feedKey(sf.Symbol, sf.Timeframe)] = candles

		for _, target := range targetTimeframes {
			if _, ok := f.candles[feedKey(sf.Symbol, target)]; ok {
				continue
			}
			if err := f.resample(sf.Symbol, sf.Timeframe, target); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

// Between keeps only candles inside [start, end] for every loaded series
func (f *CSVFeed) Between(start, end time.Time) *CSVFeed {
	for key, candles := range f.candles {
		f.candles[key] = lo.Filter(candles, func(c core.Candle, _ int) bool {
			return !c.Time.Before(start) && !c.Time.After(end)
		})
	}
	return f
}

// Candles returns every candle loaded for the symbol and timeframe
func (f *CSVFeed) Candles(_ context.Context, symbol, timeframe string) ([]core.Candle, error) {
	candles, ok := f.candles[feedKey(symbol, timeframe)]
	if !ok || len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s", core.ErrInsufficientData, symbol, timeframe)
	}
	return candles, nil
}

// CandlesByPeriod returns candles whose open time falls inside [start, end]
func (f *CSVFeed) CandlesByPeriod(_ context.Context, symbol, timeframe string, start, end time.Time) ([]core.Candle, error) {
	candles, err := f.Candles(context.Background(), symbol, timeframe)
	if err != nil {
		return nil, err
	}

	return lo.Filter(candles, func(c core.Candle, _ int) bool {
		return !c.Time.Before(start) && !c.Time.After(end)
	}), nil
}

// ---------------------
// CSV parsing
// ---------------------

func readCandlesFromCSV(sf SymbolFeed) ([]core.Candle, error) {
	file, err := os.Open(sf.File)
	if err != nil {
		return nil, fmt.Errorf("open feed file: %w", err)
	}
	defer file.Close()

	lines, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read feed file %s: %w", sf.File, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", core.ErrInsufficientData, sf.File)
	}

	headerMap, hasHeader := parseHeaders(lines[0])
	if hasHeader {
		lines = lines[1:]
	}

	candles := make([]core.Candle, 0, len(lines))
	for i, line := range lines {
		candle, err := parseCandleFromLine(line, headerMap, sf.Symbol)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", sf.File, i+1, err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// parseHeaders returns the column index map, detecting whether the first
// row is a header or already data
func parseHeaders(row []string) (map[string]int, bool) {
	if _, err := parseTime(row[0]); err == nil {
		return defaultHeaderMap, false
	}

	headerMap := make(map[string]int, len(row))
	for index, name := range row {
		headerMap[name] = index
	}
	return headerMap, true
}

func parseCandleFromLine(line []string, headerMap map[string]int, symbol string) (core.Candle, error) {
	t, err := parseTime(line[headerMap["time"]])
	if err != nil {
		return core.Candle{}, err
	}

	candle := core.Candle{Symbol: symbol, Time: t}

	if candle.Open, err = strconv.ParseFloat(line[headerMap["open"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.High, err = strconv.ParseFloat(line[headerMap["high"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Low, err = strconv.ParseFloat(line[headerMap["low"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Close, err = strconv.ParseFloat(line[headerMap["close"]], 64); err != nil {
		return core.Candle{}, err
	}

	// Volume is optional; tick data exports sometimes omit it
	if idx, ok := headerMap["volume"]; ok && idx < len(line) {
		if candle.Volume, err = strconv.ParseFloat(line[idx], 64); err != nil {
			return core.Candle{}, err
		}
	}

	return candle, nil
}

// parseTime accepts either a unix timestamp in seconds or one of the
// known textual layouts, always interpreted as UTC
func parseTime(value string) (time.Time, error) {
	if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(ts, 0).UTC(), nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// ---------------------
// Resampling
// ---------------------

func (f *CSVFeed) resample(symbol, sourceTimeframe, targetTimeframe string) error {
	source := f.candles[feedKey(symbol, sourceTimeframe)]
	if len(source) == 0 {
		return nil
	}

	startIdx := 0
	for i := range source {
		isFirst, err := isFirstCandlePeriod(source[i].Time, sourceTimeframe, targetTimeframe)
		if err != nil {
			return err
		}
		if isFirst {
			startIdx = i
			break
		}
	}

	target, err := resampleCandles(source[startIdx:], sourceTimeframe, targetTimeframe)
	if err != nil {
		return err
	}

	f.candles[feedKey(symbol, targetTimeframe)] = target
	return nil
}

func resampleCandles(source []core.Candle, sourceTimeframe, targetTimeframe string) ([]core.Candle, error) {
	target := make([]core.Candle, 0, len(source)/4)

	var current core.Candle
	inPeriod := false

	for _, candle := range source {
		if !inPeriod {
			current = candle
			inPeriod = true
		} else {
			current.High = math.Max(current.High, candle.High)
			current.Low = math.Min(current.Low, candle.Low)
			current.Close = candle.Close
			current.Volume += candle.Volume
		}

		isLast, err := isLastCandlePeriod(candle.Time, sourceTimeframe, targetTimeframe)
		if err != nil {
			return nil, err
		}
		if isLast {
			target = append(target, current)
			inPeriod = false
		}
	}

	// Trailing partial periods are dropped: an incomplete bar would look
	// complete to the indicators
	return target, nil
}

func isFirstCandlePeriod(t time.Time, sourceTimeframe, targetTimeframe string) (bool, error) {
	if sourceTimeframe == targetTimeframe {
		return true, nil
	}
	return isTimeOnPeriodBoundary(t, targetTimeframe)
}

func isLastCandlePeriod(t time.Time, sourceTimeframe, targetTimeframe string) (bool, error) {
	if sourceTimeframe == targetTimeframe {
		return true, nil
	}

	sourceDuration, err := str2duration.ParseDuration(sourceTimeframe)
	if err != nil {
		return false, fmt.Errorf("%w: %s", core.ErrInvalidTimeframe, sourceTimeframe)
	}

	return isTimeOnPeriodBoundary(t.Add(sourceDuration).UTC(), targetTimeframe)
}

func isTimeOnPeriodBoundary(t time.Time, timeframe string) (bool, error) {
	switch timeframe {
	case "1m":
		return t.Second() == 0, nil
	case "5m":
		return t.Minute()%5 == 0 && t.Second() == 0, nil
	case "15m":
		return t.Minute()%15 == 0 && t.Second() == 0, nil
	case "30m":
		return t.Minute()%30 == 0 && t.Second() == 0, nil
	case "1h":
		return t.Minute() == 0 && t.Second() == 0, nil
	case "4h":
		return t.Hour()%4 == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "1d":
		return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0, nil
	default:
		return false, fmt.Errorf("%w: %s", core.ErrInvalidTimeframe, timeframe)
	}
}

func feedKey(symbol, timeframe string) string {
	return fmt.Sprintf("%s--%s", symbol, timeframe)
}
