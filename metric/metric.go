// Package metric provides per-trade performance measures and bootstrap
// confidence intervals over them
package metric

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Measure maps a series of per-trade profits to a single figure
type Measure func(profits []float64) float64

// Mean returns the arithmetic mean of the profits
func Mean(profits []float64) float64 {
	if len(profits) == 0 {
		return 0
	}
	return stat.Mean(profits, nil)
}

// WinRate returns the fraction of non-negative profits
func WinRate(profits []float64) float64 {
	if len(profits) == 0 {
		return 0
	}

	wins := 0
	for _, p := range profits {
		if p >= 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(profits))
}

// Payoff returns the ratio of the average win to the average loss. A
// series without losses caps at 10.
func Payoff(profits []float64) float64 {
	wins, losses := partition(profits)
	if len(losses) == 0 {
		return 10
	}

	avgLoss := stat.Mean(losses, nil)
	if avgLoss == 0 {
		return 10
	}

	return math.Abs(stat.Mean(wins, nil) / avgLoss)
}

// ProfitFactor returns the ratio of summed wins to summed losses. A
// series without losses caps at 10.
func ProfitFactor(profits []float64) float64 {
	var totalWins, totalLosses float64
	for _, p := range profits {
		if p >= 0 {
			totalWins += p
		} else {
			totalLosses += p
		}
	}

	if totalLosses == 0 {
		return 10
	}
	return math.Abs(totalWins / totalLosses)
}

func partition(profits []float64) (wins, losses []float64) {
	for _, p := range profits {
		if p >= 0 {
			wins = append(wins, p)
		} else {
			losses = append(losses, math.Abs(p))
		}
	}
	return wins, losses
}
