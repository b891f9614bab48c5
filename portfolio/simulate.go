// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package portfolio

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/dataframe"
)

// Result of simulating a single portfolio
type Result struct {
	Name    string
	Metrics Metrics

	// History is a single column (common.ValueCol) dataframe of portfolio value
	History *dataframe.DataFrame

	// Holdings are the share counts in effect after the last date
	Holdings map[string]float64
}

// Align restricts prices to the tickers of cfg and removes every date where any
// of them is missing a price. prices is not modified.
func Align(cfg *Config, prices *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	aligned, err := prices.Select(cfg.Tickers...)
	if err != nil {
		if errors.Is(err, dataframe.ErrColumnNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, err.Error())
		}
		return nil, err
	}

	aligned.DropNaN()
	if aligned.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientData, cfg.Name)
	}

	return aligned, nil
}

// Simulate walks the aligned price table of cfg day by day and returns the
// resulting value series and its metrics. On each rebalance date the portfolio
// is valued with that day's prices and the share counts are reset to the
// target weights using the same prices. benchmark is an optional value series
// used for beta and alpha.
func Simulate(cfg *Config, prices *dataframe.DataFrame, initialAmount float64, benchmark *dataframe.DataFrame, opts MetricOptions) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !(initialAmount > 0) || math.IsInf(initialAmount, 0) {
		return nil, fmt.Errorf("%w: %f", ErrInvalidInitialAmt, initialAmount)
	}

	opts = opts.withDefaults()
	subLog := log.With().Str("Portfolio", cfg.Name).Logger()

	aligned, err := Align(cfg, prices)
	if err != nil {
		subLog.Debug().Err(err).Msg("could not align price table")
		return nil, err
	}

	weights := cfg.fractions()
	shares := make([]float64, len(cfg.Tickers))

	isRebalance := make([]bool, aligned.Len())
	for _, idx := range rebalanceIndices(aligned.Dates, cfg.RebalancePeriod) {
		isRebalance[idx] = true
	}

	allocate := func(value float64, rowIdx int) {
		for colIdx := range shares {
			shares[colIdx] = value * weights[colIdx] / priceFloor(aligned.Vals[colIdx][rowIdx], opts.Epsilon)
		}
	}

	history := &dataframe.DataFrame{
		Dates:    make([]time.Time, 0, aligned.Len()),
		ColNames: []string{common.ValueCol},
		Vals:     [][]float64{make([]float64, 0, aligned.Len())},
	}

	allocate(initialAmount, 0)
	history.Dates = append(history.Dates, aligned.Dates[0])
	history.Vals[0] = append(history.Vals[0], initialAmount)

	rebalanceCnt := 0
	for rowIdx := 1; rowIdx < aligned.Len(); rowIdx++ {
		value := 0.0
		for colIdx := range shares {
			value += shares[colIdx] * aligned.Vals[colIdx][rowIdx]
		}

		if !math.IsNaN(value) && !math.IsInf(value, 0) {
			history.Dates = append(history.Dates, aligned.Dates[rowIdx])
			history.Vals[0] = append(history.Vals[0], value)
		}

		if isRebalance[rowIdx] {
			allocate(value, rowIdx)
			rebalanceCnt++
		}
	}

	subLog.Debug().
		Int("NumDays", history.Len()).
		Int("NumRebalances", rebalanceCnt).
		Str("RebalancePeriod", cfg.RebalancePeriod.String()).
		Msg("simulated portfolio")

	holdings := make(map[string]float64, len(cfg.Tickers))
	for colIdx, ticker := range cfg.Tickers {
		holdings[ticker] = shares[colIdx]
	}

	return &Result{
		Name:     cfg.Name,
		Metrics:  CalculateMetrics(history, benchmark, opts),
		History:  history,
		Holdings: holdings,
	}, nil
}

// priceFloor replaces prices that cannot be divided by with epsilon
func priceFloor(price, epsilon float64) float64 {
	if math.IsNaN(price) || price <= 0 {
		return epsilon
	}
	return price
}
