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
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/dataframe"
)

const (
	DefaultEpsilon        = 1e-9
	DefaultPeriodsPerYear = 252
	DefaultDaysPerYear    = 365.25
	MonthsPerYear         = 12
)

// MetricOptions controls the metric computations
type MetricOptions struct {
	RiskFreeRate   float64
	Epsilon        float64
	PeriodsPerYear int
	DaysPerYear    float64

	// Frequency of the returns used for volatility, Sharpe, Sortino and
	// beta; dataframe.Monthly samples the last value of each month and
	// annualizes with 12 periods per year
	Frequency dataframe.Frequency
}

// DefaultMetricOptions returns daily options with a zero risk free rate
func DefaultMetricOptions() MetricOptions {
	return MetricOptions{
		Epsilon:        DefaultEpsilon,
		PeriodsPerYear: DefaultPeriodsPerYear,
		DaysPerYear:    DefaultDaysPerYear,
		Frequency:      dataframe.Daily,
	}
}

func (opts MetricOptions) withDefaults() MetricOptions {
	if opts.Epsilon <= 0 {
		opts.Epsilon = DefaultEpsilon
	}
	if opts.PeriodsPerYear <= 0 {
		opts.PeriodsPerYear = DefaultPeriodsPerYear
	}
	if opts.DaysPerYear <= 0 {
		opts.DaysPerYear = DefaultDaysPerYear
	}
	if opts.Frequency == "" {
		opts.Frequency = dataframe.Daily
	}
	if opts.Frequency == dataframe.Monthly {
		opts.PeriodsPerYear = MonthsPerYear
	}
	return opts
}

// Metrics summarizes the risk and return of a value series
type Metrics struct {
	CAGR         float64  `json:"cagr"`
	MaxDrawDown  float64  `json:"mdd"`
	Volatility   float64  `json:"volatility"`
	SharpeRatio  float64  `json:"sharpe_ratio"`
	SortinoRatio float64  `json:"sortino_ratio"`
	Beta         *float64 `json:"beta"`
	Alpha        *float64 `json:"alpha"`
}

// CalculateMetrics computes the metrics of the first column of series. When
// benchmark (a value series) is not nil beta and alpha are computed relative
// to it. Neither input is modified.
func CalculateMetrics(series *dataframe.DataFrame, benchmark *dataframe.DataFrame, opts MetricOptions) Metrics {
	opts = opts.withDefaults()

	values := finiteSeries(series)
	if values.Len() < 2 {
		return Metrics{}
	}

	vals := values.Vals[0]
	startVal := vals[0]
	endVal := vals[len(vals)-1]

	if startVal < opts.Epsilon {
		return Metrics{MaxDrawDown: -1}
	}

	years := elapsedYears(values.Start(), values.End(), opts.DaysPerYear)

	m := Metrics{
		CAGR:        cagr(startVal, endVal, years),
		MaxDrawDown: maxDrawDown(vals, opts.Epsilon),
	}

	sampled, err := values.Frequency(opts.Frequency)
	if err != nil {
		log.Warn().Err(err).Msg("could not resample value series; ratios set to 0")
		return Normalize(m)
	}

	returns := sampled.PctChange()
	if returns.Len() < 2 {
		return Normalize(m)
	}

	excess := m.CAGR - opts.RiskFreeRate
	m.Volatility = stat.StdDev(returns.Vals[0], nil) * math.Sqrt(float64(opts.PeriodsPerYear))

	if m.Volatility > opts.Epsilon {
		m.SharpeRatio = excess / (m.Volatility + opts.Epsilon)
	}

	m.SortinoRatio = sortino(returns.Vals[0], excess, opts)

	if benchmark != nil {
		m.Beta, m.Alpha = betaAlpha(values, returns, benchmark, m.CAGR, years, opts)
	}

	return Normalize(m)
}

// finiteSeries copies the first column of df keeping only finite values
func finiteSeries(df *dataframe.DataFrame) *dataframe.DataFrame {
	res := &dataframe.DataFrame{
		Dates:    []time.Time{},
		ColNames: []string{common.ValueCol},
		Vals:     [][]float64{{}},
	}

	if df == nil || len(df.Vals) == 0 {
		return res
	}

	for idx, val := range df.Vals[0] {
		if !math.IsNaN(val) && !math.IsInf(val, 0) {
			res.Dates = append(res.Dates, df.Dates[idx])
			res.Vals[0] = append(res.Vals[0], val)
		}
	}

	return res
}

func elapsedYears(start, end time.Time, daysPerYear float64) float64 {
	days := end.Sub(start).Hours() / 24.0
	return days / daysPerYear
}

func cagr(startVal, endVal, years float64) float64 {
	if years <= 0 {
		return 0
	}
	return math.Pow(endVal/startVal, 1.0/years) - 1.0
}

// maxDrawDown returns the most negative decline from a running peak
func maxDrawDown(vals []float64, epsilon float64) float64 {
	peak := math.Inf(-1)
	mdd := 0.0
	for _, v := range vals {
		peak = math.Max(peak, v)
		dd := (v - peak) / (peak + epsilon)
		if dd < mdd {
			mdd = dd
		}
	}
	return mdd
}

// sortino divides excess by the annualized root mean square of returns below
// the periodic risk free rate
func sortino(returns []float64, excess float64, opts MetricOptions) float64 {
	periodicRf := math.Pow(1.0+opts.RiskFreeRate, 1.0/float64(opts.PeriodsPerYear)) - 1.0

	sumSq := 0.0
	for _, r := range returns {
		d := math.Min(r-periodicRf, 0)
		sumSq += d * d
	}
	downside := math.Sqrt(sumSq/float64(len(returns))) * math.Sqrt(float64(opts.PeriodsPerYear))

	if downside <= opts.Epsilon {
		if excess > 0 {
			return math.Inf(1)
		}
		return 0
	}

	return excess / downside
}

// betaAlpha computes beta over the dates shared by the portfolio returns and
// the benchmark returns; each return series is built from its own values
// before the join. Alpha uses the benchmark growth between the first and last
// dates both value series share.
func betaAlpha(values, returns, benchmark *dataframe.DataFrame, portfolioCAGR, years float64, opts MetricOptions) (*float64, *float64) {
	bench := finiteSeries(benchmark)
	sampledBench, err := bench.Frequency(opts.Frequency)
	if err != nil {
		return nil, nil
	}

	aligned := returns.InnerJoin(sampledBench.PctChange())
	if aligned.Len() < 2 {
		return nil, nil
	}

	rp := aligned.Vals[0]
	rb := aligned.Vals[1]

	variance := stat.Variance(rb, nil)
	if !(variance > opts.Epsilon) {
		return nil, nil
	}

	beta := stat.Covariance(rp, rb, nil) / variance

	joined := values.InnerJoin(bench)
	benchVals := joined.Vals[1]
	benchCAGR := cagr(benchVals[0], benchVals[len(benchVals)-1], years)
	alpha := portfolioCAGR - (opts.RiskFreeRate + beta*(benchCAGR-opts.RiskFreeRate))

	return &beta, &alpha
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Normalize maps every non-finite field to 0 (or nil for beta and alpha)
func Normalize(m Metrics) Metrics {
	for _, field := range []*float64{&m.CAGR, &m.MaxDrawDown, &m.Volatility, &m.SharpeRatio, &m.SortinoRatio} {
		if !isFinite(*field) {
			*field = 0
		}
	}

	if m.Beta != nil && !isFinite(*m.Beta) {
		m.Beta = nil
	}

	if m.Alpha != nil && !isFinite(*m.Alpha) {
		m.Alpha = nil
	}

	if m.Beta == nil {
		m.Alpha = nil
	}

	return m
}
