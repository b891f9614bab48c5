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

package portfolio_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/stat"

	"github.com/penny-vault/pvbt/dataframe"
	"github.com/penny-vault/pvbt/portfolio"
)

var _ = Describe("Metrics", func() {
	var (
		opts portfolio.MetricOptions
	)

	BeforeEach(func() {
		opts = portfolio.DefaultMetricOptions()
	})

	It("returns zero metrics for a single point", func() {
		m := portfolio.CalculateMetrics(valueSeries([]time.Time{day(2021, 1, 4)}, []float64{100}), nil, opts)
		Expect(m).To(Equal(portfolio.Metrics{}))
	})

	It("returns zero metrics for an empty series", func() {
		m := portfolio.CalculateMetrics(valueSeries([]time.Time{}, []float64{}), nil, opts)
		Expect(m).To(Equal(portfolio.Metrics{}))
	})

	It("treats a near zero start as a total loss", func() {
		series := valueSeries([]time.Time{day(2021, 1, 4), day(2021, 1, 5), day(2021, 1, 6)}, []float64{0, 10, 20})
		m := portfolio.CalculateMetrics(series, series, opts)
		Expect(m.MaxDrawDown).To(Equal(-1.0))
		Expect(m.CAGR).To(Equal(0.0))
		Expect(m.Volatility).To(Equal(0.0))
		Expect(m.SharpeRatio).To(Equal(0.0))
		Expect(m.SortinoRatio).To(Equal(0.0))
		Expect(m.Beta).To(BeNil())
		Expect(m.Alpha).To(BeNil())
	})

	It("computes CAGR and drawdown but no ratios with a single return", func() {
		series := valueSeries([]time.Time{day(2020, 1, 1), day(2022, 1, 1)}, []float64{100, 121})
		m := portfolio.CalculateMetrics(series, nil, opts)

		years := 731.0 / 365.25
		Expect(m.CAGR).To(BeNumerically("~", math.Pow(1.21, 1/years)-1, 1e-12))
		Expect(m.MaxDrawDown).To(Equal(0.0))
		Expect(m.Volatility).To(Equal(0.0))
		Expect(m.SharpeRatio).To(Equal(0.0))
	})

	It("measures the deepest decline from a running peak", func() {
		series := valueSeries(
			[]time.Time{day(2021, 1, 4), day(2021, 1, 5), day(2021, 1, 6), day(2021, 1, 7), day(2021, 1, 8)},
			[]float64{100, 120, 90, 130, 110},
		)
		m := portfolio.CalculateMetrics(series, nil, opts)
		Expect(m.MaxDrawDown).To(BeNumerically("~", -0.25, 1e-9))
	})

	It("annualizes volatility and downside deviation", func() {
		series := valueSeries(
			[]time.Time{day(2020, 1, 6), day(2020, 1, 7), day(2020, 1, 8), day(2020, 1, 9)},
			[]float64{100, 110, 99, 108.9},
		)
		m := portfolio.CalculateMetrics(series, nil, opts)

		// returns are [0.1, -0.1, 0.1]
		expectedVol := math.Sqrt((2*math.Pow(0.2/3, 2)+math.Pow(0.4/3, 2))/2) * math.Sqrt(252)
		Expect(m.Volatility).To(BeNumerically("~", expectedVol, 1e-9))

		downside := math.Sqrt(0.01/3) * math.Sqrt(252)
		Expect(m.SortinoRatio).To(BeNumerically("~", m.CAGR/downside, math.Abs(m.CAGR/downside)*1e-9))
		Expect(m.SharpeRatio).To(BeNumerically("~", m.CAGR/(expectedVol+1e-9), math.Abs(m.SharpeRatio)*1e-9))
	})

	It("normalizes an unbounded Sortino ratio to zero", func() {
		dates := tradeDays(day(2021, 1, 4), day(2021, 1, 29))
		vals := make([]float64, len(dates))
		for idx := range vals {
			vals[idx] = 100 * math.Pow(1.01, float64(idx))
		}
		m := portfolio.CalculateMetrics(valueSeries(dates, vals), nil, opts)
		Expect(m.CAGR).To(BeNumerically(">", 0))
		Expect(m.SharpeRatio).To(Equal(0.0))
		Expect(m.SortinoRatio).To(Equal(0.0))
	})

	It("subtracts the risk free rate from the excess return", func() {
		series := valueSeries(
			[]time.Time{day(2020, 1, 6), day(2020, 1, 7), day(2020, 1, 8), day(2020, 1, 9)},
			[]float64{100, 110, 99, 108.9},
		)
		base := portfolio.CalculateMetrics(series, nil, opts)
		opts.RiskFreeRate = 0.5
		withRf := portfolio.CalculateMetrics(series, nil, opts)
		Expect(withRf.CAGR).To(Equal(base.CAGR))
		Expect(withRf.SharpeRatio).To(BeNumerically("<", base.SharpeRatio))
	})

	It("is idempotent", func() {
		dates := tradeDays(day(2021, 1, 4), day(2021, 12, 31))
		vals := make([]float64, len(dates))
		for idx := range vals {
			vals[idx] = 100 + 5*math.Sin(float64(idx)/3) + float64(idx)*0.05
		}
		series := valueSeries(dates, vals)
		before := series.Copy()

		first := portfolio.CalculateMetrics(series, nil, opts)
		second := portfolio.CalculateMetrics(series, nil, opts)
		Expect(second).To(Equal(first))
		Expect(series).To(Equal(before))
	})

	Context("with a benchmark", func() {
		var (
			dates []time.Time
			bench *dataframe.DataFrame
		)

		BeforeEach(func() {
			dates = tradeDays(day(2021, 1, 4), day(2021, 12, 31))
			vals := make([]float64, len(dates))
			vals[0] = 100
			for idx := 1; idx < len(vals); idx++ {
				vals[idx] = vals[idx-1] * (1 + 0.01*math.Sin(float64(idx)))
			}
			bench = valueSeries(dates, vals)
		})

		It("has a beta of one and no alpha against itself", func() {
			m := portfolio.CalculateMetrics(bench, bench, opts)
			Expect(m.Beta).ToNot(BeNil())
			Expect(*m.Beta).To(BeNumerically("~", 1.0, 1e-9))
			Expect(m.Alpha).ToNot(BeNil())
			Expect(*m.Alpha).To(BeNumerically("~", 0.0, 1e-9))
		})

		It("measures leverage as beta", func() {
			vals := make([]float64, len(dates))
			vals[0] = 100
			for idx := 1; idx < len(vals); idx++ {
				vals[idx] = vals[idx-1] * (1 + 0.02*math.Sin(float64(idx)))
			}
			levered := valueSeries(dates, vals)

			m := portfolio.CalculateMetrics(levered, bench, opts)
			benchCAGR := portfolio.CalculateMetrics(bench, nil, opts).CAGR
			Expect(*m.Beta).To(BeNumerically("~", 2.0, 1e-6))
			Expect(*m.Alpha).To(BeNumerically("~", m.CAGR-(*m.Beta)*benchCAGR, 1e-9))
		})

		It("has no beta with fewer than two overlapping returns", func() {
			other := valueSeries([]time.Time{dates[0], day(2022, 6, 1)}, []float64{100, 101})
			m := portfolio.CalculateMetrics(bench, other, opts)
			Expect(m.Beta).To(BeNil())
			Expect(m.Alpha).To(BeNil())
		})

		It("pairs returns computed on each series before aligning them", func() {
			gapDates := tradeDays(day(2021, 1, 4), day(2021, 1, 11))
			benchVals := []float64{100, 102, 97, 105, 101, 108}
			portVals := []float64{100, 102, math.NaN(), 105, 101, 108}

			// the portfolio return on the 7th spans the gap; the benchmark's does not
			rp := []float64{102.0/100 - 1, 105.0/102 - 1, 101.0/105 - 1, 108.0/101 - 1}
			rb := []float64{102.0/100 - 1, 105.0/97 - 1, 101.0/105 - 1, 108.0/101 - 1}
			expected := stat.Covariance(rp, rb, nil) / stat.Variance(rb, nil)

			m := portfolio.CalculateMetrics(valueSeries(gapDates, portVals), valueSeries(gapDates, benchVals), opts)
			Expect(m.Beta).ToNot(BeNil())
			Expect(*m.Beta).To(BeNumerically("~", expected, 1e-12))
			Expect(*m.Beta).ToNot(BeNumerically("~", 1.0, 1e-3))
		})

		It("has no beta against a flat benchmark", func() {
			flat := make([]float64, len(dates))
			for idx := range flat {
				flat[idx] = 50
			}
			m := portfolio.CalculateMetrics(bench, valueSeries(dates, flat), opts)
			Expect(m.Beta).To(BeNil())
			Expect(m.Alpha).To(BeNil())
		})
	})

	It("computes ratios from month end values with monthly frequency", func() {
		dates := tradeDays(day(2020, 1, 1), day(2021, 12, 31))
		vals := make([]float64, len(dates))
		for idx, dt := range dates {
			monthIdx := (dt.Year()-2020)*12 + int(dt.Month()) - 1
			vals[idx] = 100 * math.Pow(1.01, float64(monthIdx))

			monthEnd := idx == len(dates)-1 || dates[idx+1].Month() != dt.Month()
			if !monthEnd {
				vals[idx] *= 1 + 0.03*math.Pow(-1, float64(idx))
			}
		}
		series := valueSeries(dates, vals)

		daily := portfolio.CalculateMetrics(series, nil, opts)
		Expect(daily.Volatility).To(BeNumerically(">", 0.1))

		opts.Frequency = dataframe.Monthly
		monthly := portfolio.CalculateMetrics(series, nil, opts)
		Expect(monthly.Volatility).To(BeNumerically("<", 1e-6))
		Expect(monthly.CAGR).To(Equal(daily.CAGR))
		Expect(monthly.MaxDrawDown).To(Equal(daily.MaxDrawDown))
	})

	Context("when normalizing", func() {
		It("maps non-finite values to zero and nil", func() {
			inf := math.Inf(1)
			one := 1.0
			m := portfolio.Normalize(portfolio.Metrics{
				CAGR:         math.NaN(),
				MaxDrawDown:  math.Inf(-1),
				Volatility:   0.2,
				SharpeRatio:  inf,
				SortinoRatio: math.NaN(),
				Beta:         &inf,
				Alpha:        &one,
			})
			Expect(m.CAGR).To(Equal(0.0))
			Expect(m.MaxDrawDown).To(Equal(0.0))
			Expect(m.Volatility).To(Equal(0.2))
			Expect(m.SharpeRatio).To(Equal(0.0))
			Expect(m.SortinoRatio).To(Equal(0.0))
			Expect(m.Beta).To(BeNil())
			Expect(m.Alpha).To(BeNil())
		})

		It("keeps finite beta and alpha", func() {
			beta := 1.2
			alpha := -0.01
			m := portfolio.Normalize(portfolio.Metrics{Beta: &beta, Alpha: &alpha})
			Expect(*m.Beta).To(Equal(1.2))
			Expect(*m.Alpha).To(Equal(-0.01))
		})
	})
})
