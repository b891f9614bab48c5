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
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvbt/dataframe"
	"github.com/penny-vault/pvbt/portfolio"
)

var _ = Describe("Portfolio", func() {
	var (
		opts portfolio.MetricOptions
	)

	BeforeEach(func() {
		opts = portfolio.DefaultMetricOptions()
	})

	Context("with two tickers moving in opposite directions", func() {
		var (
			prices *dataframe.DataFrame
			cfg    *portfolio.Config
		)

		BeforeEach(func() {
			prices = &dataframe.DataFrame{
				Dates:    []time.Time{day(2020, 1, 2), day(2020, 2, 3), day(2020, 3, 2)},
				ColNames: []string{"A", "B"},
				Vals: [][]float64{
					{100, 110, 121},
					{100, 90, 81},
				},
			}

			cfg = &portfolio.Config{
				Name:    "split",
				Tickers: []string{"A", "B"},
				Weights: []float64{50, 50},
			}
		})

		It("lets weights drift when never rebalanced", func() {
			cfg.RebalancePeriod = portfolio.Never
			res, err := portfolio.Simulate(cfg, prices, 10_000, nil, opts)
			Expect(err).To(BeNil())
			Expect(res.Name).To(Equal("split"))
			Expect(res.History.Dates).To(Equal(prices.Dates))
			Expect(res.History.Vals[0][0]).To(Equal(10_000.0))
			Expect(res.History.Vals[0][1]).To(BeNumerically("~", 10_000.0, 1e-9))
			Expect(res.History.Vals[0][2]).To(BeNumerically("~", 10_100.0, 1e-9))
			Expect(res.Holdings["A"]).To(BeNumerically("~", 50.0, 1e-12))
			Expect(res.Holdings["B"]).To(BeNumerically("~", 50.0, 1e-12))
		})

		It("restores the 50/50 split after every monthly valuation", func() {
			cfg.RebalancePeriod = portfolio.Monthly
			res, err := portfolio.Simulate(cfg, prices, 10_000, nil, opts)
			Expect(err).To(BeNil())

			// after 2020-02-03: A = 5000/110, B = 5000/90
			// value on 2020-03-02: 5000/110*121 + 5000/90*81 = 5500 + 4500
			Expect(res.History.Vals[0][1]).To(BeNumerically("~", 10_000.0, 1e-9))
			Expect(res.History.Vals[0][2]).To(BeNumerically("~", 10_000.0, 1e-9))

			// reset again on 2020-03-02 using that day's prices
			Expect(res.Holdings["A"]).To(BeNumerically("~", 5000.0/121.0, 1e-9))
			Expect(res.Holdings["B"]).To(BeNumerically("~", 5000.0/81.0, 1e-9))
		})

		It("does not modify the price table", func() {
			before := prices.Copy()
			_, err := portfolio.Simulate(cfg, prices, 10_000, nil, opts)
			Expect(err).To(BeNil())
			Expect(prices).To(Equal(before))
		})
	})

	It("reproduces a single ticker price series scaled by the initial amount", func() {
		dates := tradeDays(day(2021, 1, 4), day(2021, 6, 30))
		vals := make([]float64, len(dates))
		for idx := range vals {
			vals[idx] = 50 + 10*math.Sin(float64(idx)/7.0) + float64(idx)*0.1
		}

		prices := &dataframe.DataFrame{
			Dates:    dates,
			ColNames: []string{"SPY"},
			Vals:     [][]float64{vals},
		}

		cfg := &portfolio.Config{Name: "spy", Tickers: []string{"SPY"}, Weights: []float64{100}}
		res, err := portfolio.Simulate(cfg, prices, 2_500, nil, opts)
		Expect(err).To(BeNil())
		Expect(res.History.Len()).To(Equal(len(dates)))
		for idx, v := range res.History.Vals[0] {
			Expect(v).To(BeNumerically("~", vals[idx]*2_500/vals[0], 1e-9))
		}
	})

	It("aligns to the dates where every ticker has a price", func() {
		nan := math.NaN()
		prices := &dataframe.DataFrame{
			Dates:    []time.Time{day(2021, 3, 1), day(2021, 3, 2), day(2021, 3, 3), day(2021, 3, 4)},
			ColNames: []string{"A", "B", "OTHER"},
			Vals: [][]float64{
				{nan, 10, 11, 12},
				{20, 20, nan, 22},
				{nan, nan, nan, nan},
			},
		}

		cfg := &portfolio.Config{Name: "gaps", Tickers: []string{"A", "B"}, Weights: []float64{50, 50}}
		res, err := portfolio.Simulate(cfg, prices, 1_000, nil, opts)
		Expect(err).To(BeNil())
		Expect(res.History.Dates).To(Equal([]time.Time{day(2021, 3, 2), day(2021, 3, 4)}))
		Expect(res.History.Vals[0][1]).To(BeNumerically("~", 50*12+25*22, 1e-9))
	})

	It("reports insufficient data when no date is common to all tickers", func() {
		nan := math.NaN()
		prices := &dataframe.DataFrame{
			Dates:    []time.Time{day(2021, 3, 1), day(2021, 3, 2)},
			ColNames: []string{"A", "B"},
			Vals:     [][]float64{{1, nan}, {nan, 2}},
		}

		cfg := &portfolio.Config{Name: "disjoint", Tickers: []string{"A", "B"}, Weights: []float64{50, 50}}
		_, err := portfolio.Simulate(cfg, prices, 1_000, nil, opts)
		Expect(errors.Is(err, portfolio.ErrInsufficientData)).To(BeTrue())
	})

	It("reports tickers missing from the price table", func() {
		prices := &dataframe.DataFrame{
			Dates:    []time.Time{day(2021, 3, 1)},
			ColNames: []string{"A"},
			Vals:     [][]float64{{1}},
		}

		cfg := &portfolio.Config{Name: "missing", Tickers: []string{"A", "Z"}, Weights: []float64{50, 50}}
		_, err := portfolio.Simulate(cfg, prices, 1_000, nil, opts)
		Expect(errors.Is(err, portfolio.ErrTickerNotFound)).To(BeTrue())
	})

	It("keeps shares finite when the first price is zero", func() {
		prices := &dataframe.DataFrame{
			Dates:    []time.Time{day(2021, 3, 1), day(2021, 3, 2)},
			ColNames: []string{"A"},
			Vals:     [][]float64{{0, 1}},
		}

		cfg := &portfolio.Config{Name: "zero", Tickers: []string{"A"}, Weights: []float64{100}}
		res, err := portfolio.Simulate(cfg, prices, 1_000, nil, opts)
		Expect(err).To(BeNil())
		Expect(math.IsInf(res.Holdings["A"], 0)).To(BeFalse())
		Expect(res.History.Vals[0][0]).To(Equal(1_000.0))
	})

	It("rejects a non-positive initial amount", func() {
		prices := &dataframe.DataFrame{
			Dates:    []time.Time{day(2021, 3, 1)},
			ColNames: []string{"A"},
			Vals:     [][]float64{{1}},
		}

		cfg := &portfolio.Config{Name: "a", Tickers: []string{"A"}, Weights: []float64{100}}
		_, err := portfolio.Simulate(cfg, prices, 0, nil, opts)
		Expect(errors.Is(err, portfolio.ErrInvalidInitialAmt)).To(BeTrue())
	})

	DescribeTable("when validating configs",
		func(cfg portfolio.Config, valid bool) {
			err := cfg.Validate()
			if valid {
				Expect(err).To(BeNil())
			} else {
				Expect(errors.Is(err, portfolio.ErrInvalidConfig)).To(BeTrue())
			}
		},
		Entry("valid", portfolio.Config{Name: "ok", Tickers: []string{"A", "B"}, Weights: []float64{60, 40}}, true),
		Entry("weights need not sum to 100", portfolio.Config{Name: "ok", Tickers: []string{"A"}, Weights: []float64{60}}, true),
		Entry("empty tickers", portfolio.Config{Name: "empty"}, false),
		Entry("mismatched lengths", portfolio.Config{Name: "mismatch", Tickers: []string{"A", "B"}, Weights: []float64{100}}, false),
		Entry("duplicate tickers", portfolio.Config{Name: "dup", Tickers: []string{"A", "A"}, Weights: []float64{50, 50}}, false),
		Entry("negative weight", portfolio.Config{Name: "neg", Tickers: []string{"A"}, Weights: []float64{-1}}, false),
		Entry("weight above 100", portfolio.Config{Name: "big", Tickers: []string{"A"}, Weights: []float64{101}}, false),
		Entry("lower case ticker", portfolio.Config{Name: "lower", Tickers: []string{"brk.b"}, Weights: []float64{100}}, true),
		Entry("ticker with a path", portfolio.Config{Name: "path", Tickers: []string{"../../tmp/x"}, Weights: []float64{100}}, false),
		Entry("ticker with a space", portfolio.Config{Name: "space", Tickers: []string{"SP Y"}, Weights: []float64{100}}, false),
	)
})
