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

package data_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvbt/data"
	"github.com/penny-vault/pvbt/dataframe"
)

var _ = Describe("Local price stores", func() {
	var (
		ctx context.Context
		dir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = tempDir()
	})

	Context("with csv files", func() {
		var (
			store *data.CSVStore
		)

		BeforeEach(func() {
			store = data.NewCSVStore(dir)
			Expect(os.WriteFile(filepath.Join(dir, "AAA.csv"), []byte("Date,Close\n2021-01-04,10\n2021-01-05,11\n2021-01-06,\n2021-01-07,13\n"), 0o600)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "BBB.csv"), []byte("Date,Open,Close\n2021-01-06 00:00:00-05:00,1,20\n2021-01-05 00:00:00-05:00,1,19\n"), 0o600)).To(Succeed())
		})

		It("outer joins the requested tickers", func() {
			df, err := store.GetPrices(ctx, []string{"AAA", "BBB"}, day(2021, 1, 1), day(2021, 12, 31))
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"AAA", "BBB"}))
			Expect(df.Dates).To(Equal([]time.Time{day(2021, 1, 4), day(2021, 1, 5), day(2021, 1, 6), day(2021, 1, 7)}))
			Expect(df.Vals[0][1]).To(Equal(11.0))
			Expect(math.IsNaN(df.Vals[0][2])).To(BeTrue())
			Expect(math.IsNaN(df.Vals[1][0])).To(BeTrue())
			Expect(df.Vals[1][1:3]).To(Equal([]float64{19, 20}))
		})

		It("trims to the requested range", func() {
			df, err := store.GetPrices(ctx, []string{"AAA"}, day(2021, 1, 5), day(2021, 1, 6))
			Expect(err).To(BeNil())
			Expect(df.Dates).To(Equal([]time.Time{day(2021, 1, 5), day(2021, 1, 6)}))
		})

		It("leaves out tickers without a file", func() {
			df, err := store.GetPrices(ctx, []string{"AAA", "ZZZ"}, day(2021, 1, 1), day(2021, 12, 31))
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"AAA"}))
			Expect(data.MissingTickers(df, []string{"AAA", "ZZZ"})).To(Equal([]string{"ZZZ"}))
		})

		It("rejects an inverted range", func() {
			_, err := store.GetPrices(ctx, []string{"AAA"}, day(2021, 2, 1), day(2021, 1, 1))
			Expect(errors.Is(err, data.ErrInvalidTimeRange)).To(BeTrue())
		})

		It("rejects files without a Close column", func() {
			Expect(os.WriteFile(filepath.Join(dir, "BAD.csv"), []byte("Date,Open\n2021-01-04,1\n"), 0o600)).To(Succeed())
			_, err := store.GetPrices(ctx, []string{"BAD"}, day(2021, 1, 1), day(2021, 12, 31))
			Expect(errors.Is(err, data.ErrMalformedCSV)).To(BeTrue())
		})

		It("refuses tickers that point outside the data directory", func() {
			outside := tempDir()
			Expect(os.WriteFile(filepath.Join(outside, "SECRET.csv"), []byte("Date,Close\n2021-01-04,10\n"), 0o600)).To(Succeed())
			escape := "../" + filepath.Base(outside) + "/SECRET"

			_, err := store.GetPrices(ctx, []string{escape}, day(2021, 1, 1), day(2021, 12, 31))
			Expect(errors.Is(err, data.ErrInvalidTicker)).To(BeTrue())

			prices := &dataframe.DataFrame{
				Dates:    []time.Time{day(2022, 3, 1)},
				ColNames: []string{"X"},
				Vals:     [][]float64{{1}},
			}
			err = store.WritePrices(ctx, escape, prices)
			Expect(errors.Is(err, data.ErrInvalidTicker)).To(BeTrue())

			raw, err := os.ReadFile(filepath.Join(outside, "SECRET.csv"))
			Expect(err).To(BeNil())
			Expect(string(raw)).To(Equal("Date,Close\n2021-01-04,10\n"))
		})

		It("writes prices that can be read back", func() {
			prices := &dataframe.DataFrame{
				Dates:    []time.Time{day(2022, 3, 1), day(2022, 3, 2), day(2022, 3, 3)},
				ColNames: []string{"CCC"},
				Vals:     [][]float64{{1.5, math.NaN(), 2.25}},
			}
			Expect(store.WritePrices(ctx, "CCC", prices)).To(Succeed())

			df, err := store.GetPrices(ctx, []string{"CCC"}, day(2022, 1, 1), day(2022, 12, 31))
			Expect(err).To(BeNil())
			Expect(df.Dates).To(Equal([]time.Time{day(2022, 3, 1), day(2022, 3, 3)}))
			Expect(df.Vals[0]).To(Equal([]float64{1.5, 2.25}))
		})
	})

	Context("with parquet files", func() {
		var (
			store *data.ParquetStore
		)

		BeforeEach(func() {
			store = data.NewParquetStore(dir)
		})

		It("round trips written prices", func() {
			prices := &dataframe.DataFrame{
				Dates:    []time.Time{day(2022, 3, 1), day(2022, 3, 2), day(2022, 3, 3)},
				ColNames: []string{"SPY"},
				Vals:     [][]float64{{430.1, 431.2, 429.9}},
			}
			Expect(store.WritePrices(ctx, "SPY", prices)).To(Succeed())

			df, err := store.GetPrices(ctx, []string{"SPY", "TLT"}, day(2022, 3, 2), day(2022, 3, 31))
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"SPY"}))
			Expect(df.Dates).To(Equal([]time.Time{day(2022, 3, 2), day(2022, 3, 3)}))
			Expect(df.Vals[0]).To(Equal([]float64{431.2, 429.9}))
		})

		It("refuses tickers that point outside the data directory", func() {
			prices := &dataframe.DataFrame{
				Dates:    []time.Time{day(2022, 3, 1)},
				ColNames: []string{"X"},
				Vals:     [][]float64{{1}},
			}
			err := store.WritePrices(ctx, "../ESCAPE", prices)
			Expect(errors.Is(err, data.ErrInvalidTicker)).To(BeTrue())
			_, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "ESCAPE.parquet"))
			Expect(os.IsNotExist(statErr)).To(BeTrue())

			_, err = store.GetPrices(ctx, []string{"../ESCAPE"}, day(2022, 1, 1), day(2022, 12, 31))
			Expect(errors.Is(err, data.ErrInvalidTicker)).To(BeTrue())
		})
	})
})
