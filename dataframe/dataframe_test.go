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

package dataframe_test

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvbt/dataframe"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("DataFrame", func() {
	Context("with no values", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{}
		})

		It("has zero length", func() {
			Expect(df.Len()).To(Equal(0))
			Expect(df.ColCount()).To(Equal(0))
		})

		It("has zero start and end dates", func() {
			Expect(df.Start().IsZero()).To(BeTrue())
			Expect(df.End().IsZero()).To(BeTrue())
		})

		It("does not error on drop", func() {
			df = df.DropNaN()
			Expect(df.Len()).To(Equal(0))
		})

		It("does not error on trim", func() {
			df = df.Trim(day(2021, 1, 1), day(2022, 1, 1))
			Expect(df.Len()).To(Equal(0))
		})

		It("does not error on monthly frequency", func() {
			monthly, err := df.Frequency(dataframe.Monthly)
			Expect(err).To(BeNil())
			Expect(monthly.Len()).To(Equal(0))
		})

		It("renders a placeholder table", func() {
			Expect(df.Table()).To(Equal("<NO DATA>"))
		})
	})

	Context("with two columns and gaps", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{
				Dates:    []time.Time{day(2020, 1, 30), day(2020, 1, 31), day(2020, 2, 3), day(2020, 2, 28), day(2020, 3, 2)},
				ColNames: []string{"AAA", "BBB"},
				Vals: [][]float64{
					{1, 2, 3, 4, 5},
					{math.NaN(), math.NaN(), 30, math.NaN(), 50},
				},
			}
		})

		It("finds columns by name", func() {
			Expect(df.ColIndex("BBB")).To(Equal(1))
			Expect(df.ColIndex("CCC")).To(Equal(-1))
		})

		It("errors when selecting an unknown column", func() {
			_, err := df.Select("AAA", "CCC")
			Expect(errors.Is(err, dataframe.ErrColumnNotFound)).To(BeTrue())
		})

		It("selects columns without aliasing the original", func() {
			sel, err := df.Select("BBB")
			Expect(err).To(BeNil())
			Expect(sel.ColNames).To(Equal([]string{"BBB"}))
			sel.Vals[0][2] = 99
			Expect(df.Vals[1][2]).To(Equal(30.0))
		})

		It("drops rows containing NaN", func() {
			df.DropNaN()
			Expect(df.Dates).To(Equal([]time.Time{day(2020, 2, 3), day(2020, 3, 2)}))
			Expect(df.Vals[0]).To(Equal([]float64{3, 5}))
			Expect(df.Vals[1]).To(Equal([]float64{30, 50}))
		})

		It("finds the first valid date of a column", func() {
			first, ok := df.FirstValid("BBB")
			Expect(ok).To(BeTrue())
			Expect(first).To(Equal(day(2020, 2, 3)))

			_, ok = df.FirstValid("CCC")
			Expect(ok).To(BeFalse())
		})

		It("trims inclusively", func() {
			trimmed := df.Trim(day(2020, 1, 31), day(2020, 2, 28))
			Expect(trimmed.Dates).To(Equal([]time.Time{day(2020, 1, 31), day(2020, 2, 3), day(2020, 2, 28)}))
			Expect(trimmed.Vals[0]).To(Equal([]float64{2, 3, 4}))
		})

		It("trims with bounds that fall between dates", func() {
			trimmed := df.Trim(day(2020, 2, 1), day(2020, 2, 27))
			Expect(trimmed.Dates).To(Equal([]time.Time{day(2020, 2, 3)}))
			Expect(df.Len()).To(Equal(5))
		})

		It("returns an empty dataframe when the range is inverted", func() {
			trimmed := df.Trim(day(2020, 3, 1), day(2020, 1, 1))
			Expect(trimmed.Len()).To(Equal(0))
		})

		It("resamples to month end", func() {
			monthly, err := df.Frequency(dataframe.Monthly)
			Expect(err).To(BeNil())
			Expect(monthly.Dates).To(Equal([]time.Time{day(2020, 1, 31), day(2020, 2, 28), day(2020, 3, 2)}))
			Expect(monthly.Vals[0]).To(Equal([]float64{2, 4, 5}))
		})

		It("rejects unknown frequencies", func() {
			_, err := df.Frequency(dataframe.Frequency("hourly"))
			Expect(errors.Is(err, dataframe.ErrUnknownFrequency)).To(BeTrue())
		})

		It("parses frequency names", func() {
			freq, err := dataframe.ParseFrequency(" Monthly")
			Expect(err).To(BeNil())
			Expect(freq).To(Equal(dataframe.Monthly))

			freq, err = dataframe.ParseFrequency("")
			Expect(err).To(BeNil())
			Expect(freq).To(Equal(dataframe.Daily))

			_, err = dataframe.ParseFrequency("weekly")
			Expect(errors.Is(err, dataframe.ErrUnknownFrequency)).To(BeTrue())
		})

		It("panics when inserting an out of order row", func() {
			Expect(func() { df.InsertRow(day(2020, 1, 1), 1, 2) }).To(Panic())
		})

		It("appends rows in order", func() {
			df.InsertRow(day(2020, 3, 3), 6, 60)
			Expect(df.Len()).To(Equal(6))
			Expect(df.End()).To(Equal(day(2020, 3, 3)))
		})

		It("renders a table", func() {
			Expect(df.Table()).To(ContainSubstring("2020-02-03"))
		})
	})

	Context("when joining", func() {
		var (
			a *dataframe.DataFrame
			b *dataframe.DataFrame
		)

		BeforeEach(func() {
			a = &dataframe.DataFrame{
				Dates:    []time.Time{day(2021, 1, 4), day(2021, 1, 5), day(2021, 1, 6)},
				ColNames: []string{"AAA"},
				Vals:     [][]float64{{1, 2, 3}},
			}
			b = &dataframe.DataFrame{
				Dates:    []time.Time{day(2021, 1, 5), day(2021, 1, 6), day(2021, 1, 7)},
				ColNames: []string{"BBB"},
				Vals:     [][]float64{{20, 30, 40}},
			}
		})

		It("merges on the union of dates", func() {
			merged := dataframe.Merge(a, b)
			Expect(merged.Dates).To(HaveLen(4))
			Expect(merged.ColNames).To(Equal([]string{"AAA", "BBB"}))
			Expect(math.IsNaN(merged.Vals[0][3])).To(BeTrue())
			Expect(math.IsNaN(merged.Vals[1][0])).To(BeTrue())
			Expect(merged.Vals[1][1]).To(Equal(20.0))
		})

		It("inner joins on the intersection of dates", func() {
			joined := a.InnerJoin(b)
			Expect(joined.Dates).To(Equal([]time.Time{day(2021, 1, 5), day(2021, 1, 6)}))
			Expect(joined.Vals[0]).To(Equal([]float64{2, 3}))
			Expect(joined.Vals[1]).To(Equal([]float64{20, 30}))
		})
	})

	Context("when computing percent change", func() {
		It("drops the first row", func() {
			df := &dataframe.DataFrame{
				Dates:    []time.Time{day(2021, 1, 4), day(2021, 1, 5), day(2021, 1, 6)},
				ColNames: []string{"value"},
				Vals:     [][]float64{{100, 110, 99}},
			}
			pct := df.PctChange()
			Expect(pct.Dates).To(Equal([]time.Time{day(2021, 1, 5), day(2021, 1, 6)}))
			Expect(pct.Vals[0][0]).To(BeNumerically("~", 0.1, 1e-12))
			Expect(pct.Vals[0][1]).To(BeNumerically("~", -0.1, 1e-12))
		})

		It("returns an empty dataframe for a single row", func() {
			df := &dataframe.DataFrame{
				Dates:    []time.Time{day(2021, 1, 4)},
				ColNames: []string{"value"},
				Vals:     [][]float64{{100}},
			}
			Expect(df.PctChange().Len()).To(Equal(0))
		})
	})
})
