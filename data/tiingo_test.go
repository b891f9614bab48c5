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
	"net/http"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvbt/data"
)

const spyResponse = `[
	{"date":"2021-01-04T00:00:00.000Z","close":368.79,"adjClose":355.12},
	{"date":"2021-01-05T00:00:00.000Z","close":371.33,"adjClose":357.57},
	{"date":"2021-01-06T00:00:00.000Z","close":373.55,"adjClose":359.71}
]`

const tltResponse = `[
	{"date":"2021-01-05T00:00:00.000Z","close":157.1,"adjClose":150.2},
	{"date":"2021-01-06T00:00:00.000Z","close":154.9,"adjClose":148.1}
]`

var _ = Describe("Tiingo", func() {
	var (
		ctx    context.Context
		tiingo *data.Tiingo
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		httpmock.Activate()
		DeferCleanup(httpmock.DeactivateAndReset)

		tiingo, err = data.NewTiingo("test-token")
		Expect(err).To(BeNil())
	})

	It("requires a token", func() {
		_, err := data.NewTiingo("")
		Expect(errors.Is(err, data.ErrMissingToken)).To(BeTrue())
	})

	It("downloads adjusted close prices for every ticker", func() {
		httpmock.RegisterResponder("GET", "https://api.tiingo.com/tiingo/daily/SPY/prices",
			httpmock.NewStringResponder(200, spyResponse))
		httpmock.RegisterResponder("GET", "https://api.tiingo.com/tiingo/daily/TLT/prices",
			httpmock.NewStringResponder(200, tltResponse))

		df, err := tiingo.GetPrices(ctx, []string{"SPY", "TLT"}, day(2021, 1, 1), day(2021, 1, 31))
		Expect(err).To(BeNil())
		Expect(df.Dates).To(Equal([]time.Time{day(2021, 1, 4), day(2021, 1, 5), day(2021, 1, 6)}))

		spy, err := df.Column("SPY")
		Expect(err).To(BeNil())
		Expect(spy).To(Equal([]float64{355.12, 357.57, 359.71}))

		first, ok := df.FirstValid("TLT")
		Expect(ok).To(BeTrue())
		Expect(first).To(Equal(day(2021, 1, 5)))

		Expect(httpmock.GetTotalCallCount()).To(Equal(2))
	})

	It("skips tickers tiingo does not know", func() {
		httpmock.RegisterResponder("GET", "https://api.tiingo.com/tiingo/daily/SPY/prices",
			httpmock.NewStringResponder(200, spyResponse))
		httpmock.RegisterResponder("GET", "https://api.tiingo.com/tiingo/daily/NOPE/prices",
			httpmock.NewStringResponder(http.StatusNotFound, `{"detail":"Not found."}`))

		df, err := tiingo.GetPrices(ctx, []string{"SPY", "NOPE"}, day(2021, 1, 1), day(2021, 1, 31))
		Expect(err).To(BeNil())
		Expect(df.ColNames).To(Equal([]string{"SPY"}))
	})

	It("fails on server errors", func() {
		httpmock.RegisterResponder("GET", "https://api.tiingo.com/tiingo/daily/SPY/prices",
			httpmock.NewStringResponder(http.StatusInternalServerError, "oops"))

		_, err := tiingo.GetPrices(ctx, []string{"SPY"}, day(2021, 1, 1), day(2021, 1, 31))
		Expect(errors.Is(err, data.ErrHTTPStatus)).To(BeTrue())
	})

	It("uses dashes for share classes", func() {
		httpmock.RegisterResponder("GET", "https://api.tiingo.com/tiingo/daily/BRK-B/prices",
			httpmock.NewStringResponder(200, spyResponse))

		df, err := tiingo.FetchTicker(ctx, "BRK.B", day(2021, 1, 1), day(2021, 1, 31))
		Expect(err).To(BeNil())
		Expect(df.ColNames).To(Equal([]string{"BRK.B"}))
		Expect(df.Len()).To(Equal(3))
	})
})
