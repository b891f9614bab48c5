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
	"time"

	"github.com/penny-vault/pvbt/dataframe"
	"github.com/penny-vault/pvbt/tradecron"
)

// LateStartTradeDays is the grace period before a ticker is considered to
// start late
const LateStartTradeDays = 5

// LateStart is a ticker whose price history begins materially after the
// requested start date
type LateStart struct {
	Ticker     string
	FirstValid time.Time
}

// CheckCompleteness reports tickers whose first valid price in prices is more
// than LateStartTradeDays trade days after start. Tickers missing from prices
// or without any valid price are not reported. Results follow the order of
// tickers.
func CheckCompleteness(prices *dataframe.DataFrame, tickers []string, start time.Time) []LateStart {
	threshold := tradecron.AddTradeDays(start, LateStartTradeDays)
	late := make([]LateStart, 0)

	for _, ticker := range tickers {
		first, ok := prices.FirstValid(ticker)
		if !ok {
			continue
		}

		if first.After(threshold) {
			late = append(late, LateStart{
				Ticker:     ticker,
				FirstValid: first,
			})
		}
	}

	return late
}
