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

	"github.com/penny-vault/pvbt/tradecron"
)

// periodKey maps a date to the rebalancing bucket it belongs to. Never has no
// buckets.
func periodKey(period RebalancePeriod) func(time.Time) int {
	switch period {
	case Monthly:
		return func(t time.Time) int { return t.Year()*100 + int(t.Month()) }
	case Quarterly:
		return func(t time.Time) int { return t.Year()*10 + tradecron.Quarter(t) }
	case Annually:
		return func(t time.Time) int { return t.Year() }
	case Never:
		return nil
	default:
		return nil
	}
}

// rebalanceIndices returns the positions in dates that start a new period,
// excluding the first period
func rebalanceIndices(dates []time.Time, period RebalancePeriod) []int {
	key := periodKey(period)
	if key == nil || len(dates) == 0 {
		return []int{}
	}

	boundaries := make([]int, 0, len(dates))
	last := 0
	for idx, date := range dates {
		k := key(date)
		if idx == 0 || k != last {
			boundaries = append(boundaries, idx)
			last = k
		}
	}

	if len(boundaries) < 2 {
		return []int{}
	}
	return boundaries[1:]
}

// RebalanceDates returns the first trading date of every period in dates,
// skipping the first period (which is the initial allocation). dates must be
// sorted ascending.
func RebalanceDates(dates []time.Time, period RebalancePeriod) []time.Time {
	indices := rebalanceIndices(dates, period)
	res := make([]time.Time, len(indices))
	for ii, idx := range indices {
		res[ii] = dates[idx]
	}
	return res
}
