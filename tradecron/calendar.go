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

package tradecron

import (
	"time"
)

// IsTradeDay returns true if the specified date is a weekday. Exchange
// holidays are not modeled; price tables simply have no row for them.
func IsTradeDay(t time.Time) bool {
	return t.Weekday() != time.Saturday && t.Weekday() != time.Sunday
}

// AddTradeDays moves t forward (or backward for negative n) by n trade days.
// With n == 0 a weekend date is rolled forward to the following Monday.
func AddTradeDays(t time.Time, n int) time.Time {
	if n == 0 {
		for !IsTradeDay(t) {
			t = t.AddDate(0, 0, 1)
		}
		return t
	}

	step := 1
	if n < 0 {
		step = -1
		n = -n
	}

	for n > 0 {
		t = t.AddDate(0, 0, step)
		if IsTradeDay(t) {
			n--
		}
	}

	return t
}

// MonthBegin returns the first calendar day of the month containing t
func MonthBegin(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthEnd returns the last calendar day of the month containing t
func MonthEnd(t time.Time) time.Time {
	return MonthBegin(t).AddDate(0, 1, -1)
}

// NextMonth returns the first day of the next month
func NextMonth(t time.Time) time.Time {
	return MonthBegin(t).AddDate(0, 1, 0)
}

// Quarter returns the calendar quarter (1-4) of t
func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}
