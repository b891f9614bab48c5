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

package dataframe

import (
	"time"

	"gonum.org/v1/gonum/floats"
)

// PctChange returns a new dataframe with the period over period change of
// every column. The result has one row fewer than df; the first date is dropped.
func (df *DataFrame) PctChange() *DataFrame {
	if df.Len() < 2 {
		res := &DataFrame{
			Dates:    []time.Time{},
			ColNames: df.ColNames,
			Vals:     make([][]float64, len(df.ColNames)),
		}
		for idx := range res.Vals {
			res.Vals[idx] = []float64{}
		}
		return res
	}

	res := &DataFrame{
		Dates:    make([]time.Time, df.Len()-1),
		ColNames: df.ColNames,
		Vals:     make([][]float64, len(df.Vals)),
	}
	copy(res.Dates, df.Dates[1:])

	for colIdx, col := range df.Vals {
		changes := make([]float64, len(col)-1)
		copy(changes, col[1:])
		floats.Div(changes, col[:len(col)-1])
		floats.AddConst(-1, changes)
		res.Vals[colIdx] = changes
	}

	return res
}
