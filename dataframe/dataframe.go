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
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

const dateKeyFormat = "2006-01-02"

// Len returns the number of rows in the dataframe
func (df *DataFrame) Len() int {
	return len(df.Dates)
}

// ColCount returns the number of columns in the dataframe
func (df *DataFrame) ColCount() int {
	return len(df.ColNames)
}

// ColIndex returns the index of the named column or -1 if it doesn't exist
func (df *DataFrame) ColIndex(colName string) int {
	for idx, val := range df.ColNames {
		if colName == val {
			return idx
		}
	}

	return -1
}

// Column returns the values of the named column
func (df *DataFrame) Column(colName string) ([]float64, error) {
	idx := df.ColIndex(colName)
	if idx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, colName)
	}
	return df.Vals[idx], nil
}

// Copy creates a deep copy of the dataframe
func (df *DataFrame) Copy() *DataFrame {
	df2 := &DataFrame{
		ColNames: make([]string, len(df.ColNames)),
		Dates:    make([]time.Time, len(df.Dates)),
		Vals:     make([][]float64, len(df.Vals)),
	}

	copy(df2.ColNames, df.ColNames)
	copy(df2.Dates, df.Dates)

	for idx := range df2.Vals {
		df2.Vals[idx] = make([]float64, len(df.Vals[idx]))
		copy(df2.Vals[idx], df.Vals[idx])
	}

	return df2
}

// Start returns the first date of the dataframe
func (df *DataFrame) Start() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}
	return df.Dates[0]
}

// End returns the last date of the dataframe
func (df *DataFrame) End() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}
	return df.Dates[len(df.Dates)-1]
}

// Select returns a copy of the dataframe restricted to the named columns, in
// the order given
func (df *DataFrame) Select(colNames ...string) (*DataFrame, error) {
	df2 := &DataFrame{
		Dates:    make([]time.Time, len(df.Dates)),
		ColNames: make([]string, 0, len(colNames)),
		Vals:     make([][]float64, 0, len(colNames)),
	}
	copy(df2.Dates, df.Dates)

	for _, colName := range colNames {
		col, err := df.Column(colName)
		if err != nil {
			return nil, err
		}

		vals := make([]float64, len(col))
		copy(vals, col)
		df2.ColNames = append(df2.ColNames, colName)
		df2.Vals = append(df2.Vals, vals)
	}

	return df2, nil
}

// Drop removes rows that contain the value `val` in any column. NaN matches NaN.
func (df *DataFrame) Drop(val float64) *DataFrame {
	isNA := math.IsNaN(val)
	newVals := make([][]float64, len(df.Vals))
	newDates := make([]time.Time, 0, len(df.Dates))

	for rowIdx, date := range df.Dates {
		keep := true
		for _, col := range df.Vals {
			rowVal := col[rowIdx]
			if rowVal == val || (isNA && math.IsNaN(rowVal)) {
				keep = false
				break
			}
		}

		if keep {
			newDates = append(newDates, date)
			for colIdx, col := range df.Vals {
				newVals[colIdx] = append(newVals[colIdx], col[rowIdx])
			}
		}
	}

	for colIdx := range newVals {
		if newVals[colIdx] == nil {
			newVals[colIdx] = []float64{}
		}
	}

	df.Vals = newVals
	df.Dates = newDates
	return df
}

// DropNaN removes rows where any column is NaN
func (df *DataFrame) DropNaN() *DataFrame {
	return df.Drop(math.NaN())
}

// FirstValid returns the first date where the named column is not NaN
func (df *DataFrame) FirstValid(colName string) (time.Time, bool) {
	col, err := df.Column(colName)
	if err != nil {
		return time.Time{}, false
	}

	for idx, val := range col {
		if !math.IsNaN(val) {
			return df.Dates[idx], true
		}
	}
	return time.Time{}, false
}

// AllNaN returns true if the named column has no valid values (or does not exist)
func (df *DataFrame) AllNaN(colName string) bool {
	_, ok := df.FirstValid(colName)
	return !ok
}

// InsertRow adds a new row to the dataframe. Date must be after the last date in the dataframe and vals must equal the number
// of columns. If either of these conditions are not met then panic
func (df *DataFrame) InsertRow(date time.Time, vals ...float64) *DataFrame {
	if len(df.Dates) != 0 {
		last := df.Dates[len(df.Dates)-1]
		if !last.Before(date) {
			log.Panic().Time("lastDate", last).Time("newDate", date).Msg("newDate must be after lastDate")
		}
	}

	if len(vals) != len(df.ColNames) {
		log.Panic().Int("NumValsPassed", len(vals)).Int("NumColumns", len(df.ColNames)).Msg("number of vals passed must equal number of columns")
	}

	if len(df.Vals) == 0 {
		df.Vals = make([][]float64, len(df.ColNames))
	}

	df.Dates = append(df.Dates, date)
	for colIdx := range df.ColNames {
		df.Vals[colIdx] = append(df.Vals[colIdx], vals[colIdx])
	}

	return df
}

// Trim the dataframe to the specified date range (inclusive). The returned
// dataframe shares its backing arrays with df.
func (df *DataFrame) Trim(begin, end time.Time) *DataFrame {
	df2 := &DataFrame{
		ColNames: df.ColNames,
		Dates:    []time.Time{},
		Vals:     make([][]float64, len(df.Vals)),
	}

	for colIdx := range df2.Vals {
		df2.Vals[colIdx] = []float64{}
	}

	if end.Before(begin) || df.Len() == 0 {
		return df2
	}

	beginIdx := sort.Search(len(df.Dates), func(i int) bool {
		return !df.Dates[i].Before(begin)
	})

	endIdx := sort.Search(len(df.Dates), func(i int) bool {
		return df.Dates[i].After(end)
	})

	if beginIdx >= endIdx {
		return df2
	}

	df2.Dates = df.Dates[beginIdx:endIdx]
	for colIdx, col := range df.Vals {
		df2.Vals[colIdx] = col[beginIdx:endIdx]
	}

	return df2
}

// Frequency returns a copy of the dataframe sampled at the requested frequency.
// Monthly keeps the last row of each calendar month.
func (df *DataFrame) Frequency(frequency Frequency) (*DataFrame, error) {
	switch frequency {
	case Daily:
		return df.Copy(), nil
	case Monthly:
		newDf := &DataFrame{
			ColNames: make([]string, len(df.ColNames)),
			Dates:    make([]time.Time, 0, len(df.Dates)/20+1),
			Vals:     make([][]float64, len(df.ColNames)),
		}
		copy(newDf.ColNames, df.ColNames)

		for rowIdx, date := range df.Dates {
			last := rowIdx == len(df.Dates)-1
			if !last {
				next := df.Dates[rowIdx+1]
				last = next.Year() != date.Year() || next.Month() != date.Month()
			}

			if last {
				newDf.Dates = append(newDf.Dates, date)
				for colIdx := range newDf.Vals {
					newDf.Vals[colIdx] = append(newDf.Vals[colIdx], df.Vals[colIdx][rowIdx])
				}
			}
		}

		return newDf, nil
	default:
		log.Error().Str("Frequency", string(frequency)).Msg("unknown frequency provided to dataframe frequency function")
		return nil, fmt.Errorf("%w: %s", ErrUnknownFrequency, frequency)
	}
}

// Merge outer joins the dataframes on their dates. Missing values are filled
// with NaN. When a column name appears more than once the first wins.
func Merge(dfs ...*DataFrame) *DataFrame {
	dateMap := make(map[string]time.Time)
	for _, df := range dfs {
		for _, date := range df.Dates {
			key := date.Format(dateKeyFormat)
			if _, ok := dateMap[key]; !ok {
				dateMap[key] = date
			}
		}
	}

	dates := make([]time.Time, 0, len(dateMap))
	for _, date := range dateMap {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowIdx := make(map[string]int, len(dates))
	for idx, date := range dates {
		rowIdx[date.Format(dateKeyFormat)] = idx
	}

	merged := &DataFrame{
		Dates:    dates,
		ColNames: []string{},
		Vals:     [][]float64{},
	}

	seen := make(map[string]bool)
	for _, df := range dfs {
		for colIdx, colName := range df.ColNames {
			if seen[colName] {
				continue
			}
			seen[colName] = true

			col := make([]float64, len(dates))
			for idx := range col {
				col[idx] = math.NaN()
			}
			for idx, date := range df.Dates {
				col[rowIdx[date.Format(dateKeyFormat)]] = df.Vals[colIdx][idx]
			}

			merged.ColNames = append(merged.ColNames, colName)
			merged.Vals = append(merged.Vals, col)
		}
	}

	return merged
}

// InnerJoin returns a new dataframe holding the columns of df followed by the
// columns of other on the dates present in both
func (df *DataFrame) InnerJoin(other *DataFrame) *DataFrame {
	otherIdx := make(map[string]int, len(other.Dates))
	for idx, date := range other.Dates {
		otherIdx[date.Format(dateKeyFormat)] = idx
	}

	joined := &DataFrame{
		Dates:    []time.Time{},
		ColNames: append(append([]string{}, df.ColNames...), other.ColNames...),
		Vals:     make([][]float64, len(df.ColNames)+len(other.ColNames)),
	}

	for rowIdx, date := range df.Dates {
		oIdx, ok := otherIdx[date.Format(dateKeyFormat)]
		if !ok {
			continue
		}

		joined.Dates = append(joined.Dates, date)
		for colIdx, col := range df.Vals {
			joined.Vals[colIdx] = append(joined.Vals[colIdx], col[rowIdx])
		}
		for colIdx, col := range other.Vals {
			joined.Vals[len(df.Vals)+colIdx] = append(joined.Vals[len(df.Vals)+colIdx], col[oIdx])
		}
	}

	return joined
}

// Table renders the dataframe as an ASCII table
func (df *DataFrame) Table() string {
	if len(df.Dates) == 0 {
		return "<NO DATA>"
	}

	tableCols := append([]string{"Date"}, df.ColNames...)

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(tableCols)
	footer := make([]string, len(tableCols))
	footer[0] = "Num Rows"
	if len(footer) > 1 {
		footer[1] = fmt.Sprintf("%d", df.Len())
	}
	table.SetFooter(footer)
	table.SetBorder(false)

	for rowIdx, date := range df.Dates {
		row := make([]string, 0, len(df.Vals)+1)
		row = append(row, date.Format(dateKeyFormat))
		for _, col := range df.Vals {
			row = append(row, fmt.Sprintf("%.4f", col[rowIdx]))
		}
		table.Append(row)
	}

	table.Render()
	return s.String()
}
