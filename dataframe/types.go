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
	"errors"
	"fmt"
	"strings"
	"time"
)

// DataFrame stores a table of values organized by date. Vals is column major:
//
//	Dates       SPY   TLT
//	2020-01-02  1     4
//	2020-01-03  2     5
//
// Vals[0] = [1, 2]; Vals[1] = [4, 5]
type DataFrame struct {
	Dates    []time.Time
	ColNames []string
	Vals     [][]float64
}

// Frequency used when resampling a dataframe
type Frequency string

const (
	Daily   Frequency = "daily"
	Monthly Frequency = "monthly"
)

var (
	ErrColumnNotFound   = errors.New("column not found")
	ErrUnknownFrequency = errors.New("unknown frequency")
)

// ParseFrequency converts a frequency name; an empty string is Daily
func ParseFrequency(s string) (Frequency, error) {
	switch freq := Frequency(strings.ToLower(strings.TrimSpace(s))); freq {
	case "":
		return Daily, nil
	case Daily, Monthly:
		return freq, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, s)
	}
}
