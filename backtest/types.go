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

package backtest

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/dataframe"
	"github.com/penny-vault/pvbt/portfolio"
	"github.com/penny-vault/pvbt/tradecron"
)

// FlexInt is an integer that decodes from either a JSON number or a string
// holding one; form fields are posted as strings
type FlexInt int

func (n *FlexInt) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return nil
	}

	raw = bytes.TrimSpace(bytes.Trim(raw, `"`))
	val, err := strconv.Atoi(string(raw))
	if err != nil {
		return fmt.Errorf("%w: %q is not an integer", ErrInvalidRequest, raw)
	}

	*n = FlexInt(val)
	return nil
}

// Period is a range of whole calendar months
type Period struct {
	StartYear  FlexInt `json:"startYear" yaml:"startYear" toml:"startYear"`
	StartMonth FlexInt `json:"startMonth" yaml:"startMonth" toml:"startMonth"`
	EndYear    FlexInt `json:"endYear" yaml:"endYear" toml:"endYear"`
	EndMonth   FlexInt `json:"endMonth" yaml:"endMonth" toml:"endMonth"`
}

// DateRange returns the first day of the start month and the last day of the
// end month
func (p Period) DateRange() (begin, end time.Time, err error) {
	if p.StartMonth < 1 || p.StartMonth > 12 || p.EndMonth < 1 || p.EndMonth > 12 {
		return begin, end, fmt.Errorf("%w: months must be between 1 and 12", ErrInvalidRequest)
	}

	if p.StartYear < 1 || p.EndYear < 1 {
		return begin, end, fmt.Errorf("%w: startYear and endYear are required", ErrInvalidRequest)
	}

	begin = time.Date(int(p.StartYear), time.Month(p.StartMonth), 1, 0, 0, 0, 0, time.UTC)
	end = tradecron.MonthEnd(time.Date(int(p.EndYear), time.Month(p.EndMonth), 1, 0, 0, 0, 0, time.UTC))

	if end.Before(begin) {
		return begin, end, fmt.Errorf("%w: end (%s) is before start (%s)", ErrInvalidRequest,
			end.Format(common.DateFormat), begin.Format(common.DateFormat))
	}

	return begin, end, nil
}

// Request is a batch of portfolios backtested over the same period
type Request struct {
	Period        `yaml:",inline"`
	InitialAmount float64             `json:"initialAmount" yaml:"initialAmount" toml:"initialAmount"`
	Benchmark     string              `json:"benchmark" yaml:"benchmark" toml:"benchmark"`
	RiskFreeRate  *float64            `json:"riskFreeRate" yaml:"riskFreeRate" toml:"riskFreeRate"`
	Portfolios    []*portfolio.Config `json:"portfolios" yaml:"portfolios" toml:"portfolios"`
}

func (req *Request) validate() error {
	if !(req.InitialAmount > 0) || math.IsInf(req.InitialAmount, 0) {
		return fmt.Errorf("%w: initialAmount must be a positive number", ErrInvalidRequest)
	}

	for _, cfg := range req.Portfolios {
		if cfg == nil || len(cfg.Tickers) == 0 {
			continue
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// HistoryPoint is one entry of a portfolio's value history
type HistoryPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// PortfolioResult is the serialized outcome of one simulation
type PortfolioResult struct {
	Name string `json:"name"`
	portfolio.Metrics
	History []HistoryPoint `json:"portfolioHistory"`
}

// Response is the outcome of a batch
type Response struct {
	Data      []*PortfolioResult `json:"data"`
	Benchmark *PortfolioResult   `json:"benchmark"`
	Warning   *string            `json:"warning"`
}

// NewPortfolioResult converts a simulation result into its serialized form
func NewPortfolioResult(res *portfolio.Result) *PortfolioResult {
	return &PortfolioResult{
		Name:    res.Name,
		Metrics: res.Metrics,
		History: historyPoints(res.History),
	}
}

func historyPoints(history *dataframe.DataFrame) []HistoryPoint {
	points := make([]HistoryPoint, 0, history.Len())
	if history.ColCount() == 0 {
		return points
	}

	for idx, dt := range history.Dates {
		points = append(points, HistoryPoint{
			Date:  dt.Format(common.DateFormat),
			Value: history.Vals[0][idx],
		})
	}

	return points
}

// ScanRequest asks for the metrics of individual tickers
type ScanRequest struct {
	Period    `yaml:",inline"`
	Tickers   []string `json:"tickers" yaml:"tickers" toml:"tickers"`
	Benchmark string   `json:"benchmark" yaml:"benchmark" toml:"benchmark"`
}

// ScanResult holds either the metrics of a ticker or the reason they could
// not be computed
type ScanResult struct {
	Ticker string `json:"ticker"`
	*portfolio.Metrics
	Note  *string `json:"note,omitempty"`
	Error string  `json:"error,omitempty"`
}
