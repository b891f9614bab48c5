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
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/data"
	"github.com/penny-vault/pvbt/dataframe"
	"github.com/penny-vault/pvbt/observability/opentelemetry"
	"github.com/penny-vault/pvbt/portfolio"
)

const (
	ScanUnknownTicker = "unknown ticker"
	ScanNoData        = "no data in range"
)

// Scan computes the metrics of each requested ticker's price series. When
// catalog is nil every ticker is considered known. Results follow the order
// of req.Tickers.
func (b *Backtester) Scan(ctx context.Context, req *ScanRequest, catalog *data.Catalog) ([]*ScanResult, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "backtest.Scan")
	defer span.End()

	begin, end, err := req.DateRange()
	if err != nil {
		span.SetStatus(codes.Error, "invalid date range")
		return nil, err
	}

	requested := make([]string, 0, len(req.Tickers))
	for _, ticker := range req.Tickers {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker != "" {
			requested = append(requested, ticker)
		}
	}

	if len(requested) == 0 {
		span.SetStatus(codes.Error, "no tickers")
		return nil, fmt.Errorf("%w: the ticker list must not be empty", ErrInvalidRequest)
	}

	benchmark := strings.ToUpper(strings.TrimSpace(req.Benchmark))
	tickers := requested
	if benchmark != "" {
		tickers = append([]string{benchmark}, requested...)
	}
	tickers, err = data.NormalizeTickers(tickers)
	if err != nil {
		span.SetStatus(codes.Error, "invalid ticker")
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	span.SetAttributes(attribute.StringSlice("Tickers", tickers))

	prices, err := b.provider.GetPrices(ctx, tickers, begin, end)
	if err != nil {
		log.Error().Err(err).Strs("Tickers", tickers).Msg("could not load prices")
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load prices")
		return nil, err
	}

	var benchSeries *dataframe.DataFrame
	if benchmark != "" {
		benchSeries = validSeries(prices, benchmark)
	}

	opts := b.metricOptions(nil)
	results := make([]*ScanResult, 0, len(requested))

	for _, ticker := range requested {
		if catalog != nil && !catalog.Has(ticker) {
			results = append(results, &ScanResult{Ticker: ticker, Error: ScanUnknownTicker})
			continue
		}

		series := validSeries(prices, ticker)
		if series == nil {
			results = append(results, &ScanResult{Ticker: ticker, Error: ScanNoData})
			continue
		}

		metrics := portfolio.CalculateMetrics(series, benchSeries, opts)
		res := &ScanResult{
			Ticker:  ticker,
			Metrics: &metrics,
		}

		if late := portfolio.CheckCompleteness(prices, []string{ticker}, begin); len(late) > 0 {
			note := startNote(late[0].FirstValid)
			res.Note = &note
		}

		results = append(results, res)
	}

	log.Debug().Int("NumTickers", len(results)).Msg("scan finished")
	return results, nil
}

// validSeries returns the non-NaN prices of ticker as a value series or nil
// when there are none
func validSeries(prices *dataframe.DataFrame, ticker string) *dataframe.DataFrame {
	series, err := prices.Select(ticker)
	if err != nil {
		return nil
	}

	series.DropNaN()
	if series.Len() == 0 {
		return nil
	}

	series.ColNames = []string{common.ValueCol}
	return series
}
