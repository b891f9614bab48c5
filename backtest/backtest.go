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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/data"
	"github.com/penny-vault/pvbt/dataframe"
	"github.com/penny-vault/pvbt/observability/opentelemetry"
	"github.com/penny-vault/pvbt/portfolio"
)

// DefaultConcurrency is the number of portfolios simulated at once
const DefaultConcurrency = 8

// Backtester runs batches of portfolio simulations against a price provider
type Backtester struct {
	provider    data.Provider
	opts        portfolio.MetricOptions
	concurrency int
}

// New creates a backtester that reads prices from provider
func New(provider data.Provider, opts portfolio.MetricOptions) *Backtester {
	return &Backtester{
		provider:    provider,
		opts:        opts,
		concurrency: DefaultConcurrency,
	}
}

// WithConcurrency limits the number of portfolios simulated in parallel
func (b *Backtester) WithConcurrency(n int) *Backtester {
	if n > 0 {
		b.concurrency = n
	}
	return b
}

func (b *Backtester) metricOptions(riskFreeRate *float64) portfolio.MetricOptions {
	opts := b.opts
	if riskFreeRate != nil {
		opts.RiskFreeRate = *riskFreeRate
	}
	return opts
}

// Run simulates every portfolio of req that has tickers. Portfolios without a
// single common trading day are left out of the response; if none remain
// ErrNoCommonTradingDays is returned.
func (b *Backtester) Run(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "backtest.Run")
	defer span.End()

	fail := func(err error, msg string) (*Response, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return nil, err
	}

	begin, end, err := req.DateRange()
	if err != nil {
		return fail(err, "invalid date range")
	}

	if err := req.validate(); err != nil {
		return fail(err, "invalid request")
	}

	configs := make([]*portfolio.Config, 0, len(req.Portfolios))
	allTickers := make([]string, 0, 16)
	for _, cfg := range req.Portfolios {
		if cfg == nil || len(cfg.Tickers) == 0 {
			continue
		}
		normalized := *cfg
		normalized.Tickers = make([]string, len(cfg.Tickers))
		copy(normalized.Tickers, cfg.Tickers)
		common.ArrToUpper(normalized.Tickers)
		configs = append(configs, &normalized)
		allTickers = append(allTickers, normalized.Tickers...)
	}

	benchmark := strings.ToUpper(strings.TrimSpace(req.Benchmark))
	if benchmark != "" {
		allTickers = append(allTickers, benchmark)
	}

	tickers, err := data.NormalizeTickers(allTickers)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrInvalidRequest, err), "invalid ticker")
	}
	if len(tickers) == 0 {
		return fail(fmt.Errorf("%w: set at least one ticker in a portfolio", ErrInvalidRequest), "no tickers")
	}

	span.SetAttributes(
		attribute.StringSlice("Tickers", tickers),
		attribute.String("Begin", begin.Format(common.DateFormat)),
		attribute.String("End", end.Format(common.DateFormat)),
	)

	subLog := log.With().Strs("Tickers", tickers).Time("Begin", begin).Time("End", end).Logger()

	prices, err := b.provider.GetPrices(ctx, tickers, begin, end)
	if err != nil {
		subLog.Error().Err(err).Msg("could not load prices")
		return fail(err, "could not load prices")
	}

	if prices.Len() == 0 {
		return fail(data.ErrNoData, "no data")
	}

	if missing := data.MissingTickers(prices, tickers); len(missing) > 0 {
		subLog.Warn().Strs("Missing", missing).Msg("tickers have no data in range")
		return fail(fmt.Errorf("%w: %s", data.ErrTickersNotFound, strings.Join(missing, ", ")), "tickers not found")
	}

	resp := &Response{}
	if late := portfolio.CheckCompleteness(prices, tickers, begin); len(late) > 0 {
		warning := lateStartWarning(late)
		resp.Warning = &warning
	}

	opts := b.metricOptions(req.RiskFreeRate)

	var benchHistory *dataframe.DataFrame
	if benchmark != "" {
		benchResult, err := b.runBenchmark(benchmark, prices, req.InitialAmount, opts)
		if err != nil {
			return fail(err, "benchmark simulation failed")
		}
		resp.Benchmark = NewPortfolioResult(benchResult)
		benchHistory = benchResult.History
	}

	results := make([]*portfolio.Result, len(configs))
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(b.concurrency)

	for idx, cfg := range configs {
		grp.Go(func() error {
			if err := grpCtx.Err(); err != nil {
				return err
			}

			res, err := portfolio.Simulate(cfg, prices, req.InitialAmount, benchHistory, opts)
			if errors.Is(err, portfolio.ErrInsufficientData) {
				subLog.Warn().Str("Portfolio", cfg.Name).Msg("portfolio has no common trading days; skipping")
				return nil
			}
			if err != nil {
				return err
			}

			results[idx] = res
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		subLog.Error().Err(err).Msg("portfolio simulation failed")
		return fail(err, "simulation failed")
	}

	resp.Data = make([]*PortfolioResult, 0, len(results))
	for _, res := range results {
		if res != nil {
			resp.Data = append(resp.Data, NewPortfolioResult(res))
		}
	}

	if len(resp.Data) == 0 {
		return fail(ErrNoCommonTradingDays, "no portfolio could be simulated")
	}

	subLog.Info().Int("NumPortfolios", len(resp.Data)).Bool("Benchmark", resp.Benchmark != nil).Msg("backtest finished")
	return resp, nil
}

// runBenchmark simulates a buy and hold of ticker over its own valid dates. A
// benchmark is its own reference, so beta is 1 and alpha 0.
func (b *Backtester) runBenchmark(ticker string, prices *dataframe.DataFrame, initialAmount float64, opts portfolio.MetricOptions) (*portfolio.Result, error) {
	cfg := &portfolio.Config{
		Name:            ticker,
		Tickers:         []string{ticker},
		Weights:         []float64{100},
		RebalancePeriod: portfolio.Never,
	}

	res, err := portfolio.Simulate(cfg, prices, initialAmount, nil, opts)
	if err != nil {
		return nil, err
	}

	beta := 1.0
	alpha := 0.0
	res.Metrics.Beta = &beta
	res.Metrics.Alpha = &alpha

	return res, nil
}

func lateStartWarning(late []portfolio.LateStart) string {
	assets := make([]string, len(late))
	for idx, item := range late {
		assets[idx] = fmt.Sprintf("%s (from %s)", item.Ticker, item.FirstValid.Format(common.DateFormat))
	}

	return "some assets start later than the requested start date; the backtest was adjusted to the earliest common date. affected assets: " +
		strings.Join(assets, ", ")
}

func startNote(first time.Time) string {
	return fmt.Sprintf("(from %s)", first.Format(common.DateFormat))
}
