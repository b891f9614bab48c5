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

package data

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/penny-vault/pvbt/dataframe"
	"github.com/penny-vault/pvbt/observability/opentelemetry"
)

// Fetcher downloads the price history of a single ticker; a nil dataframe
// means the ticker is unknown
type Fetcher interface {
	FetchTicker(ctx context.Context, ticker string, begin, end time.Time) (*dataframe.DataFrame, error)
}

// UpdateResult lists the outcome of a refresh
type UpdateResult struct {
	Updated []string
	Skipped []string
	Failed  []string
}

// Update downloads [begin, end] for every ticker from src and replaces the
// stored history in dst. Failures of individual tickers are logged and
// reported in the result; only a cancelled context aborts the refresh.
func Update(ctx context.Context, src Fetcher, dst Writer, tickers []string, begin, end time.Time) (*UpdateResult, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "data.Update")
	defer span.End()

	res := &UpdateResult{
		Updated: []string{},
		Skipped: []string{},
		Failed:  []string{},
	}
	var mu sync.Mutex

	record := func(list *[]string, ticker string) {
		mu.Lock()
		*list = append(*list, ticker)
		mu.Unlock()
	}

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(tiingoConcurrency)

	for _, ticker := range tickers {
		grp.Go(func() error {
			if err := grpCtx.Err(); err != nil {
				return err
			}

			subLog := log.With().Str("Ticker", ticker).Logger()

			df, err := src.FetchTicker(grpCtx, ticker, begin, end)
			if err != nil {
				subLog.Error().Err(err).Msg("could not download prices")
				record(&res.Failed, ticker)
				return nil
			}

			if df == nil || df.Len() == 0 {
				subLog.Warn().Msg("no prices available; skipping")
				record(&res.Skipped, ticker)
				return nil
			}

			if err := dst.WritePrices(grpCtx, ticker, df); err != nil {
				subLog.Error().Err(err).Msg("could not store prices")
				record(&res.Failed, ticker)
				return nil
			}

			record(&res.Updated, ticker)
			return nil
		})
	}

	err := grp.Wait()

	sort.Strings(res.Updated)
	sort.Strings(res.Skipped)
	sort.Strings(res.Failed)

	log.Info().
		Int("NumUpdated", len(res.Updated)).
		Int("NumSkipped", len(res.Skipped)).
		Int("NumFailed", len(res.Failed)).
		Msg("price refresh finished")

	return res, err
}
