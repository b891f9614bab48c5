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
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/dataframe"
	"github.com/penny-vault/pvbt/observability/opentelemetry"
)

// TiingoAPI is the base url of the tiingo REST api
var TiingoAPI = "https://api.tiingo.com"

const tiingoConcurrency = 4

// Tiingo downloads daily adjusted close prices from tiingo.com
type Tiingo struct {
	token  string
	client *http.Client
}

var _ Provider = (*Tiingo)(nil)

type tiingoJSONResponse struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
}

// NewTiingo creates a new Tiingo data provider
func NewTiingo(token string) (*Tiingo, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	return &Tiingo{
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// GetPrices downloads every ticker concurrently and outer joins the results.
// Tickers unknown to tiingo are left out of the table.
func (t *Tiingo) GetPrices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.GetPrices")
	defer span.End()

	span.SetAttributes(attribute.StringSlice("Tickers", tickers))

	if err := checkRange(begin, end); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]*dataframe.DataFrame, len(tickers))

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(tiingoConcurrency)

	for idx, ticker := range tickers {
		idx, ticker := idx, ticker
		grp.Go(func() error {
			df, err := t.FetchTicker(grpCtx, ticker, begin, end)
			if err != nil {
				return err
			}
			results[idx] = df
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tiingo download failed")
		return nil, err
	}

	dfs := make([]*dataframe.DataFrame, 0, len(results))
	for _, df := range results {
		if df != nil {
			dfs = append(dfs, df)
		}
	}

	return dataframe.Merge(dfs...).Trim(dateOnly(begin), dateOnly(end)), nil
}

// FetchTicker downloads the adjusted close of a single ticker. A nil
// dataframe is returned when tiingo does not know the ticker.
func (t *Tiingo) FetchTicker(ctx context.Context, ticker string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.FetchTicker")
	defer span.End()

	subLog := log.With().Str("Ticker", ticker).Time("Begin", begin).Time("End", end).Logger()

	symbol := strings.ReplaceAll(ticker, ".", "-")
	query := url.Values{}
	query.Set("startDate", begin.Format(common.DateFormat))
	query.Set("endDate", end.Format(common.DateFormat))

	endpoint := fmt.Sprintf("%s/tiingo/daily/%s/prices", TiingoAPI, url.PathEscape(symbol))
	span.SetAttributes(
		attribute.String("Url", endpoint+"?"+query.Encode()),
		attribute.String("Symbol", symbol),
	)
	query.Set("token", t.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		span.RecordError(err)
		msg := "tiingo http request failed"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Msg(msg)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		subLog.Warn().Msg("tiingo does not know ticker")
		return nil, nil
	}

	if resp.StatusCode >= 400 {
		span.SetAttributes(attribute.Int("StatusCode", resp.StatusCode))
		msg := "tiingo returned invalid response code"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Int("HTTPResponseStatusCode", resp.StatusCode).Msg(msg)
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		msg := "could not read tiingo body"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Msg(msg)
		return nil, err
	}

	jsonResp := []tiingoJSONResponse{}
	if err := json.Unmarshal(body, &jsonResp); err != nil {
		span.RecordError(err)
		msg := "could not unmarshal json"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Bytes("Body", body).Msg(msg)
		return nil, err
	}

	df := &dataframe.DataFrame{
		Dates:    make([]time.Time, 0, len(jsonResp)),
		ColNames: []string{ticker},
		Vals:     [][]float64{make([]float64, 0, len(jsonResp))},
	}

	for _, quote := range jsonResp {
		dateStr := quote.Date
		if len(dateStr) > len(common.DateFormat) {
			dateStr = dateStr[:len(common.DateFormat)]
		}

		dt, err := time.Parse(common.DateFormat, dateStr)
		if err != nil {
			span.RecordError(err)
			subLog.Error().Err(err).Str("DateStr", quote.Date).Msg("cannot parse date string")
			return nil, err
		}

		if len(df.Dates) > 0 && !dt.After(df.Dates[len(df.Dates)-1]) {
			continue
		}

		val := quote.AdjClose
		if val == 0 {
			val = math.NaN()
		}

		df.Dates = append(df.Dates, dt)
		df.Vals[0] = append(df.Vals[0], val)
	}

	subLog.Debug().Int("NumRows", df.Len()).Msg("downloaded prices from tiingo")
	return df, nil
}
