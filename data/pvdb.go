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
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/pvbt/data/database"
	"github.com/penny-vault/pvbt/dataframe"
	"github.com/penny-vault/pvbt/observability/opentelemetry"
)

// PvDbPricesSQL selects adjusted close prices from the penny vault eod table
const PvDbPricesSQL = "SELECT event_date, ticker, COALESCE(adj_close, 'NaN'::double precision) FROM eod WHERE ticker = ANY($1) AND event_date BETWEEN $2 AND $3 ORDER BY event_date, ticker"

// PvDb reads prices from a penny vault PostgreSQL database
type PvDb struct {
	pool database.PgxIface
}

var _ Provider = (*PvDb)(nil)

// NewPvDb creates a provider that queries pool
func NewPvDb(pool database.PgxIface) *PvDb {
	return &PvDb{pool: pool}
}

// NewPvDbFromConfig connects to database.url and returns a provider using
// the shared pool
func NewPvDbFromConfig(ctx context.Context) (*PvDb, error) {
	if database.Pool() == nil {
		if err := database.Connect(ctx, viper.GetString("database.url")); err != nil {
			return nil, err
		}
	}
	return NewPvDb(database.Pool()), nil
}

// GetPrices queries the eod table for every ticker at once
func (p *PvDb) GetPrices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pvdb.GetPrices")
	defer span.End()

	span.SetAttributes(attribute.StringSlice("Tickers", tickers))
	subLog := log.With().Strs("Tickers", tickers).Time("Begin", begin).Time("End", end).Logger()

	if err := checkRange(begin, end); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if p.pool == nil {
		span.SetStatus(codes.Error, ErrDatabaseNotOpened.Error())
		return nil, ErrDatabaseNotOpened
	}

	rows, err := p.pool.Query(ctx, PvDbPricesSQL, tickers, dateOnly(begin), dateOnly(end))
	if err != nil {
		span.RecordError(err)
		msg := "failed to load eod prices -- db query failed"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Stack().Err(err).Msg(msg)
		return nil, err
	}
	defer rows.Close()

	frames := make(map[string]*dataframe.DataFrame, len(tickers))
	order := make([]string, 0, len(tickers))

	for rows.Next() {
		var (
			eventDate time.Time
			ticker    string
			adjClose  float64
		)

		if err := rows.Scan(&eventDate, &ticker, &adjClose); err != nil {
			span.RecordError(err)
			subLog.Error().Stack().Err(err).Msg("failed to load eod prices -- db query scan failed")
			return nil, err
		}

		df, ok := frames[ticker]
		if !ok {
			df = &dataframe.DataFrame{
				Dates:    []time.Time{},
				ColNames: []string{ticker},
				Vals:     [][]float64{{}},
			}
			frames[ticker] = df
			order = append(order, ticker)
		}

		dt := dateOnly(eventDate)
		if df.Len() > 0 && !dt.After(df.End()) {
			continue
		}
		df.InsertRow(dt, adjClose)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		subLog.Error().Stack().Err(err).Msg("failed to load eod prices -- row iteration failed")
		return nil, err
	}

	dfs := make([]*dataframe.DataFrame, 0, len(order))
	for _, ticker := range order {
		dfs = append(dfs, frames[ticker])
	}

	return dataframe.Merge(dfs...), nil
}
