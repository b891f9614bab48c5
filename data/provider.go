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
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/dataframe"
)

// Provider returns a dense table of daily adjusted close prices with one
// column per ticker. Dates are midnight UTC; missing prices are NaN. Tickers
// without any data in range may be absent from the table.
type Provider interface {
	GetPrices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error)
}

// Writer stores the price history of a single ticker
type Writer interface {
	WritePrices(ctx context.Context, ticker string, prices *dataframe.DataFrame) error
}

const (
	ProviderCSV     = "csv"
	ProviderParquet = "parquet"
	ProviderTiingo  = "tiingo"
	ProviderPvDb    = "pvdb"
)

// NewProviderFromConfig builds the provider named by data.provider. When
// cache is not nil the provider is wrapped in a CachedProvider.
func NewProviderFromConfig(ctx context.Context, cache *common.Cache) (Provider, error) {
	var provider Provider

	kind := viper.GetString("data.provider")
	subLog := log.With().Str("Provider", kind).Logger()

	switch kind {
	case ProviderCSV:
		provider = NewCSVStore(viper.GetString("data.dir"))
	case ProviderParquet:
		provider = NewParquetStore(viper.GetString("data.dir"))
	case ProviderTiingo:
		tiingo, err := NewTiingo(viper.GetString("tiingo.token"))
		if err != nil {
			subLog.Error().Err(err).Msg("could not create tiingo provider")
			return nil, err
		}
		provider = tiingo
	case ProviderPvDb:
		pvdb, err := NewPvDbFromConfig(ctx)
		if err != nil {
			subLog.Error().Err(err).Msg("could not connect to pvdb")
			return nil, err
		}
		provider = pvdb
	default:
		subLog.Error().Msg("unknown data provider")
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, kind)
	}

	if cache != nil {
		provider = NewCachedProvider(provider, cache)
	}

	subLog.Info().Bool("Cached", cache != nil).Msg("configured price provider")
	return provider, nil
}

// NewWriterFromConfig returns the local store named by data.provider
func NewWriterFromConfig() (Writer, error) {
	kind := viper.GetString("data.provider")
	switch kind {
	case ProviderCSV:
		return NewCSVStore(viper.GetString("data.dir")), nil
	case ProviderParquet:
		return NewParquetStore(viper.GetString("data.dir")), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNotWritable, kind)
	}
}

// NormalizeTickers upper cases, trims, de-duplicates and sorts tickers. Any
// symbol that is not a plain exchange ticker fails with ErrInvalidTicker.
func NormalizeTickers(tickers []string) ([]string, error) {
	seen := make(map[string]bool, len(tickers))
	res := make([]string, 0, len(tickers))
	invalid := make([]string, 0)
	for _, ticker := range tickers {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		if !common.ValidTicker(ticker) {
			invalid = append(invalid, strconv.Quote(ticker))
			continue
		}
		res = append(res, ticker)
	}

	if len(invalid) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTicker, strings.Join(invalid, ", "))
	}

	sort.Strings(res)
	return res, nil
}

// MissingTickers returns the tickers that have no valid price in prices
func MissingTickers(prices *dataframe.DataFrame, tickers []string) []string {
	missing := make([]string, 0)
	for _, ticker := range tickers {
		if prices.AllNaN(ticker) {
			missing = append(missing, ticker)
		}
	}
	return missing
}

// dateOnly truncates t to midnight UTC of its calendar day
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func checkRange(begin, end time.Time) error {
	if end.Before(begin) {
		log.Warn().Time("Begin", begin).Time("End", end).Msg("end before begin")
		return ErrInvalidTimeRange
	}
	return nil
}
