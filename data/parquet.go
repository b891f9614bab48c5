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
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/dataframe"
	"github.com/penny-vault/pvbt/observability/opentelemetry"
)

// ParquetStore reads and writes one parquet file per ticker in Dir
type ParquetStore struct {
	Dir string
}

var _ Provider = (*ParquetStore)(nil)
var _ Writer = (*ParquetStore)(nil)

// PriceRecord is the on-disk schema of a price file
type PriceRecord struct {
	Date  int64   `parquet:"date,timestamp(millisecond)"`
	Close float64 `parquet:"close"`
}

// NewParquetStore creates a store rooted at dir
func NewParquetStore(dir string) *ParquetStore {
	return &ParquetStore{Dir: dir}
}

func (s *ParquetStore) path(ticker string) (string, error) {
	if !common.ValidTicker(ticker) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	return filepath.Join(s.Dir, ticker+".parquet"), nil
}

// GetPrices loads every ticker file, outer joins them and trims the result to
// [begin, end]. Tickers without a file are left out of the table.
func (s *ParquetStore) GetPrices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "parquet.GetPrices")
	defer span.End()

	span.SetAttributes(attribute.StringSlice("Tickers", tickers))

	if err := checkRange(begin, end); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	dfs := make([]*dataframe.DataFrame, 0, len(tickers))
	for _, ticker := range tickers {
		fn, err := s.path(ticker)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid ticker")
			return nil, err
		}
		if _, err := os.Stat(fn); errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("Ticker", ticker).Str("Dir", s.Dir).Msg("no price file for ticker")
			continue
		}

		records, err := parquet.ReadFile[PriceRecord](fn)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "could not read parquet file")
			log.Error().Err(err).Str("FileName", fn).Msg("could not read parquet file")
			return nil, err
		}

		dfs = append(dfs, recordsToDataFrame(ticker, records))
	}

	return dataframe.Merge(dfs...).Trim(dateOnly(begin), dateOnly(end)), nil
}

func recordsToDataFrame(ticker string, records []PriceRecord) *dataframe.DataFrame {
	sort.SliceStable(records, func(i, j int) bool { return records[i].Date < records[j].Date })

	df := &dataframe.DataFrame{
		Dates:    make([]time.Time, 0, len(records)),
		ColNames: []string{ticker},
		Vals:     [][]float64{make([]float64, 0, len(records))},
	}

	for idx, r := range records {
		if idx > 0 && r.Date == records[idx-1].Date {
			df.Vals[0][len(df.Vals[0])-1] = r.Close
			continue
		}
		df.Dates = append(df.Dates, dateOnly(time.UnixMilli(r.Date).UTC()))
		df.Vals[0] = append(df.Vals[0], r.Close)
	}

	return df
}

// WritePrices replaces the file of ticker with the first column of prices.
// NaN values are skipped.
func (s *ParquetStore) WritePrices(ctx context.Context, ticker string, prices *dataframe.DataFrame) error {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "parquet.WritePrices")
	defer span.End()

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		span.RecordError(err)
		return err
	}

	records := make([]PriceRecord, 0, prices.Len())
	if len(prices.Vals) > 0 {
		for idx, dt := range prices.Dates {
			if math.IsNaN(prices.Vals[0][idx]) {
				continue
			}
			records = append(records, PriceRecord{
				Date:  dateOnly(dt).UnixMilli(),
				Close: prices.Vals[0][idx],
			})
		}
	}

	fn, err := s.path(ticker)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := parquet.WriteFile(fn, records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not write parquet file")
		log.Error().Err(err).Str("FileName", fn).Msg("could not write parquet file")
		return err
	}

	log.Debug().Str("Ticker", ticker).Str("FileName", fn).Int("NumRows", len(records)).Msg("wrote price file")
	return nil
}
