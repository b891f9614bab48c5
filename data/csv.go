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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/dataframe"
	"github.com/penny-vault/pvbt/observability/opentelemetry"
)

// CSVStore reads and writes one `Date,Close` file per ticker in Dir
type CSVStore struct {
	Dir string
}

var _ Provider = (*CSVStore)(nil)
var _ Writer = (*CSVStore)(nil)

// NewCSVStore creates a store rooted at dir
func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{Dir: dir}
}

func (s *CSVStore) path(ticker string) (string, error) {
	if !common.ValidTicker(ticker) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	return filepath.Join(s.Dir, ticker+".csv"), nil
}

// GetPrices loads every ticker file, outer joins them and trims the result to
// [begin, end]. Tickers without a file are left out of the table.
func (s *CSVStore) GetPrices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "csv.GetPrices")
	defer span.End()

	span.SetAttributes(attribute.StringSlice("Tickers", tickers))

	if err := checkRange(begin, end); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	dfs := make([]*dataframe.DataFrame, 0, len(tickers))
	for _, ticker := range tickers {
		df, err := s.readTicker(ticker)
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("Ticker", ticker).Str("Dir", s.Dir).Msg("no price file for ticker")
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "could not read price file")
			return nil, err
		}
		dfs = append(dfs, df)
	}

	return dataframe.Merge(dfs...).Trim(dateOnly(begin), dateOnly(end)), nil
}

func (s *CSVStore) readTicker(ticker string) (*dataframe.DataFrame, error) {
	fn, err := s.path(ticker)
	if err != nil {
		return nil, err
	}
	subLog := log.With().Str("Ticker", ticker).Str("FileName", fn).Logger()

	fh, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	reader := csv.NewReader(fh)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		subLog.Error().Err(err).Msg("could not read csv header")
		return nil, fmt.Errorf("%w: %s: %s", ErrMalformedCSV, fn, err.Error())
	}

	dateCol, closeCol := -1, -1
	for idx, name := range header {
		switch strings.TrimSpace(name) {
		case "Date":
			dateCol = idx
		case "Close":
			closeCol = idx
		}
	}

	if dateCol == -1 || closeCol == -1 {
		subLog.Error().Strs("Header", header).Msg("csv file must have Date and Close columns")
		return nil, fmt.Errorf("%w: %s: missing Date or Close column", ErrMalformedCSV, fn)
	}

	type row struct {
		date  time.Time
		close float64
	}
	rows := make([]row, 0, 2048)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			subLog.Error().Err(err).Msg("could not read csv record")
			return nil, fmt.Errorf("%w: %s: %s", ErrMalformedCSV, fn, err.Error())
		}

		dateStr := strings.TrimSpace(record[dateCol])
		if len(dateStr) > len(common.DateFormat) {
			dateStr = dateStr[:len(common.DateFormat)]
		}

		dt, err := time.Parse(common.DateFormat, dateStr)
		if err != nil {
			subLog.Error().Err(err).Str("Date", record[dateCol]).Msg("could not parse date")
			return nil, fmt.Errorf("%w: %s: %s", ErrMalformedCSV, fn, err.Error())
		}

		val := math.NaN()
		if closeStr := strings.TrimSpace(record[closeCol]); closeStr != "" {
			if val, err = strconv.ParseFloat(closeStr, 64); err != nil {
				subLog.Error().Err(err).Str("Close", closeStr).Msg("could not parse close")
				return nil, fmt.Errorf("%w: %s: %s", ErrMalformedCSV, fn, err.Error())
			}
		}

		rows = append(rows, row{date: dt, close: val})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	df := &dataframe.DataFrame{
		Dates:    make([]time.Time, 0, len(rows)),
		ColNames: []string{ticker},
		Vals:     [][]float64{make([]float64, 0, len(rows))},
	}

	for idx, r := range rows {
		if idx > 0 && r.date.Equal(rows[idx-1].date) {
			// keep the last record for duplicated dates
			df.Vals[0][len(df.Vals[0])-1] = r.close
			continue
		}
		df.Dates = append(df.Dates, r.date)
		df.Vals[0] = append(df.Vals[0], r.close)
	}

	return df, nil
}

// WritePrices replaces the file of ticker with the first column of prices.
// NaN values are skipped.
func (s *CSVStore) WritePrices(ctx context.Context, ticker string, prices *dataframe.DataFrame) error {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "csv.WritePrices")
	defer span.End()

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		span.RecordError(err)
		return err
	}

	fn, err := s.path(ticker)
	if err != nil {
		span.RecordError(err)
		return err
	}

	tmp, err := os.CreateTemp(s.Dir, ticker+".*.csv")
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write([]string{"Date", "Close"}); err != nil {
		tmp.Close()
		return err
	}

	if len(prices.Vals) > 0 {
		for idx, dt := range prices.Dates {
			val := prices.Vals[0][idx]
			if math.IsNaN(val) {
				continue
			}
			if err := writer.Write([]string{dt.Format(common.DateFormat), strconv.FormatFloat(val, 'f', -1, 64)}); err != nil {
				tmp.Close()
				return err
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	log.Debug().Str("Ticker", ticker).Str("FileName", fn).Int("NumRows", prices.Len()).Msg("wrote price file")
	return os.Rename(tmp.Name(), fn)
}
