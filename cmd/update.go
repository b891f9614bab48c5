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

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/data"
)

var (
	updateBegin string
	updateEnd   string
)

func init() {
	updateCmd.Flags().StringVar(&updateBegin, "begin", "1990-01-01", "First date to download as YYYY-MM-DD")
	updateCmd.Flags().StringVar(&updateEnd, "end", "", "Last date to download as YYYY-MM-DD (default today)")
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update [flags] [TICKER...]",
	Short: "Download daily prices from Tiingo into the local price store",
	Long: `Download daily adjusted close prices from Tiingo and write them to the csv or
parquet store in data.dir. When no tickers are given every catalog ticker is
refreshed.`,
	Run: func(cmd *cobra.Command, args []string) {
		begin, err := common.ParseDate(updateBegin)
		if err != nil {
			log.Fatal().Err(err).Str("InputStr", updateBegin).Msg("could not parse begin date - expected format 2006-01-02")
		}

		end := common.Today()
		if updateEnd != "" {
			if end, err = common.ParseDate(updateEnd); err != nil {
				log.Fatal().Err(err).Str("InputStr", updateEnd).Msg("could not parse end date - expected format 2006-01-02")
			}
			end = common.MinTime(end, common.Today())
		}

		tickers := args
		if len(tickers) == 0 {
			catalog := loadCatalog()
			if catalog == nil {
				log.Fatal().Err(data.ErrCatalogNotLoaded).Msg("pass tickers or configure data.catalog")
			}
			tickers = catalog.Tickers()
		}

		res, err := refreshPrices(context.Background(), tickers, begin, end)
		if err != nil {
			log.Fatal().Err(err).Msg("price refresh failed")
		}

		fmt.Printf("updated: %d skipped: %d failed: %d\n", len(res.Updated), len(res.Skipped), len(res.Failed))
		for _, ticker := range res.Failed {
			fmt.Printf("  failed: %s\n", ticker)
		}
	},
}

// refreshPrices downloads tickers from Tiingo and writes them to the
// configured local store
func refreshPrices(ctx context.Context, tickers []string, begin, end time.Time) (*data.UpdateResult, error) {
	tiingo, err := data.NewTiingo(viper.GetString("tiingo.token"))
	if err != nil {
		return nil, err
	}

	writer, err := data.NewWriterFromConfig()
	if err != nil {
		return nil, err
	}

	tickers, err = data.NormalizeTickers(tickers)
	if err != nil {
		return nil, err
	}
	log.Info().Int("NumTickers", len(tickers)).Time("Begin", begin).Time("End", end).Msg("refreshing prices")
	return data.Update(ctx, tiingo, writer, tickers, begin, end)
}
